package main

import (
	"github.com/pairbridge/pairbridge/cmd"
)

func main() {
	cmd.Execute()
}
