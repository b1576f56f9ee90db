package client

import "github.com/pairbridge/pairbridge/pkg/handler"

type transport interface {
	// call returns errAbsent when the relay answered 204 No Content.
	call(route handler.Route, request interface{}, response interface{}) error
	shutdown()
}
