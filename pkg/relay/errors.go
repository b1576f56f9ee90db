package relay

import "github.com/pkg/errors"

var (
	// ErrTokenExpired is returned when a bind targets a session that was
	// never requested or has already expired or been consumed. The caller
	// must restart the handshake rather than retry the bind.
	ErrTokenExpired = errors.New("relay: session token expired")
	// ErrCallNotFound covers never-created, already-popped and expired call
	// records alike. The store cannot tell these apart and callers must not
	// try to.
	ErrCallNotFound = errors.New("relay: call not found")
	// ErrPushBindingMissing is returned when a call is created for a session
	// without a push destination on record.
	ErrPushBindingMissing = errors.New("relay: push binding missing")
)
