package requests

// Push is a push destination supplied by the party that binds a session.
type Push struct {
	Type    string `json:"type"`
	Token   string `json:"token,omitempty"`
	Webhook string `json:"webhook,omitempty"`
}

// SessionNew requests a fresh session reservation. TTL is in seconds, zero
// means the server default.
type SessionNew struct {
	TTL int64 `json:"ttl,omitempty"`
}

// SessionBind fills a previously reserved session with an encrypted payload
// and registers where to push wake-ups for it.
type SessionBind struct {
	SessionID string `json:"sessionId"`
	Payload   string `json:"payload"`
	Push      *Push  `json:"push,omitempty"`
	TTL       int64  `json:"ttl,omitempty"`
}

// SessionFetch polls a session for its bound payload.
type SessionFetch struct {
	SessionID string `json:"sessionId"`
}

// SessionRemove tears a session down.
type SessionRemove struct {
	SessionID string `json:"sessionId"`
}

// CallNew relays an opaque call payload into a session. Context travels
// verbatim inside the wake-up notification, e.g. a display name.
type CallNew struct {
	SessionID string            `json:"sessionId"`
	Payload   string            `json:"payload"`
	Context   map[string]string `json:"context,omitempty"`
	TTL       int64             `json:"ttl,omitempty"`
}

// CallFetch consumes one call payload.
type CallFetch struct {
	SessionID string `json:"sessionId"`
	CallID    string `json:"callId"`
}

// CallFetchAll drains every pending call of a session.
type CallFetchAll struct {
	SessionID string `json:"sessionId"`
}

// CallStatusNew publishes the responder's result for a call.
type CallStatusNew struct {
	CallID string `json:"callId"`
	Result string `json:"result"`
	TTL    int64  `json:"ttl,omitempty"`
}

// CallStatusFetch consumes the result of a call.
type CallStatusFetch struct {
	CallID string `json:"callId"`
}
