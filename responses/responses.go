package responses

// SessionNew carries the identifier of a freshly reserved session.
type SessionNew struct {
	SessionID string `json:"sessionId"`
}

// SessionBind reports the absolute expiry of the bound payload as a unix
// timestamp in seconds.
type SessionBind struct {
	ExpiresAt int64 `json:"expiresAt"`
}

// Session is the bound payload plus its expiry.
type Session struct {
	Payload   string `json:"payload"`
	ExpiresAt int64  `json:"expiresAt"`
}

// SessionRemove acknowledges a teardown. Teardown always succeeds.
type SessionRemove struct {
	Removed bool `json:"removed"`
}

// CallNew carries the server-generated identifier of a new call.
type CallNew struct {
	CallID string `json:"callId"`
}

// Call is one consumed call payload.
type Call struct {
	Payload string `json:"payload"`
}

// Calls maps call identifiers to their payloads for a bulk drain.
type Calls struct {
	Calls map[string]string `json:"calls"`
}

// CallStatus is the responder's consumed result for a call.
type CallStatus struct {
	Result string `json:"result"`
}
