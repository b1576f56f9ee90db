package relay

// Key prefixes per record kind. Scans for one kind never match another.
const (
	keyPrefixSession     = "session:"
	keyPrefixPushSession = "pushsession:"
	keyPrefixCall        = "call:"
	keyPrefixCallStatus  = "callstatus:"
)

func sessionKey(sessionID string) string {
	return keyPrefixSession + sessionID
}

func pushSessionKey(sessionID string) string {
	return keyPrefixPushSession + sessionID
}

func callKey(sessionID, callID string) string {
	return keyPrefixCall + sessionID + ":" + callID
}

func callPrefix(sessionID string) string {
	return keyPrefixCall + sessionID + ":"
}

func callStatusKey(callID string) string {
	return keyPrefixCallStatus + callID
}
