package handler

// Route type
type Route string

const (
	// RouteSessionNew reserve a fresh session
	RouteSessionNew Route = "session.new"
	// RouteSessionBind fill a reserved session and register its push destination
	RouteSessionBind Route = "session.bind"
	// RouteSessionFetch poll a session for its bound payload
	RouteSessionFetch Route = "session.fetch"
	// RouteSessionRemove tear a session down
	RouteSessionRemove Route = "session.remove"
	// RouteCallNew relay a call payload and wake the counterparty
	RouteCallNew Route = "call.new"
	// RouteCallFetch consume one call payload
	RouteCallFetch Route = "call.fetch"
	// RouteCallFetchAll drain all pending calls of a session
	RouteCallFetchAll Route = "call.fetchAll"
	// RouteCallStatusNew publish a call result
	RouteCallStatusNew Route = "call.status.new"
	// RouteCallStatusFetch consume a call result
	RouteCallStatusFetch Route = "call.status.fetch"
)
