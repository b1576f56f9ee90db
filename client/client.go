package client

import (
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/pairbridge/pairbridge/pkg/handler"
	"github.com/pairbridge/pairbridge/requests"
	"github.com/pairbridge/pairbridge/responses"
)

// Client a pairing relay client
type Client struct {
	t transport
}

// NewClient creates a client against a relay HTTP endpoint, e.g.
// "http://localhost:8080/pairbridge".
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		t: newHTTPTransport(endpoint, httpClient),
	}
}

// Shutdown releases the client's transport.
func (c *Client) Shutdown() {
	c.t.shutdown()
}

// NewSession reserves a session and returns its identifier. A zero ttl keeps
// the server default.
func (c *Client) NewSession(ttl time.Duration) (string, error) {
	response := &responses.SessionNew{}
	err := c.t.call(handler.RouteSessionNew, &requests.SessionNew{TTL: seconds(ttl)}, response)
	if err != nil {
		return "", err
	}
	return response.SessionID, nil
}

// BindSession fills a reserved session with an encrypted payload and
// registers the push destination. It returns the absolute payload expiry.
func (c *Client) BindSession(sessionID, payload string, push *requests.Push, ttl time.Duration) (time.Time, error) {
	response := &responses.SessionBind{}
	err := c.t.call(handler.RouteSessionBind, &requests.SessionBind{
		SessionID: sessionID,
		Payload:   payload,
		Push:      push,
		TTL:       seconds(ttl),
	}, response)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(response.ExpiresAt, 0), nil
}

// FetchSession polls a session. A nil response without error means the
// session is absent: never created, expired or torn down.
func (c *Client) FetchSession(sessionID string) (*responses.Session, error) {
	response := &responses.Session{}
	err := c.t.call(handler.RouteSessionFetch, &requests.SessionFetch{SessionID: sessionID}, response)
	if errors.Is(err, errAbsent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return response, nil
}

// RemoveSession tears a session down. Removing an unknown session succeeds.
func (c *Client) RemoveSession(sessionID string) error {
	return c.t.call(handler.RouteSessionRemove, &requests.SessionRemove{SessionID: sessionID}, &responses.SessionRemove{})
}

// NewCall relays a call payload into a session and wakes the counterparty.
func (c *Client) NewCall(sessionID, payload string, context map[string]string) (string, error) {
	response := &responses.CallNew{}
	err := c.t.call(handler.RouteCallNew, &requests.CallNew{
		SessionID: sessionID,
		Payload:   payload,
		Context:   context,
	}, response)
	if err != nil {
		return "", err
	}
	return response.CallID, nil
}

// FetchCall consumes one call payload. It can succeed at most once per call.
func (c *Client) FetchCall(sessionID, callID string) (string, error) {
	response := &responses.Call{}
	err := c.t.call(handler.RouteCallFetch, &requests.CallFetch{
		SessionID: sessionID,
		CallID:    callID,
	}, response)
	if err != nil {
		return "", err
	}
	return response.Payload, nil
}

// FetchAllCalls drains every pending call of a session.
func (c *Client) FetchAllCalls(sessionID string) (map[string]string, error) {
	response := &responses.Calls{}
	err := c.t.call(handler.RouteCallFetchAll, &requests.CallFetchAll{SessionID: sessionID}, response)
	if err != nil {
		return nil, err
	}
	return response.Calls, nil
}

// NewCallStatus publishes the responder's result for a call.
func (c *Client) NewCallStatus(callID, result string) error {
	return c.t.call(handler.RouteCallStatusNew, &requests.CallStatusNew{
		CallID: callID,
		Result: result,
	}, &responses.CallStatus{})
}

// FetchCallStatus consumes the result of a call. A nil response without
// error means no result is pending.
func (c *Client) FetchCallStatus(callID string) (*responses.CallStatus, error) {
	response := &responses.CallStatus{}
	err := c.t.call(handler.RouteCallStatusFetch, &requests.CallStatusFetch{CallID: callID}, response)
	if errors.Is(err, errAbsent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return response, nil
}

func seconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64(ttl / time.Second)
}
