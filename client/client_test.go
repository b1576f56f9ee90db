package client

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pairbridge/pairbridge/pkg/handler"
	"github.com/pairbridge/pairbridge/pkg/keystore"
	"github.com/pairbridge/pairbridge/pkg/push"
	"github.com/pairbridge/pairbridge/pkg/relay"
	"github.com/pairbridge/pairbridge/requests"
	"github.com/pairbridge/pairbridge/responses"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	l := zaptest.NewLogger(t)
	store := keystore.NewMemoryStore()
	h := handler.NewHTTP(l,
		relay.NewSessions(l, store),
		relay.NewPushBindings(l, store),
		relay.NewCalls(l, store),
		push.NewDispatcher(l),
	)
	svr := httptest.NewServer(h)
	t.Cleanup(svr.Close)
	return NewClient(svr.URL+"/pairbridge", svr.Client())
}

func TestClient_PairingRoundTrip(t *testing.T) {
	var pushed atomic.Int64
	pushSvr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushed.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer pushSvr.Close()

	c := newTestClient(t)
	defer c.Shutdown()

	sessionID, err := c.NewSession(time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	expiresAt, err := c.BindSession(sessionID, "enc1", &requests.Push{
		Type:    "webhook",
		Webhook: pushSvr.URL,
	}, time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 2*time.Second)

	session, err := c.FetchSession(sessionID)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "enc1", session.Payload)

	callID, err := c.NewCall(sessionID, "enc-call", map[string]string{"dappName": "Test"})
	require.NoError(t, err)
	require.NotEmpty(t, callID)
	assert.Equal(t, int64(1), pushed.Load())

	payload, err := c.FetchCall(sessionID, callID)
	require.NoError(t, err)
	assert.Equal(t, "enc-call", payload)

	require.NoError(t, c.NewCallStatus(callID, "enc-result"))
	status, err := c.FetchCallStatus(callID)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, "enc-result", status.Result)

	require.NoError(t, c.RemoveSession(sessionID))
}

func TestClient_FetchSession_Absent(t *testing.T) {
	c := newTestClient(t)
	defer c.Shutdown()

	session, err := c.FetchSession("never-created")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestClient_FetchCallStatus_Absent(t *testing.T) {
	c := newTestClient(t)
	defer c.Shutdown()

	status, err := c.FetchCallStatus("no-such-call")
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestClient_FetchCall_ConsumedOnce(t *testing.T) {
	pushSvr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer pushSvr.Close()

	c := newTestClient(t)
	defer c.Shutdown()

	sessionID, err := c.NewSession(0)
	require.NoError(t, err)
	_, err = c.BindSession(sessionID, "enc1", &requests.Push{Type: "webhook", Webhook: pushSvr.URL}, 0)
	require.NoError(t, err)
	callID, err := c.NewCall(sessionID, "enc-call", nil)
	require.NoError(t, err)

	_, err = c.FetchCall(sessionID, callID)
	require.NoError(t, err)

	_, err = c.FetchCall(sessionID, callID)
	require.Error(t, err)
	var errReply *responses.Error
	require.ErrorAs(t, err, &errReply)
	assert.Equal(t, responses.ErrorCodeCallNotFound, errReply.Code)
}

func TestClient_FetchAllCalls(t *testing.T) {
	pushSvr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer pushSvr.Close()

	c := newTestClient(t)
	defer c.Shutdown()

	sessionID, err := c.NewSession(0)
	require.NoError(t, err)
	_, err = c.BindSession(sessionID, "enc1", &requests.Push{Type: "webhook", Webhook: pushSvr.URL}, 0)
	require.NoError(t, err)

	first, err := c.NewCall(sessionID, "enc-a", nil)
	require.NoError(t, err)
	second, err := c.NewCall(sessionID, "enc-b", nil)
	require.NoError(t, err)

	calls, err := c.FetchAllCalls(sessionID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{first: "enc-a", second: "enc-b"}, calls)

	calls, err = c.FetchAllCalls(sessionID)
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestClient_NewCall_WithoutBinding(t *testing.T) {
	c := newTestClient(t)
	defer c.Shutdown()

	sessionID, err := c.NewSession(0)
	require.NoError(t, err)

	_, err = c.NewCall(sessionID, "enc-call", nil)
	require.Error(t, err)
	var errReply *responses.Error
	require.ErrorAs(t, err, &errReply)
	assert.Equal(t, responses.ErrorCodePushBindingMissing, errReply.Code)
}
