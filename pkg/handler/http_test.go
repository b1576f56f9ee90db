package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pairbridge/pairbridge/pkg/keystore"
	"github.com/pairbridge/pairbridge/pkg/push"
	"github.com/pairbridge/pairbridge/pkg/relay"
	"github.com/pairbridge/pairbridge/responses"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	l := zaptest.NewLogger(t)
	store := keystore.NewMemoryStore()
	return NewHTTP(l,
		relay.NewSessions(l, store),
		relay.NewPushBindings(l, store),
		relay.NewCalls(l, store),
		push.NewDispatcher(l),
	)
}

func doRequest(t *testing.T, h http.Handler, route Route, body string) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(http.MethodPost, "/pairbridge/"+string(route), strings.NewReader(body))
	recorder := httptest.NewRecorder()
	h.ServeHTTP(recorder, request)
	return recorder
}

func decodeReply(t *testing.T, recorder *httptest.ResponseRecorder, reply interface{}) {
	t.Helper()
	envelope := struct {
		Reply interface{} `json:"reply"`
	}{Reply: reply}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) *responses.Error {
	t.Helper()
	errReply := &responses.Error{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), errReply))
	return errReply
}

func TestHTTP_SessionLifecycle(t *testing.T) {
	var (
		pushed   atomic.Int64
		pushBody atomic.Value
	)
	pushSvr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushed.Add(1)
		body, _ := io.ReadAll(r.Body)
		pushBody.Store(string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer pushSvr.Close()

	h := newTestHandler(t)

	// reserve
	recorder := doRequest(t, h, RouteSessionNew, `{"ttl":60}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	sessionNew := &responses.SessionNew{}
	decodeReply(t, recorder, sessionNew)
	require.NotEmpty(t, sessionNew.SessionID)

	// bind payload and push destination
	before := time.Now()
	recorder = doRequest(t, h, RouteSessionBind,
		`{"sessionId":"`+sessionNew.SessionID+`","payload":"enc1","ttl":60,"push":{"type":"webhook","webhook":"`+pushSvr.URL+`"}}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	sessionBind := &responses.SessionBind{}
	decodeReply(t, recorder, sessionBind)
	assert.GreaterOrEqual(t, sessionBind.ExpiresAt, before.Unix())
	assert.LessOrEqual(t, sessionBind.ExpiresAt, before.Add(61*time.Second).Unix())

	// poll
	recorder = doRequest(t, h, RouteSessionFetch, `{"sessionId":"`+sessionNew.SessionID+`"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	session := &responses.Session{}
	decodeReply(t, recorder, session)
	assert.Equal(t, "enc1", session.Payload)
	assert.InDelta(t, sessionBind.ExpiresAt, session.ExpiresAt, 1)

	// relay a call, which triggers exactly one push
	recorder = doRequest(t, h, RouteCallNew,
		`{"sessionId":"`+sessionNew.SessionID+`","payload":"enc-call","context":{"dappName":"Test"}}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	callNew := &responses.CallNew{}
	decodeReply(t, recorder, callNew)
	require.NotEmpty(t, callNew.CallID)
	require.Equal(t, int64(1), pushed.Load())
	body, _ := pushBody.Load().(string)
	assert.Contains(t, body, sessionNew.SessionID)
	assert.Contains(t, body, callNew.CallID)
	assert.Contains(t, body, "Test")

	// consume the call once
	recorder = doRequest(t, h, RouteCallFetch,
		`{"sessionId":"`+sessionNew.SessionID+`","callId":"`+callNew.CallID+`"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	call := &responses.Call{}
	decodeReply(t, recorder, call)
	assert.Equal(t, "enc-call", call.Payload)

	recorder = doRequest(t, h, RouteCallFetch,
		`{"sessionId":"`+sessionNew.SessionID+`","callId":"`+callNew.CallID+`"}`)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, responses.ErrorCodeCallNotFound, decodeError(t, recorder).Code)

	// result channel round trip
	recorder = doRequest(t, h, RouteCallStatusNew, `{"callId":"`+callNew.CallID+`","result":"enc-result"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	recorder = doRequest(t, h, RouteCallStatusFetch, `{"callId":"`+callNew.CallID+`"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	status := &responses.CallStatus{}
	decodeReply(t, recorder, status)
	assert.Equal(t, "enc-result", status.Result)

	recorder = doRequest(t, h, RouteCallStatusFetch, `{"callId":"`+callNew.CallID+`"}`)
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	// teardown is idempotent
	recorder = doRequest(t, h, RouteSessionRemove, `{"sessionId":"`+sessionNew.SessionID+`"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	recorder = doRequest(t, h, RouteSessionRemove, `{"sessionId":"`+sessionNew.SessionID+`"}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(t, h, RouteSessionFetch, `{"sessionId":"`+sessionNew.SessionID+`"}`)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestHTTP_SessionBind_Unknown(t *testing.T) {
	h := newTestHandler(t)

	recorder := doRequest(t, h, RouteSessionBind, `{"sessionId":"unknown","payload":"enc1"}`)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, responses.ErrorCodeTokenExpired, decodeError(t, recorder).Code)
}

func TestHTTP_CallNew_NoPushBinding(t *testing.T) {
	h := newTestHandler(t)

	recorder := doRequest(t, h, RouteSessionNew, `{}`)
	sessionNew := &responses.SessionNew{}
	decodeReply(t, recorder, sessionNew)

	recorder = doRequest(t, h, RouteCallNew, `{"sessionId":"`+sessionNew.SessionID+`","payload":"enc-call"}`)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, responses.ErrorCodePushBindingMissing, decodeError(t, recorder).Code)
}

func TestHTTP_CallNew_PushFailureKeepsCall(t *testing.T) {
	pushSvr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer pushSvr.Close()

	h := newTestHandler(t)

	recorder := doRequest(t, h, RouteSessionNew, `{}`)
	sessionNew := &responses.SessionNew{}
	decodeReply(t, recorder, sessionNew)
	recorder = doRequest(t, h, RouteSessionBind,
		`{"sessionId":"`+sessionNew.SessionID+`","payload":"enc1","push":{"type":"webhook","webhook":"`+pushSvr.URL+`"}}`)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(t, h, RouteCallNew, `{"sessionId":"`+sessionNew.SessionID+`","payload":"enc-call"}`)
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, responses.ErrorCodePushDelivery, decodeError(t, recorder).Code)

	// the call record survived the failed wake-up and stays poll-able
	recorder = doRequest(t, h, RouteCallFetchAll, `{"sessionId":"`+sessionNew.SessionID+`"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	calls := &responses.Calls{}
	decodeReply(t, recorder, calls)
	require.Len(t, calls.Calls, 1)
	for _, payload := range calls.Calls {
		assert.Equal(t, "enc-call", payload)
	}
}

func TestHTTP_BadJSON(t *testing.T) {
	h := newTestHandler(t)

	recorder := doRequest(t, h, RouteSessionBind, `{not json`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, responses.ErrorCodeBadRequest, decodeError(t, recorder).Code)
}

func TestHTTP_MissingFields(t *testing.T) {
	h := newTestHandler(t)

	recorder := doRequest(t, h, RouteSessionBind, `{"payload":"enc1"}`)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, responses.ErrorCodeBadRequest, decodeError(t, recorder).Code)
}

func TestHTTP_UnknownRoute(t *testing.T) {
	h := newTestHandler(t)

	recorder := doRequest(t, h, Route("nope"), `{}`)
	require.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, responses.ErrorCodeUnknownRoute, decodeError(t, recorder).Code)
}

func TestHTTP_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)

	request := httptest.NewRequest(http.MethodGet, "/pairbridge/session.new", nil)
	recorder := httptest.NewRecorder()
	h.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}
