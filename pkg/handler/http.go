package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pairbridge/pairbridge/pkg/keystore"
	"github.com/pairbridge/pairbridge/pkg/metrics"
	"github.com/pairbridge/pairbridge/pkg/push"
	"github.com/pairbridge/pairbridge/pkg/relay"
	"github.com/pairbridge/pairbridge/requests"
	"github.com/pairbridge/pairbridge/responses"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	HTTP struct {
		l          *zap.Logger
		path       string
		sessions   *relay.Sessions
		bindings   *relay.PushBindings
		calls      *relay.Calls
		dispatcher *push.Dispatcher
	}
	HTTPOption func(*HTTP)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

// NewHTTP returns the relay's web server
func NewHTTP(l *zap.Logger, sessions *relay.Sessions, bindings *relay.PushBindings, calls *relay.Calls, dispatcher *push.Dispatcher, opts ...HTTPOption) http.Handler {
	inst := &HTTP{
		l:          l.Named("http"),
		path:       "/pairbridge",
		sessions:   sessions,
		bindings:   bindings,
		calls:      calls,
		dispatcher: dispatcher,
	}

	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithBasePath(v string) HTTPOption {
	return func(o *HTTP) {
		o.path = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Body == nil {
		h.writeError(w, badRequest("empty request body"))
		return
	}

	bytes, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, badRequest("failed to read incoming request"))
		return
	}

	route := Route(strings.TrimPrefix(r.URL.Path, h.path+"/"))
	reply, errReply := h.handleRequest(r.Context(), route, bytes)
	if errReply != nil {
		h.writeError(w, errReply)
		return
	}
	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeReply(w, reply)
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (h *HTTP) handleRequest(ctx context.Context, route Route, jsonBytes []byte) (interface{}, *responses.Error) {
	start := time.Now()

	reply, errReply := h.executeRequest(ctx, route, jsonBytes)
	result := "success"
	if errReply != nil {
		result = "error"
	}

	metrics.ServiceRequestCounter.WithLabelValues(string(route), result).Inc()
	metrics.ServiceRequestDuration.WithLabelValues(string(route), result).Observe(time.Since(start).Seconds())

	return reply, errReply
}

func (h *HTTP) executeRequest(ctx context.Context, route Route, jsonBytes []byte) (reply interface{}, errReply *responses.Error) {
	var (
		jsonErr           error
		processIfJSONIsOk = func(err error, processingFunc func()) {
			if err != nil {
				jsonErr = err
				return
			}
			processingFunc()
		}
	)

	// handle and process
	switch route {
	case RouteSessionNew:
		request := &requests.SessionNew{}
		processIfJSONIsOk(json.Unmarshal(jsonBytes, request), func() {
			sessionID, err := h.sessions.Create(ctx, secondsTTL(request.TTL))
			if err != nil {
				errReply = h.errorReply(err)
				return
			}
			reply = &responses.SessionNew{SessionID: sessionID}
		})
	case RouteSessionBind:
		request := &requests.SessionBind{}
		processIfJSONIsOk(json.Unmarshal(jsonBytes, request), func() {
			if request.SessionID == "" || request.Payload == "" {
				errReply = badRequest("sessionId and payload are required")
				return
			}
			expiresAt, err := h.sessions.Bind(ctx, request.SessionID, request.Payload, secondsTTL(request.TTL))
			if err != nil {
				errReply = h.errorReply(err)
				return
			}
			if request.Push != nil {
				err = h.bindings.Bind(ctx, request.SessionID, relay.Destination{
					Type:    request.Push.Type,
					Token:   request.Push.Token,
					Webhook: request.Push.Webhook,
				}, 0)
				if err != nil {
					errReply = h.errorReply(err)
					return
				}
			}
			reply = &responses.SessionBind{ExpiresAt: expiresAt.Unix()}
		})
	case RouteSessionFetch:
		request := &requests.SessionFetch{}
		processIfJSONIsOk(json.Unmarshal(jsonBytes, request), func() {
			if request.SessionID == "" {
				errReply = badRequest("sessionId is required")
				return
			}
			payload, expiresAt, ok, err := h.sessions.Fetch(ctx, request.SessionID)
			if err != nil {
				errReply = h.errorReply(err)
				return
			}
			if !ok {
				// absent is a valid terminal outcome, answered with 204
				return
			}
			reply = &responses.Session{Payload: payload, ExpiresAt: expiresAt.Unix()}
		})
	case RouteSessionRemove:
		request := &requests.SessionRemove{}
		processIfJSONIsOk(json.Unmarshal(jsonBytes, request), func() {
			if request.SessionID == "" {
				errReply = badRequest("sessionId is required")
				return
			}
			if err := h.sessions.Teardown(ctx, request.SessionID); err != nil {
				errReply = h.errorReply(err)
				return
			}
			reply = &responses.SessionRemove{Removed: true}
		})
	case RouteCallNew:
		request := &requests.CallNew{}
		processIfJSONIsOk(json.Unmarshal(jsonBytes, request), func() {
			reply, errReply = h.newCall(ctx, request)
		})
	case RouteCallFetch:
		request := &requests.CallFetch{}
		processIfJSONIsOk(json.Unmarshal(jsonBytes, request), func() {
			if request.SessionID == "" || request.CallID == "" {
				errReply = badRequest("sessionId and callId are required")
				return
			}
			payload, err := h.calls.Pop(ctx, request.SessionID, request.CallID)
			if err != nil {
				errReply = h.errorReply(err)
				return
			}
			reply = &responses.Call{Payload: payload}
		})
	case RouteCallFetchAll:
		request := &requests.CallFetchAll{}
		processIfJSONIsOk(json.Unmarshal(jsonBytes, request), func() {
			if request.SessionID == "" {
				errReply = badRequest("sessionId is required")
				return
			}
			calls, err := h.calls.PopAll(ctx, request.SessionID)
			if err != nil {
				errReply = h.errorReply(err)
				return
			}
			reply = &responses.Calls{Calls: calls}
		})
	case RouteCallStatusNew:
		request := &requests.CallStatusNew{}
		processIfJSONIsOk(json.Unmarshal(jsonBytes, request), func() {
			if request.CallID == "" || request.Result == "" {
				errReply = badRequest("callId and result are required")
				return
			}
			if err := h.calls.PutStatus(ctx, request.CallID, request.Result, secondsTTL(request.TTL)); err != nil {
				errReply = h.errorReply(err)
				return
			}
			reply = &responses.CallStatus{Result: request.Result}
		})
	case RouteCallStatusFetch:
		request := &requests.CallStatusFetch{}
		processIfJSONIsOk(json.Unmarshal(jsonBytes, request), func() {
			if request.CallID == "" {
				errReply = badRequest("callId is required")
				return
			}
			result, ok, err := h.calls.PopStatus(ctx, request.CallID)
			if err != nil {
				errReply = h.errorReply(err)
				return
			}
			if !ok {
				return
			}
			reply = &responses.CallStatus{Result: result}
		})
	default:
		errReply = responses.NewError(http.StatusNotFound, responses.ErrorCodeUnknownRoute, "unknown route: "+string(route))
	}

	if jsonErr != nil {
		h.l.Error("could not read incoming json", zap.Error(jsonErr))
		errReply = badRequest("could not read incoming json")
	}

	return reply, errReply
}

// newCall writes the call record before notifying: a failed push must not
// discard an already created call, it stays poll-able.
func (h *HTTP) newCall(ctx context.Context, request *requests.CallNew) (interface{}, *responses.Error) {
	if request.SessionID == "" || request.Payload == "" {
		return nil, badRequest("sessionId and payload are required")
	}

	destination, err := h.bindings.Fetch(ctx, request.SessionID)
	if err != nil {
		return nil, h.errorReply(err)
	}

	callID, err := h.calls.Create(ctx, request.SessionID, secondsTTL(request.TTL))
	if err != nil {
		return nil, h.errorReply(err)
	}
	if err := h.calls.PutPayload(ctx, request.SessionID, callID, request.Payload, secondsTTL(request.TTL)); err != nil {
		return nil, h.errorReply(err)
	}

	err = h.dispatcher.Notify(ctx, destination, push.Notification{
		SessionID: request.SessionID,
		CallID:    callID,
		Context:   request.Context,
	})
	if err != nil {
		h.l.Error("push delivery failed, call record kept",
			zap.String("sessionId", request.SessionID),
			zap.String("callId", callID),
			zap.Error(err),
		)
		return nil, h.errorReply(err)
	}

	return &responses.CallNew{CallID: callID}, nil
}

// errorReply maps the error taxonomy onto wire codes. Absence of a call or
// push binding keeps the backend-failure class the data model prescribes,
// even though a 404 would arguably fit better.
func (h *HTTP) errorReply(err error) *responses.Error {
	switch {
	case errors.Is(err, relay.ErrTokenExpired):
		return responses.NewError(http.StatusInternalServerError, responses.ErrorCodeTokenExpired, "session token expired")
	case errors.Is(err, relay.ErrCallNotFound):
		return responses.NewError(http.StatusInternalServerError, responses.ErrorCodeCallNotFound, "call not found")
	case errors.Is(err, relay.ErrPushBindingMissing):
		return responses.NewError(http.StatusInternalServerError, responses.ErrorCodePushBindingMissing, "no push destination on record")
	case errors.Is(err, push.ErrPushDelivery):
		return responses.NewError(http.StatusInternalServerError, responses.ErrorCodePushDelivery, "push delivery failed")
	case errors.Is(err, keystore.ErrStoreUnavailable):
		return responses.NewError(http.StatusServiceUnavailable, responses.ErrorCodeStoreUnavailable, "store unavailable")
	case errors.Is(err, keystore.ErrWrite):
		return responses.NewError(http.StatusInternalServerError, responses.ErrorCodeWrite, "store write failed")
	default:
		h.l.Error("unclassified error", zap.Error(err))
		return responses.NewError(http.StatusInternalServerError, responses.ErrorCodeInternal, "internal error")
	}
}

func (h *HTTP) writeReply(w http.ResponseWriter, reply interface{}) {
	bytes, err := json.Marshal(map[string]interface{}{
		"reply": reply,
	})
	if err != nil {
		h.l.Error("could not encode reply", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(bytes)
}

func (h *HTTP) writeError(w http.ResponseWriter, errReply *responses.Error) {
	bytes, err := json.Marshal(errReply)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errReply.Status)
	_, _ = w.Write(bytes)
}

func badRequest(message string) *responses.Error {
	return responses.NewError(http.StatusBadRequest, responses.ErrorCodeBadRequest, message)
}

func secondsTTL(seconds int64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
