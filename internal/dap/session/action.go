package session

import (
	"context"

	"github.com/jomof/kdap/internal/dap/message"
)

// ActionKind discriminates an Interceptor's verdict on a client request.
type ActionKind int

const (
	// ActionForward: enqueue the request's raw JSON to the backend
	// unchanged.
	ActionForward ActionKind = iota
	// ActionRespond: enqueue a response to the client; the request never
	// reaches the backend.
	ActionRespond
	// ActionForwardModified: enqueue a modified request to the backend,
	// re-serialized from its typed form.
	ActionForwardModified
	// ActionHandleAsync: spawn f as a child task; the client reader
	// continues immediately without waiting for f to finish.
	ActionHandleAsync
)

// AsyncHandlerFunc is the body of a HandleAsync action. rawJSON is the
// original request bytes; the orchestrator's handlers re-parse it to get
// the request's seq and typed arguments.
type AsyncHandlerFunc func(ctx context.Context, rawJSON []byte, async AsyncContext)

// Action is the tagged result of Interceptor.OnRequest.
type Action struct {
	Kind     ActionKind
	Response *message.Response
	Request  *message.Request
	Async    AsyncHandlerFunc
}

// Forward builds a Forward action.
func Forward() Action { return Action{Kind: ActionForward} }

// Respond builds a Respond action.
func Respond(resp *message.Response) Action {
	return Action{Kind: ActionRespond, Response: resp}
}

// ForwardModified builds a ForwardModified action.
func ForwardModified(req *message.Request) Action {
	return Action{Kind: ActionForwardModified, Request: req}
}

// HandleAsync builds a HandleAsync action.
func HandleAsync(f AsyncHandlerFunc) Action {
	return Action{Kind: ActionHandleAsync, Async: f}
}

// Interceptor is the capability the session router dispatches client
// requests and backend messages through. A *intercept.Chain is the
// reference implementation; the router only depends on this interface so
// the interception chain and the router can be developed (and tested)
// independently, per spec.md §9's cyclic-ownership note.
type Interceptor interface {
	// OnRequest is invoked for every client-originated request not already
	// consumed by a pending client interception. Implementations compose
	// an ordered handler list; the first non-Forward result wins.
	OnRequest(req *message.Request) Action
	// OnBackendMessage is invoked for every backend-originated message
	// that was not claimed by a pending backend-response promise.
	// Implementations flat-map an ordered handler list.
	OnBackendMessage(msg message.Message) []message.Message
}
