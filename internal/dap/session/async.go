package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"

	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/kdaperr"
	"github.com/jomof/kdap/internal/kdaplog"
)

// errSessionClosing is returned by AsyncContext operations that were
// unblocked by session shutdown rather than by completing normally. An
// async handler mid-flight when the session ends should treat it like
// context.Canceled: stop, don't retry.
var errSessionClosing = errors.New("session: closing")

// AsyncContext is the capability surface a HandleAsync closure runs with.
// The orchestrator's launch/attach/disconnect/terminate handlers (spec.md
// §4.5) are the primary consumers; none of them touch the Router directly,
// which is what lets orchestrator and intercept each depend only on
// session and message without a cycle back to either one.
type AsyncContext interface {
	// SendReverseRequest allocates a reverse-request seq (1,000,000+),
	// sends command/args to the client as a request, and returns the seq
	// without waiting for the client's response.
	SendReverseRequest(command string, args any) (int, error)
	// AwaitResponse blocks until the client responds to the reverse
	// request identified by seq, or ctx is done.
	AwaitResponse(ctx context.Context, seq int) (*message.Response, error)
	// ForwardToBackend enqueues raw JSON directly to the backend, bypassing
	// the interception chain.
	ForwardToBackend(raw []byte) error
	// SendEventToClient enqueues raw JSON directly to the client, subject
	// to the event gate if one is active.
	SendEventToClient(raw []byte) error
	// SendRequestToBackendAndAwait allocates a backend-request seq
	// (2,000,000+), sends it, and blocks for the correlated response.
	SendRequestToBackendAndAwait(ctx context.Context, command string, args any) (*message.Response, error)
	// SendSilentRequestToBackendAndAwait is SendRequestToBackendAndAwait
	// plus bookkeeping that tells the backend reader to drop any console
	// output event arriving before the matching response, so commands run
	// for proxy-internal purposes (e.g. SB facade probes) don't leak
	// output into the client's console.
	SendSilentRequestToBackendAndAwait(ctx context.Context, command string, args any) (*message.Response, error)
	// InterceptClientRequest registers a one-shot claim on the next client
	// request with the given command, consuming it before the interception
	// chain or backend ever sees it, and blocks for its raw JSON.
	InterceptClientRequest(ctx context.Context, command string) (json.RawMessage, error)
	// ActivateEventGate starts buffering backend-originated events instead
	// of forwarding them to the client.
	ActivateEventGate()
	// ReleaseEventGate stops buffering and flushes buffered events to the
	// client in arrival order.
	ReleaseEventGate()
	// Logger returns the session-scoped logger (trace ID already attached).
	Logger() *kdaplog.SessionLogger
	// NextClientMessageSeq allocates a seq for a message the caller is
	// about to synthesize and send to the client directly (a launch or
	// configurationDone response, a continued/terminated event) — never
	// used for a forwarded backend message, which keeps its own seq.
	NextClientMessageSeq() int
}

func (r *Router) SendReverseRequest(command string, args any) (int, error) {
	seq := int(r.reverseSeq.Add(1))
	req, err := newTypedRequest(seq, command, args)
	if err != nil {
		return 0, err
	}
	r.pendingReverseResponses.register(seq)
	body, err := req.ToJSON()
	if err != nil {
		r.pendingReverseResponses.forget(seq)
		return 0, err
	}
	if err := r.SendEventToClient(body); err != nil {
		r.pendingReverseResponses.forget(seq)
		return 0, err
	}
	return seq, nil
}

func (r *Router) AwaitResponse(ctx context.Context, seq int) (*message.Response, error) {
	ch, ok := r.pendingReverseResponses.peek(seq)
	if !ok {
		return nil, kdaperr.NewProtocolError(fmt.Sprintf("session: no pending reverse request for seq %d", seq), nil)
	}
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		r.pendingReverseResponses.forget(seq)
		return nil, ctx.Err()
	case <-r.closing:
		r.pendingReverseResponses.forget(seq)
		return nil, errSessionClosing
	}
}

func (r *Router) ForwardToBackend(raw []byte) error {
	select {
	case r.toBackend <- raw:
		return nil
	case <-r.closing:
		return errSessionClosing
	}
}

func (r *Router) SendEventToClient(raw []byte) error {
	if g := r.eventGatePtr.Load(); g != nil {
		g.append(raw)
		return nil
	}
	select {
	case r.toClient <- raw:
		return nil
	case <-r.closing:
		return errSessionClosing
	}
}

func (r *Router) SendRequestToBackendAndAwait(ctx context.Context, command string, args any) (*message.Response, error) {
	return r.sendBackendRequestAndAwait(ctx, command, args, false)
}

func (r *Router) SendSilentRequestToBackendAndAwait(ctx context.Context, command string, args any) (*message.Response, error) {
	return r.sendBackendRequestAndAwait(ctx, command, args, true)
}

func (r *Router) sendBackendRequestAndAwait(ctx context.Context, command string, args any, silent bool) (*message.Response, error) {
	seq := int(r.backendSeq.Add(1))
	req, err := newTypedRequest(seq, command, args)
	if err != nil {
		return nil, err
	}

	ch := r.pendingBackendResponses.register(seq)
	if silent {
		r.markSilent(seq)
		r.pendingSilentCount.Add(1)
	}

	body, err := req.ToJSON()
	if err != nil {
		r.pendingBackendResponses.forget(seq)
		return nil, err
	}
	if err := r.ForwardToBackend(body); err != nil {
		r.pendingBackendResponses.forget(seq)
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		r.pendingBackendResponses.forget(seq)
		return nil, ctx.Err()
	case <-r.closing:
		r.pendingBackendResponses.forget(seq)
		return nil, errSessionClosing
	}
}

func (r *Router) InterceptClientRequest(ctx context.Context, command string) (json.RawMessage, error) {
	ch := r.pendingClientInterceptions.register(command)
	select {
	case raw := <-ch:
		return raw, nil
	case <-ctx.Done():
		r.pendingClientInterceptions.forget(command)
		return nil, ctx.Err()
	case <-r.closing:
		r.pendingClientInterceptions.forget(command)
		return nil, errSessionClosing
	}
}

func (r *Router) ActivateEventGate() {
	r.eventGatePtr.Store(&gate{})
}

// ReleaseEventGate drains the gate, yields so any append racing the
// deactivation lands in the buffer rather than slipping past it, then
// drains once more before forwarding everything to the client in arrival
// order (spec.md §9).
func (r *Router) ReleaseEventGate() {
	g := r.eventGatePtr.Swap(nil)
	if g == nil {
		return
	}
	first := g.drain()
	runtime.Gosched()
	second := g.drain()
	for _, raw := range first {
		if err := r.sendToClientDirect(raw); err != nil {
			return
		}
	}
	for _, raw := range second {
		if err := r.sendToClientDirect(raw); err != nil {
			return
		}
	}
}

// sendToClientDirect enqueues raw JSON straight to the client writer,
// bypassing the gate even if one happens to be active again (ReleaseEventGate
// already swapped the previous gate out before calling this).
func (r *Router) sendToClientDirect(raw []byte) error {
	select {
	case r.toClient <- raw:
		return nil
	case <-r.closing:
		return errSessionClosing
	}
}

func (r *Router) Logger() *kdaplog.SessionLogger {
	return r.logger
}

func (r *Router) NextClientMessageSeq() int {
	return int(r.clientMessageSeq.Add(1))
}

func newTypedRequest(seq int, command string, args any) (*message.Request, error) {
	req, err := message.NewRequest(seq, command, args)
	if err != nil {
		return nil, fmt.Errorf("session: marshal arguments for %s: %w", command, err)
	}
	return req, nil
}
