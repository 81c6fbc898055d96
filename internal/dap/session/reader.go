package session

import (
	"context"
	"errors"
	"io"
	"net"
	"os"

	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/kdaperr"
)

// runClientReader is the client-reader task (spec.md §4.3). Its dispatch
// order is: pending reverse-response first, then pending client
// interception, then the interceptor chain.
func (r *Router) runClientReader() error {
	for {
		raw, err := r.clientReader.ReadMessage()
		if err != nil {
			r.shutdown()
			return r.endReaderTask(err, "client")
		}

		msg, err := message.Parse(raw)
		if err != nil {
			r.logger.Warn("client: malformed message, ending session", "error", err)
			r.shutdown()
			return err
		}

		if err := r.dispatchClientMessage(msg, raw); err != nil {
			r.shutdown()
			return err
		}
	}
}

func (r *Router) dispatchClientMessage(msg message.Message, raw []byte) error {
	if resp, ok := msg.(*message.Response); ok {
		if r.pendingReverseResponses.resolve(resp.RequestSeq, resp) {
			return nil
		}
		r.logger.Warn("client: response matches no pending reverse request, forwarding defensively",
			"request_seq", resp.RequestSeq)
		return r.ForwardToBackend(raw)
	}

	req, ok := msg.(*message.Request)
	if !ok {
		// Events from a client are not part of DAP, but tolerant forwarding
		// keeps an unusual peer from wedging the session.
		return r.ForwardToBackend(raw)
	}

	if r.pendingClientInterceptions.resolve(req.Command, req.Arguments) {
		return nil
	}

	action := r.interceptor.OnRequest(req)
	switch action.Kind {
	case ActionForward:
		return r.ForwardToBackend(raw)
	case ActionRespond:
		body, err := action.Response.ToJSON()
		if err != nil {
			return err
		}
		return r.SendEventToClient(body)
	case ActionForwardModified:
		body, err := action.Request.ToJSON()
		if err != nil {
			return err
		}
		return r.ForwardToBackend(body)
	case ActionHandleAsync:
		go action.Async(r.rootCtx, raw, r)
		return nil
	default:
		return r.ForwardToBackend(raw)
	}
}

// runBackendReader is the backend-reader task. It demultiplexes responses
// to proxy-originated backend requests, drops suppressed console output,
// and otherwise runs the interception chain before forwarding to the
// client writer or the event gate.
func (r *Router) runBackendReader() error {
	for {
		raw, err := r.backendReader.ReadMessage()
		if err != nil {
			r.shutdown()
			return r.endReaderTask(err, "backend")
		}

		msg, err := message.Parse(raw)
		if err != nil {
			r.logger.Warn("backend: malformed message, ending session", "error", err)
			r.shutdown()
			return err
		}

		r.dispatchBackendMessage(msg, raw)
	}
}

func (r *Router) dispatchBackendMessage(msg message.Message, raw []byte) {
	// Claim whatever a previous message's silent-response resolution
	// staged, and apply it only once this message is done being
	// dispatched — so the message immediately following a silent
	// request's response still sees suppression elevated, whether this
	// message ends up dropped (below) or forwarded (spec.md §5, §8).
	toRelease := r.takePendingSilentDecrement()
	defer func() {
		if toRelease > 0 {
			r.pendingSilentCount.Add(-toRelease)
		}
	}()

	if resp, ok := msg.(*message.Response); ok {
		if r.pendingBackendResponses.resolve(resp.RequestSeq, resp) {
			if r.takeSilent(resp.RequestSeq) {
				r.stageSilentDecrement()
			}
			return
		}
	}

	if r.pendingSilentCount.Load() > 0 && isConsoleOutput(msg) {
		return
	}

	for _, out := range r.interceptor.OnBackendMessage(msg) {
		body, err := out.ToJSON()
		if err != nil {
			r.logger.Warn("backend: dropping message that failed to re-serialize", "error", err)
			continue
		}
		if err := r.SendEventToClient(body); err != nil {
			return
		}
	}
}

func isConsoleOutput(msg message.Message) bool {
	ev, ok := msg.(*message.Event)
	if !ok || ev.Event != message.EventOutput {
		return false
	}
	body, ok := ev.Output()
	if !ok {
		return false
	}
	return body.CategoryOrDefault() == message.CategoryConsole
}

// endReaderTask normalizes a reader's terminal error: EOF and a closed
// stream (the signature of the shutdown sequence having already run, e.g.
// because the other reader hit EOF first) both end the session normally.
func (r *Router) endReaderTask(err error, who string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return kdaperr.NewIOError("session: "+who+" reader", err)
}
