// Package intercept implements the ordered interception chain of
// spec.md §4.4: request composition (first non-Forward result wins, later
// handlers still observe) and backend-message composition (flat-map,
// handler i's output feeds handler i+1 item by item).
//
// Grounded on the teacher's pkg/debugger/dap_server.go handleRequest
// switch (the shape of "inspect a command, decide what to do with it")
// and phuongdnguyen's custom-debugger response_interceptor.go (buffering
// and rewriting backend-originated messages before they reach the
// client).
package intercept

import (
	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/dap/session"
)

// Handler is one link in the chain. Most handlers only care about one
// direction; embedding Base supplies a passthrough default for the other.
type Handler interface {
	OnRequest(req *message.Request) session.Action
	OnBackendMessage(msg message.Message) []message.Message
}

// Base supplies the passthrough default for handlers that only implement
// one of the two directions.
type Base struct{}

func (Base) OnRequest(*message.Request) session.Action { return session.Forward() }
func (Base) OnBackendMessage(msg message.Message) []message.Message {
	return []message.Message{msg}
}

// Chain composes an ordered handler list into a single session.Interceptor.
type Chain struct {
	handlers []Handler
}

// NewChain builds a Chain from an ordered handler list. Order matters: see
// spec.md §4.4's mandatory reference chain for the canonical ordering.
func NewChain(handlers ...Handler) *Chain {
	return &Chain{handlers: handlers}
}

// OnRequest calls every handler in order, so observing handlers (e.g. the
// initialize-capability observer) see every request regardless of which
// handler ultimately decides the outcome. The first non-Forward result
// wins; later handlers are still invoked but cannot override it.
func (c *Chain) OnRequest(req *message.Request) session.Action {
	result := session.Forward()
	decided := false
	for _, h := range c.handlers {
		action := h.OnRequest(req)
		if !decided && action.Kind != session.ActionForward {
			result = action
			decided = true
		}
	}
	return result
}

// OnBackendMessage flat-maps msg through every handler in order: handler
// i's output list is fed item-by-item into handler i+1.
func (c *Chain) OnBackendMessage(msg message.Message) []message.Message {
	current := []message.Message{msg}
	for _, h := range c.handlers {
		var next []message.Message
		for _, m := range current {
			next = append(next, h.OnBackendMessage(m)...)
		}
		current = next
	}
	return current
}
