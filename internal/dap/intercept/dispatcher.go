package intercept

import (
	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/dap/session"
)

// LifecycleDispatcher is the chain's handler #2: it recognizes the four
// requests the debug-session orchestrator fully owns and hands each to its
// own async handler, leaving everything else for later handlers to decide.
// It holds plain function values rather than an orchestrator reference so
// this package never imports orchestrator — the wiring code (cmd/kdap)
// supplies the closures, which is what keeps intercept and orchestrator
// from needing to depend on each other (spec.md §9).
type LifecycleDispatcher struct {
	Base
	OnLaunch     session.AsyncHandlerFunc
	OnAttach     session.AsyncHandlerFunc
	OnDisconnect session.AsyncHandlerFunc
	OnTerminate  session.AsyncHandlerFunc
}

func (d *LifecycleDispatcher) OnRequest(req *message.Request) session.Action {
	switch req.Command {
	case message.CommandLaunch:
		if d.OnLaunch != nil {
			return session.HandleAsync(d.OnLaunch)
		}
	case message.CommandAttach:
		if d.OnAttach != nil {
			return session.HandleAsync(d.OnAttach)
		}
	case message.CommandDisconnect:
		if d.OnDisconnect != nil {
			return session.HandleAsync(d.OnDisconnect)
		}
	case message.CommandTerminate:
		if d.OnTerminate != nil {
			return session.HandleAsync(d.OnTerminate)
		}
	}
	return session.Forward()
}
