package orchestrator

import (
	"context"

	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/dap/session"
)

// HandleDisconnect implements handle_disconnect (spec.md §4.5): run
// preTerminateCommands while the debuggee is still alive, decide whether
// to kill or detach from terminateDebuggee (falling back to the stored
// terminate_on_disconnect when the request omits it), run exitCommands,
// and synthesize a terminated event since the backend has already been
// told to go away and won't send one of its own on this path.
func (h *Handlers) HandleDisconnect(ctx context.Context, raw []byte, async session.AsyncContext) {
	if err := h.handleDisconnect(ctx, raw, async); err != nil {
		async.Logger().Error("orchestrator: disconnect failed", "error", err)
	}
}

func (h *Handlers) handleDisconnect(ctx context.Context, raw []byte, async session.AsyncContext) error {
	req, err := parseRequest(raw)
	if err != nil {
		return err
	}
	args, ok := req.Disconnect()
	if !ok {
		args = &message.DisconnectArguments{}
	}

	if h.state.ProcessRunning() {
		if err := h.sb.RunCommands(ctx, h.state.PreTerminateCommands()); err != nil {
			async.Logger().Warn("orchestrator: preTerminateCommands failed during disconnect", "error", err)
		}

		killDebuggee := h.state.TerminateOnDisconnect()
		if args.TerminateDebuggee != nil {
			if v, ok := args.TerminateDebuggee.Get(); ok {
				killDebuggee = v
			}
		}

		var actionErr error
		if killDebuggee {
			actionErr = h.target.Kill(ctx)
		} else {
			actionErr = h.target.Detach(ctx)
		}
		if actionErr != nil {
			async.Logger().Warn("orchestrator: failed to stop debuggee on disconnect", "error", actionErr)
		}
		h.state.setProcessRunning(false)

		if err := h.sb.RunCommands(ctx, h.state.ExitCommands()); err != nil {
			async.Logger().Warn("orchestrator: exitCommands failed during disconnect", "error", err)
		}
	}

	if err := sendResponse(async, message.CommandDisconnect, req.Seq, nil); err != nil {
		return err
	}
	return sendEvent(async, message.EventTerminated, nil)
}
