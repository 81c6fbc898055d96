package orchestrator

import (
	"context"

	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/dap/session"
)

// HandleTerminate implements handle_terminate (spec.md §4.5): gracefulShutdown
// is either a signal name, delivered directly after telling the backend to
// suppress the stop/notify it would otherwise raise for it, or a command
// list, run through the SB facade verbatim. Absent either, it falls back
// to a plain kill.
func (h *Handlers) HandleTerminate(ctx context.Context, raw []byte, async session.AsyncContext) {
	if err := h.handleTerminate(ctx, raw, async); err != nil {
		async.Logger().Error("orchestrator: terminate failed", "error", err)
	}
}

func (h *Handlers) handleTerminate(ctx context.Context, raw []byte, async session.AsyncContext) error {
	req, err := parseRequest(raw)
	if err != nil {
		return err
	}

	if h.state.ProcessRunning() {
		graceful := h.state.GracefulShutdown()
		switch {
		case graceful != nil && graceful.SignalName != "":
			if err := h.terminateViaSignal(ctx, async, graceful.SignalName); err != nil {
				async.Logger().Warn("orchestrator: graceful signal termination failed, killing", "error", err)
				_ = h.target.Kill(ctx)
			}
		case graceful != nil && len(graceful.Commands) > 0:
			if err := h.sb.RunCommands(ctx, graceful.Commands); err != nil {
				async.Logger().Warn("orchestrator: graceful termination commands failed, killing", "error", err)
				_ = h.target.Kill(ctx)
			}
		default:
			if err := h.target.Kill(ctx); err != nil {
				async.Logger().Warn("orchestrator: kill failed during terminate", "error", err)
			}
		}
		h.state.setProcessRunning(false)
	}

	if err := sendResponse(async, message.CommandTerminate, req.Seq, nil); err != nil {
		return err
	}
	return sendEvent(async, message.EventTerminated, nil)
}

func (h *Handlers) terminateViaSignal(ctx context.Context, async session.AsyncContext, signalName string) error {
	if err := validateSignalName(signalName); err != nil {
		return err
	}
	signalNumber, err := h.target.SignalNumberForName(ctx, signalName)
	if err != nil {
		return err
	}
	if err := h.target.SuppressStopAndNotify(ctx, signalNumber); err != nil {
		return err
	}
	return h.target.Signal(ctx, signalNumber)
}
