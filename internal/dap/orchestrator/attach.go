package orchestrator

import (
	"context"

	"github.com/jomof/kdap/internal/dap/backend"
	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/dap/session"
)

// HandleAttach implements handle_attach (spec.md §4.5): analogous to
// handle_launch — same common-init, target-creation, initialized,
// configurationDone-intercept, and gated-response shape — but attaches to
// an already-running process instead of starting one, and stopOnEntry
// applies directly: a synthetic stopped event when requested, a resume
// otherwise. terminate_on_disconnect is left false (disconnect defaults to
// detach, not kill, for an attached session).
func (h *Handlers) HandleAttach(ctx context.Context, raw []byte, async session.AsyncContext) {
	if err := h.handleAttach(ctx, raw, async); err != nil {
		async.Logger().Error("orchestrator: attach failed", "error", err)
	}
}

func (h *Handlers) handleAttach(ctx context.Context, raw []byte, async session.AsyncContext) error {
	req, err := parseRequest(raw)
	if err != nil {
		return err
	}
	args, ok := req.Attach()
	if !ok {
		args = &message.AttachArguments{}
	}

	if err := runCommonInit(ctx, async, h.sb, &args.CommonArguments); err != nil {
		sendFailedResponse(async, message.CommandAttach, req.Seq, err)
		return err
	}

	// Attach-by-name falls back to an unbound target when no program path
	// was given; the backend resolves the executable from the pid/wait.
	if len(args.TargetCreateCommands) > 0 {
		err = h.target.CreateTargetViaCommands(ctx, args.TargetCreateCommands)
	} else {
		err = h.target.CreateTargetForAttach(ctx, args.Program)
	}
	if err != nil {
		sendFailedResponse(async, message.CommandAttach, req.Seq, err)
		return err
	}

	if err := sendEvent(async, message.EventInitialized, nil); err != nil {
		return err
	}

	configDoneRaw, err := async.InterceptClientRequest(ctx, message.CommandConfigurationDone)
	if err != nil {
		sendFailedResponse(async, message.CommandAttach, req.Seq, err)
		return err
	}
	configDoneSeq := req.Seq
	if msg, perr := message.Parse(configDoneRaw); perr == nil {
		configDoneSeq = msg.SeqNumber()
	}

	async.ActivateEventGate()

	pid, err := h.target.Attach(ctx, backend.AttachInfo{
		PID:            args.PID,
		Executable:     args.Program,
		WaitFor:        args.WaitFor,
		IgnoreExisting: args.IgnoreExisting,
	})
	if err != nil {
		async.ReleaseEventGate()
		sendFailedResponse(async, message.CommandAttach, req.Seq, err)
		return err
	}
	h.state.setProcessRunning(true)

	if err := sendEvent(async, message.EventProcess, &message.ProcessEventBody{
		Name:            args.Program,
		SystemProcessID: pid,
		StartMethod:     "attach",
	}); err != nil {
		async.ReleaseEventGate()
		return err
	}

	h.state.setTerminateOnDisconnect(false)
	h.state.setLifecycleCommands(parseOrNilGraceful(args.GracefulShutdown), args.PreTerminateCommands, args.ExitCommands)

	if err := sendResponse(async, message.CommandAttach, req.Seq, nil); err != nil {
		async.ReleaseEventGate()
		return err
	}
	if err := sendResponse(async, message.CommandConfigurationDone, configDoneSeq, nil); err != nil {
		async.ReleaseEventGate()
		return err
	}

	if args.StopOnEntry {
		if err := sendEvent(async, message.EventStopped, &message.StoppedEventBody{
			Reason:            "entry",
			AllThreadsStopped: true,
		}); err != nil {
			async.ReleaseEventGate()
			return err
		}
	} else {
		if err := h.target.Resume(ctx); err != nil {
			async.ReleaseEventGate()
			return err
		}
		if err := sendEvent(async, message.EventContinued, &message.ContinuedEventBody{AllThreadsContinued: true}); err != nil {
			async.ReleaseEventGate()
			return err
		}
	}
	async.ReleaseEventGate()

	return nil
}
