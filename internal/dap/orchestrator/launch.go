package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomof/kdap/internal/dap/backend"
	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/dap/session"
)

// HandleLaunch implements handle_launch (spec.md §4.5): run common init,
// create the target (by program path or by targetCreateCommands), emit
// initialized and block for the client's configurationDone, resolve stdio
// via the runInTerminal handshake when requested, then inside one gated
// burst run preRunCommands, start the debuggee, and emit launch's
// response, configurationDone's response, and the continued event in that
// exact order (spec.md §4.5 step 7 — the gate keeps a backend event
// arriving mid-launch from interleaving with that three-message sequence).
func (h *Handlers) HandleLaunch(ctx context.Context, raw []byte, async session.AsyncContext) {
	if err := h.handleLaunch(ctx, raw, async); err != nil {
		async.Logger().Error("orchestrator: launch failed", "error", err)
	}
}

func (h *Handlers) handleLaunch(ctx context.Context, raw []byte, async session.AsyncContext) error {
	req, err := parseRequest(raw)
	if err != nil {
		return err
	}
	args, ok := req.Launch()
	if !ok {
		args = &message.LaunchArguments{}
	}

	if err := runCommonInit(ctx, async, h.sb, &args.CommonArguments); err != nil {
		sendFailedResponse(async, message.CommandLaunch, req.Seq, err)
		return err
	}

	if len(args.TargetCreateCommands) > 0 {
		err = h.target.CreateTargetViaCommands(ctx, args.TargetCreateCommands)
	} else {
		err = h.target.CreateTarget(ctx, args.Program)
	}
	if err != nil {
		sendFailedResponse(async, message.CommandLaunch, req.Seq, err)
		return err
	}

	if err := sendEvent(async, message.EventInitialized, nil); err != nil {
		return err
	}

	// Block for the client's configurationDone — it only arrives once the
	// client has received initialized, so this must come after emitting
	// it, not before.
	configDoneRaw, err := async.InterceptClientRequest(ctx, message.CommandConfigurationDone)
	if err != nil {
		sendFailedResponse(async, message.CommandLaunch, req.Seq, err)
		return err
	}
	configDoneSeq := req.Seq
	if msg, perr := message.Parse(configDoneRaw); perr == nil {
		configDoneSeq = msg.SeqNumber()
	}

	stdio := resolveStdio(ctx, async, h.state, h.helper, &args.CommonArguments)

	async.ActivateEventGate()

	if err := h.sb.RunCommands(ctx, args.PreRunCommands); err != nil {
		async.ReleaseEventGate()
		wrapped := fmt.Errorf("orchestrator: preRunCommands: %w", err)
		sendFailedResponse(async, message.CommandLaunch, req.Seq, wrapped)
		return wrapped
	}

	if err := sendConsole(async, launchingLine(args.Program, args.Args)); err != nil {
		async.ReleaseEventGate()
		return err
	}

	h.state.setProcessRunning(true)

	var pid int
	if len(args.ProcessCreateCommands) > 0 {
		pid, err = h.target.LaunchViaCommands(ctx, args.ProcessCreateCommands)
	} else {
		pid, err = h.target.Launch(ctx, backend.LaunchInfo{
			Program:     args.Program,
			Args:        args.Args,
			Cwd:         args.Cwd,
			Env:         args.Env,
			StopOnEntry: args.StopOnEntry,
			Stdio:       stdio,
		})
	}
	if err != nil {
		h.state.setProcessRunning(false)
		async.ReleaseEventGate()
		sendFailedResponse(async, message.CommandLaunch, req.Seq, err)
		return err
	}

	if err := sendConsole(async, fmt.Sprintf("Launched process %d from '%s'\n", pid, args.Program)); err != nil {
		async.ReleaseEventGate()
		return err
	}

	h.state.setTerminateOnDisconnect(true)
	h.state.setLifecycleCommands(parseOrNilGraceful(args.GracefulShutdown), args.PreTerminateCommands, args.ExitCommands)

	if err := sendResponse(async, message.CommandLaunch, req.Seq, nil); err != nil {
		async.ReleaseEventGate()
		return err
	}
	if err := sendResponse(async, message.CommandConfigurationDone, configDoneSeq, nil); err != nil {
		async.ReleaseEventGate()
		return err
	}
	if err := sendEvent(async, message.EventContinued, &message.ContinuedEventBody{AllThreadsContinued: true}); err != nil {
		async.ReleaseEventGate()
		return err
	}
	async.ReleaseEventGate()

	return nil
}

// launchingLine builds the exact "Launching: …" console line (spec.md §6):
// no trailing space when the program takes no arguments.
func launchingLine(program string, args []string) string {
	if len(args) == 0 {
		return fmt.Sprintf("Launching: %s\n", program)
	}
	return fmt.Sprintf("Launching: %s %s\n", program, strings.Join(args, " "))
}

func parseOrNilGraceful(raw []byte) *GracefulShutdown {
	g, err := parseGracefulShutdown(raw)
	if err != nil {
		return nil
	}
	return g
}
