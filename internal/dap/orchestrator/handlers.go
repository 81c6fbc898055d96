package orchestrator

import (
	"context"
	"fmt"

	"github.com/jomof/kdap/internal/dap/backend"
	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/dap/runinterminal"
	"github.com/jomof/kdap/internal/dap/sbfacade"
	"github.com/jomof/kdap/internal/dap/session"
	"github.com/jomof/kdap/internal/kdaperr"
)

const consoleModeAnnouncement = "Console is in 'commands' mode, prefix expressions with '?'.\n"

// TerminalHelper locates the small program the runInTerminal handshake
// tells the client to run; a real deployment ships it alongside the
// kdap binary (cmd/kdap wires the path in from the terminalHelper config
// setting or the KDAP_TERMINAL_HELPER environment variable).
type TerminalHelper struct {
	Path string
	Args []string
}

// Handlers bundles the four lifecycle handlers (spec.md §4.5) bound to
// one DebugSession and one backend.Target. A Handlers value supplies
// session.AsyncHandlerFunc closures to the intercept package's
// LifecycleDispatcher — it never imports intercept itself, keeping the
// dependency one-directional (orchestrator -> session, never the
// reverse).
type Handlers struct {
	target  backend.Target
	sb      *sbfacade.SB
	state   *DebugSession
	helper  TerminalHelper
}

// New builds a Handlers bound to async for its whole lifetime — the SB
// facade's script cache, and therefore the one-shot error-check helper
// it installs, persists across every launch/attach/disconnect/terminate
// call in the session.
func New(async session.AsyncContext, state *DebugSession, helper TerminalHelper) *Handlers {
	sb := sbfacade.New(async, 0)
	return &Handlers{target: sb, sb: sb, state: state, helper: helper}
}

func parseRequest(raw []byte) (*message.Request, error) {
	msg, err := message.Parse(raw)
	if err != nil {
		return nil, err
	}
	req, ok := msg.(*message.Request)
	if !ok {
		return nil, kdaperr.NewHandlerError("orchestrator: expected a request envelope", nil)
	}
	return req, nil
}

func sendFailedResponse(async session.AsyncContext, command string, requestSeq int, cause error) {
	resp, err := message.NewResponse(async.NextClientMessageSeq(), requestSeq, command, false, cause.Error(), nil)
	if err != nil {
		async.Logger().Error("orchestrator: failed to build failure response", "command", command, "error", err)
		return
	}
	body, err := resp.ToJSON()
	if err != nil {
		async.Logger().Error("orchestrator: failed to marshal failure response", "command", command, "error", err)
		return
	}
	if err := async.SendEventToClient(body); err != nil {
		async.Logger().Warn("orchestrator: failed to send failure response", "command", command, "error", err)
	}
}

func sendResponse(async session.AsyncContext, command string, requestSeq int, body any) error {
	resp, err := message.NewResponse(async.NextClientMessageSeq(), requestSeq, command, true, "", body)
	if err != nil {
		return err
	}
	data, err := resp.ToJSON()
	if err != nil {
		return err
	}
	return async.SendEventToClient(data)
}

func sendEvent(async session.AsyncContext, event string, body any) error {
	ev, err := message.NewEvent(async.NextClientMessageSeq(), event, body)
	if err != nil {
		return err
	}
	data, err := ev.ToJSON()
	if err != nil {
		return err
	}
	return async.SendEventToClient(data)
}

func sendConsole(async session.AsyncContext, text string) error {
	category := message.Some(message.CategoryConsole)
	return sendEvent(async, message.EventOutput, &message.OutputEventBody{Category: &category, Output: text})
}

func announceConsoleMode(async session.AsyncContext) error {
	return sendConsole(async, consoleModeAnnouncement)
}

// resolveStdio runs the runInTerminal handshake when the client
// advertised support and the requested terminal needs one, and returns
// the stdio redirections to apply to the launch info. A handshake
// failure or an unsupported terminal never aborts the launch — it just
// falls back to no redirection (spec.md §6).
func resolveStdio(ctx context.Context, async session.AsyncContext, state *DebugSession, helper TerminalHelper, common *message.CommonArguments) []backend.StdioRedirect {
	if common.Terminal == nil || !common.Terminal.IsIntegratedOrExternal() || !state.SupportsRunInTerminal() {
		return stdioFromExplicit(common)
	}

	kind := "integrated"
	if common.Terminal.Kind == message.TerminalExternal {
		kind = "external"
	}

	tty, err := runinterminal.Handshake(ctx, async, runinterminal.Request{
		Kind:       kind,
		Title:      common.Program,
		Cwd:        common.Cwd,
		HelperPath: helper.Path,
		HelperArgs: helper.Args,
	})
	if err != nil {
		async.Logger().Warn("orchestrator: runInTerminal handshake failed, launching without TTY redirection", "error", err)
		return stdioFromExplicit(common)
	}
	if tty == "" {
		return stdioFromExplicit(common)
	}
	return []backend.StdioRedirect{
		{FD: 0, Path: tty},
		{FD: 1, Path: tty},
		{FD: 2, Path: tty},
	}
}

// stdioFromExplicit reads the `stdio` launch argument, a JSON array
// positionally indexed by file descriptor (stdio[0] is fd 0, and so on) —
// the same convention CodeLLDB's reference adapter uses.
func stdioFromExplicit(common *message.CommonArguments) []backend.StdioRedirect {
	if len(common.Stdio) == 0 {
		return nil
	}
	redirects := make([]backend.StdioRedirect, 0, len(common.Stdio))
	for fd, t := range common.Stdio {
		if t == nil || t.Kind != message.TerminalPath {
			continue
		}
		redirects = append(redirects, backend.StdioRedirect{FD: fd, Path: t.Path})
	}
	return redirects
}

func runCommonInit(ctx context.Context, async session.AsyncContext, sb *sbfacade.SB, common *message.CommonArguments) error {
	if err := announceConsoleMode(async); err != nil {
		return err
	}
	if err := sb.RunCommands(ctx, common.InitCommands); err != nil {
		return fmt.Errorf("orchestrator: initCommands: %w", err)
	}
	for from, to := range common.SourceMap {
		if _, err := sb.Eval(ctx, fmt.Sprintf(
			"lldb.debugger.HandleCommand('settings append target.source-map %s %s') or 'ok'",
			pySourceMapEntry(from), pySourceMapEntry(to))); err != nil {
			return fmt.Errorf("orchestrator: sourceMap: %w", err)
		}
	}
	return nil
}

func pySourceMapEntry(s string) string {
	return fmt.Sprintf("%q", s)
}
