package sbfacade

import (
	"context"
	"fmt"
	"strings"

	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/dap/session"
	"github.com/jomof/kdap/internal/kdaperr"
)

// scriptCommand is lldb-dap's console command prefix that routes an
// expression through its embedded Python interpreter instead of lldb's
// expression evaluator.
const scriptCommand = "script "

// evaluateResultBody mirrors the refined evaluate response body's fields
// this package actually consumes.
type evaluateResultBody struct {
	Result             string `json:"result"`
	VariablesReference int    `json:"variablesReference"`
}

// SB is the facade over lldb-dap's scripting console: the orchestrator's
// launch/attach/disconnect/terminate handlers use it to run one-shot
// Python probes (checking `lldb.SBError` results, formatting event
// payloads CodeLLDB's own SBValue helpers would normally produce) without
// hand-rolling `evaluate` requests at every call site.
type SB struct {
	async   session.AsyncContext
	cache   *ScriptCache
	checker *Validator
}

// New builds an SB facade bound to async. cacheSize bounds the script
// result cache (see ScriptCache); pass 0 for a sensible default.
func New(async session.AsyncContext, cacheSize int) *SB {
	return &SB{
		async:   async,
		cache:   NewScriptCache(cacheSize),
		checker: NewValidator(),
	}
}

// Eval runs script (a Python expression synthesized by this package,
// never user-authored text) through the backend's interpreter via a
// silent evaluate request and returns its repr-unquoted result string.
// Results are never cached here — call EvalCached for scripts known to
// be idempotent within a session. Unlike EvalCommand, this does not run
// the quote/paren validator: the caller is always one of this package's
// own script builders, not user-authored input.
func (s *SB) Eval(ctx context.Context, script string) (string, error) {
	resp, err := s.async.SendSilentRequestToBackendAndAwait(ctx, message.CommandEvaluate, &message.EvaluateArguments{
		Expression: scriptCommand + script,
		Context:    "repl",
	})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", kdaperr.NewProtocolError(fmt.Sprintf("sbfacade: script failed: %s", resp.Message), nil)
	}

	var body evaluateResultBody
	if err := resp.BodyAs(&body); err != nil {
		return "", kdaperr.NewProtocolError("sbfacade: malformed evaluate response body", err)
	}
	return unreprString(body.Result), nil
}

// EvalCommand runs a single user-authored lldb CLI command (one entry
// from initCommands/preRunCommands/exitCommands/etc.) via a silent
// evaluate request, after checking it for balanced quotes and parens —
// unlike Eval, the text here originates from the launch/attach request,
// not from this package, so it's validated before being embedded.
func (s *SB) EvalCommand(ctx context.Context, cliCommand string) (string, error) {
	if err := s.checker.CheckBalanced(cliCommand); err != nil {
		return "", err
	}

	resp, err := s.async.SendSilentRequestToBackendAndAwait(ctx, message.CommandEvaluate, &message.EvaluateArguments{
		Expression: cliCommand,
		Context:    "repl",
	})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", kdaperr.NewBackendError(cliCommand, resp.Message)
	}

	var body evaluateResultBody
	if err := resp.BodyAs(&body); err != nil {
		return "", kdaperr.NewProtocolError("sbfacade: malformed evaluate response body", err)
	}
	return unreprString(body.Result), nil
}

// RunCommands runs each command in order via EvalCommand, aborting at the
// first failure (spec.md §4.5 "Scripted commands").
func (s *SB) RunCommands(ctx context.Context, commands []string) error {
	for _, cmd := range commands {
		if _, err := s.EvalCommand(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// EvalCached is Eval, but remembers script's result for the lifetime of
// the session so repeated calls (e.g. the launch and relaunch paths both
// installing the same error-check helper) don't round-trip to the
// backend a second time.
func (s *SB) EvalCached(ctx context.Context, script string) (string, error) {
	if cached, ok := s.cache.Get(script); ok {
		return cached, nil
	}
	result, err := s.Eval(ctx, script)
	if err != nil {
		return "", err
	}
	s.cache.Put(script, result)
	return result, nil
}

// Stats exposes the underlying script cache's hit/miss counters, mostly
// useful for session-end diagnostics logging.
func (s *SB) Stats() (hits, misses int64, size int) {
	return s.cache.Stats()
}

// unreprString undoes Python's repr() quoting on a string lldb-dap's
// scripting bridge returned as a result — it is never valid Go string
// syntax (Python favors single quotes and a distinct escape set), so
// strconv.Unquote can't be reused here.
func unreprString(s string) string {
	if len(s) < 2 {
		return s
	}
	quote := s[0]
	if (quote != '\'' && quote != '"') || s[len(s)-1] != quote {
		return s
	}
	body := s[1 : len(s)-1]

	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i == len(body)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case '\'':
			b.WriteByte('\'')
		case '"':
			b.WriteByte('"')
		default:
			b.WriteByte('\\')
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
