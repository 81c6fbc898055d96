package sbfacade

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jomof/kdap/internal/dap/backend"
	"github.com/jomof/kdap/internal/kdaperr"
)

// errorCheckHelper defines a Python function that Launch, Attach and Resume
// below route their lldb SBError results through, so a failed SB call
// surfaces as a Go error instead of silently returning a zero value
// (spec.md §4.5 step 1: "define a reusable error-check helper...as a
// one-shot setup command"). Cached via EvalCached so it's only sent to
// the backend once per session regardless of how many operations run.
const errorCheckHelper = `exec("def _kdap_check(e):\n if e is not None and hasattr(e, 'Success') and not e.Success():\n  raise Exception(e.GetCString() or str(e))\n return e") or "ok"`

func (s *SB) ensureErrorCheckHelper(ctx context.Context) error {
	_, err := s.EvalCached(ctx, errorCheckHelper)
	return err
}

func pyStr(s string) string {
	return strconv.Quote(s)
}

func pyStrList(items []string) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = pyStr(it)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// CreateTarget implements backend.Target.
func (s *SB) CreateTarget(ctx context.Context, program string) error {
	script := fmt.Sprintf(
		"globals().__setitem__('_kdap_target', lldb.debugger.CreateTarget(%s)) or 'ok'",
		pyStr(program))
	_, err := s.Eval(ctx, script)
	return err
}

// CreateTargetViaCommands implements backend.Target.
func (s *SB) CreateTargetViaCommands(ctx context.Context, commands []string) error {
	if err := s.RunCommands(ctx, commands); err != nil {
		return err
	}
	_, err := s.Eval(ctx, "globals().__setitem__('_kdap_target', lldb.debugger.GetSelectedTarget()) or 'ok'")
	return err
}

// CreateTargetForAttach implements backend.Target.
func (s *SB) CreateTargetForAttach(ctx context.Context, executable string) error {
	program := "None"
	if executable != "" {
		program = pyStr(executable)
	}
	script := fmt.Sprintf("globals().__setitem__('_kdap_target', lldb.debugger.CreateTarget(%s)) or 'ok'", program)
	_, err := s.Eval(ctx, script)
	return err
}

// Launch implements backend.Target.
func (s *SB) Launch(ctx context.Context, info backend.LaunchInfo) (int, error) {
	if err := s.ensureErrorCheckHelper(ctx); err != nil {
		return 0, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "globals().__setitem__('_kdap_launch_info', lldb.SBLaunchInfo(%s))\n", pyStrList(info.Args))
	fmt.Fprintf(&b, "_kdap_launch_info.SetWorkingDirectory(%s)\n", pyStr(info.Cwd))
	for k, v := range info.Env {
		fmt.Fprintf(&b, "_kdap_launch_info.SetEnvironmentEntries([%s], True)\n", pyStr(k+"="+v))
	}
	for _, sr := range info.Stdio {
		fmt.Fprintf(&b, "_kdap_launch_info.AddOpenFileAction(%d, %s, %s, %s)\n",
			sr.FD, pyStr(sr.Path), strconv.FormatBool(sr.FD != 0), strconv.FormatBool(sr.FD == 0))
	}
	b.WriteString("_kdap_launch_error = lldb.SBError()\n")
	b.WriteString("_kdap_target.Launch(_kdap_launch_info, _kdap_launch_error)\n")
	b.WriteString("_kdap_check(_kdap_launch_error)\n")
	b.WriteString("globals().__setitem__('_kdap_process', _kdap_target.GetProcess())\n")
	b.WriteString("str(_kdap_process.GetProcessID())")

	result, err := s.Eval(ctx, b.String())
	if err != nil {
		return 0, err
	}
	return parsePID(result)
}

// LaunchViaCommands implements backend.Target.
func (s *SB) LaunchViaCommands(ctx context.Context, commands []string) (int, error) {
	if err := s.RunCommands(ctx, commands); err != nil {
		return 0, err
	}
	result, err := s.Eval(ctx, "globals().__setitem__('_kdap_process', _kdap_target.GetProcess())\nstr(_kdap_process.GetProcessID())")
	if err != nil {
		return 0, err
	}
	return parsePID(result)
}

// Attach implements backend.Target.
func (s *SB) Attach(ctx context.Context, info backend.AttachInfo) (int, error) {
	if err := s.ensureErrorCheckHelper(ctx); err != nil {
		return 0, err
	}

	var b strings.Builder
	b.WriteString("_kdap_attach_info = lldb.SBAttachInfo()\n")
	if info.Executable != "" {
		fmt.Fprintf(&b, "_kdap_attach_info.SetExecutable(%s)\n", pyStr(info.Executable))
	}
	if info.PID != 0 {
		fmt.Fprintf(&b, "_kdap_attach_info.SetProcessID(%d)\n", info.PID)
	}
	fmt.Fprintf(&b, "_kdap_attach_info.SetWaitForLaunch(%s, False)\n", strconv.FormatBool(info.WaitFor))
	fmt.Fprintf(&b, "_kdap_attach_info.SetIgnoreExisting(%s)\n", strconv.FormatBool(info.IgnoreExisting))
	b.WriteString("_kdap_attach_error = lldb.SBError()\n")
	b.WriteString("globals().__setitem__('_kdap_process', _kdap_target.Attach(_kdap_attach_info, _kdap_attach_error))\n")
	b.WriteString("_kdap_check(_kdap_attach_error)\n")
	b.WriteString("str(_kdap_process.GetProcessID())")

	result, err := s.Eval(ctx, b.String())
	if err != nil {
		return 0, err
	}
	return parsePID(result)
}

// Resume implements backend.Target.
func (s *SB) Resume(ctx context.Context) error {
	_, err := s.Eval(ctx, "_kdap_check(_kdap_process.Continue())\n'ok'")
	return err
}

// Kill implements backend.Target.
func (s *SB) Kill(ctx context.Context) error {
	_, err := s.Eval(ctx, "_kdap_process.Kill()\n'ok'")
	return err
}

// Detach implements backend.Target.
func (s *SB) Detach(ctx context.Context) error {
	_, err := s.Eval(ctx, "_kdap_process.Detach(False)\n'ok'")
	return err
}

// Signal implements backend.Target.
func (s *SB) Signal(ctx context.Context, signalNumber int) error {
	_, err := s.Eval(ctx, fmt.Sprintf("_kdap_process.Signal(%d)\n'ok'", signalNumber))
	return err
}

// SuppressStopAndNotify implements backend.Target.
func (s *SB) SuppressStopAndNotify(ctx context.Context, signalNumber int) error {
	script := fmt.Sprintf(
		"_kdap_unix_signals = _kdap_process.GetUnixSignals()\n"+
			"_kdap_unix_signals.SetShouldStop(%d, False)\n"+
			"_kdap_unix_signals.SetShouldNotify(%d, False)\n"+
			"_kdap_unix_signals.SetShouldSuppress(%d, True)\n"+
			"'ok'",
		signalNumber, signalNumber, signalNumber)
	_, err := s.Eval(ctx, script)
	return err
}

// ProcessIsRunning implements backend.Target.
func (s *SB) ProcessIsRunning(ctx context.Context) (bool, error) {
	result, err := s.Eval(ctx,
		"'yes' if _kdap_process.IsValid() and _kdap_process.GetState() in (lldb.eStateRunning, lldb.eStateStopped) else 'no'")
	if err != nil {
		return false, err
	}
	return result == "yes", nil
}

// SignalNumberForName implements backend.Target.
func (s *SB) SignalNumberForName(ctx context.Context, name string) (int, error) {
	bareName := strings.TrimPrefix(name, "SIG")
	result, err := s.Eval(ctx, fmt.Sprintf(
		"str(_kdap_target.GetPlatform().GetUnixSignals().GetSignalNumberFromName(%s))", pyStr(bareName)))
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(result))
	if convErr != nil || n < 0 {
		return 0, kdaperr.NewProtocolError(fmt.Sprintf("sbfacade: backend does not recognize signal %q", name), convErr)
	}
	return n, nil
}

func parsePID(result string) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(result))
	if err != nil {
		return 0, kdaperr.NewProtocolError(fmt.Sprintf("sbfacade: malformed pid in script result %q", result), err)
	}
	return pid, nil
}
