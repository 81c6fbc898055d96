// Package backend names the debugger capability surface the orchestrator
// drives — target creation, process launch/attach, and process control —
// as a Go interface, independent of however a concrete implementation
// talks to the native debugger (the SB facade in internal/dap/sbfacade
// expresses every method below as a scripted Python evaluate request).
// Keeping this as an interface-only contract lets orchestrator tests
// substitute a fake without dragging in the real scripting round-trip.
package backend

import "context"

// StdioRedirect maps one of the debuggee's standard file descriptors to
// a path (typically a TTY obtained via the runInTerminal handshake).
type StdioRedirect struct {
	FD   int
	Path string
}

// LaunchInfo carries everything handle_launch accumulates before
// actually starting the debuggee (spec.md §4.5 step 7a).
type LaunchInfo struct {
	Program     string
	Args        []string
	Cwd         string
	Env         map[string]string
	StopOnEntry bool
	Stdio       []StdioRedirect
}

// AttachInfo carries handle_attach's target-selection fields.
type AttachInfo struct {
	PID            int
	Executable     string
	WaitFor        bool
	IgnoreExisting bool
}

// Target is the debugger capability surface the orchestrator's
// launch/attach/disconnect/terminate handlers drive.
type Target interface {
	// CreateTarget resolves the target from a program path.
	CreateTarget(ctx context.Context, program string) error
	// CreateTargetViaCommands runs user-supplied targetCreateCommands and
	// then resolves whichever target they selected.
	CreateTargetViaCommands(ctx context.Context, commands []string) error
	// CreateTargetForAttach resolves a target for attach-by-name, when no
	// executable path was given.
	CreateTargetForAttach(ctx context.Context, executable string) error

	// Launch starts the debuggee per info and returns its pid.
	Launch(ctx context.Context, info LaunchInfo) (int, error)
	// LaunchViaCommands runs user-supplied processCreateCommands and then
	// fetches the resulting process's pid.
	LaunchViaCommands(ctx context.Context, commands []string) (int, error)
	// Attach attaches to an existing or future process per info and
	// returns its pid.
	Attach(ctx context.Context, info AttachInfo) (int, error)

	// Resume continues a stopped process.
	Resume(ctx context.Context) error
	// Kill terminates the debuggee forcibly.
	Kill(ctx context.Context) error
	// Detach releases the debuggee without killing it.
	Detach(ctx context.Context) error
	// Signal delivers a POSIX signal number to the debuggee.
	Signal(ctx context.Context, signalNumber int) error
	// SuppressStopAndNotify marks a forthcoming signal delivery as one
	// that should neither stop the process nor notify the client — used
	// by handle_terminate's graceful-shutdown path.
	SuppressStopAndNotify(ctx context.Context, signalNumber int) error

	// ProcessIsRunning reports whether the debuggee process is alive.
	ProcessIsRunning(ctx context.Context) (bool, error)
	// SignalNumberForName resolves a POSIX signal name (e.g. "SIGTERM")
	// to its numeric value on the backend's platform, or an error if the
	// backend's platform doesn't recognize it.
	SignalNumberForName(ctx context.Context, name string) (int, error)
}
