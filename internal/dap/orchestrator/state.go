// Package orchestrator implements the debug-session lifecycle: the
// launch/attach/disconnect/terminate handlers that own everything the
// interception chain and session router deliberately don't — target
// creation, process control, and the DebugSession state those decisions
// depend on (spec.md §4.5, §3 "DebugSession state").
package orchestrator

import (
	"encoding/json"
	"sync"

	"github.com/jomof/kdap/internal/kdaperr"
)

// GracefulShutdown is either a signal name (handle_terminate delivers it
// directly) or a command list (handle_terminate runs each one), per
// spec.md §3 and the `gracefulShutdown` launch/attach argument.
type GracefulShutdown struct {
	SignalName string
	Commands   []string
}

// parseGracefulShutdown decodes the polymorphic gracefulShutdown field: a
// JSON string is a signal name, a JSON array is a command list.
func parseGracefulShutdown(raw json.RawMessage) (*GracefulShutdown, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var signalName string
	if err := json.Unmarshal(raw, &signalName); err == nil {
		return &GracefulShutdown{SignalName: signalName}, nil
	}
	var commands []string
	if err := json.Unmarshal(raw, &commands); err == nil {
		return &GracefulShutdown{Commands: commands}, nil
	}
	return nil, kdaperr.NewProtocolError("orchestrator: gracefulShutdown is neither a signal name nor a command list", nil)
}

// DebugSession holds the state spec.md §3 says is "mutated only by async
// handlers running in the same logical session" — one instance per
// proxied session, shared by the four lifecycle handlers and the
// Initialize observer (via the CapabilityRecorder interface it
// implements).
type DebugSession struct {
	mu sync.Mutex

	clientSupportsRunInTerminal bool
	gracefulShutdown            *GracefulShutdown
	preTerminateCommands        []string
	exitCommands                []string
	terminateOnDisconnect       bool
	processRunning              bool
}

// NewDebugSession returns a DebugSession with its zero state: no
// capability assumed, no process running, terminate-on-disconnect false
// until a handler says otherwise.
func NewDebugSession() *DebugSession {
	return &DebugSession{}
}

// SetSupportsRunInTerminal implements session.CapabilityRecorder.
func (d *DebugSession) SetSupportsRunInTerminal(v bool) {
	d.mu.Lock()
	d.clientSupportsRunInTerminal = v
	d.mu.Unlock()
}

func (d *DebugSession) SupportsRunInTerminal() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clientSupportsRunInTerminal
}

func (d *DebugSession) setLifecycleCommands(graceful *GracefulShutdown, preTerminate, exit []string) {
	d.mu.Lock()
	d.gracefulShutdown = graceful
	d.preTerminateCommands = preTerminate
	d.exitCommands = exit
	d.mu.Unlock()
}

func (d *DebugSession) setTerminateOnDisconnect(v bool) {
	d.mu.Lock()
	d.terminateOnDisconnect = v
	d.mu.Unlock()
}

func (d *DebugSession) TerminateOnDisconnect() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.terminateOnDisconnect
}

func (d *DebugSession) setProcessRunning(v bool) {
	d.mu.Lock()
	d.processRunning = v
	d.mu.Unlock()
}

func (d *DebugSession) ProcessRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.processRunning
}

func (d *DebugSession) PreTerminateCommands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.preTerminateCommands
}

func (d *DebugSession) ExitCommands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exitCommands
}

func (d *DebugSession) GracefulShutdown() *GracefulShutdown {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gracefulShutdown
}
