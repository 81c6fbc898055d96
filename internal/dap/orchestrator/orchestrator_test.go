package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/jomof/kdap/internal/dap/backend"
	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/kdaplog"
)

// fakeTarget is a recording backend.Target double — no lldb, no sbfacade,
// just enough bookkeeping for the handler tests to assert on call order
// and arguments.
type fakeTarget struct {
	mu      sync.Mutex
	calls   []string
	pid     int
	running bool
}

func (f *fakeTarget) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeTarget) CreateTarget(context.Context, string) error                  { f.record("CreateTarget"); return nil }
func (f *fakeTarget) CreateTargetViaCommands(context.Context, []string) error     { f.record("CreateTargetViaCommands"); return nil }
func (f *fakeTarget) CreateTargetForAttach(context.Context, string) error         { f.record("CreateTargetForAttach"); return nil }
func (f *fakeTarget) Launch(context.Context, backend.LaunchInfo) (int, error) {
	f.record("Launch")
	f.running = true
	return f.pid, nil
}
func (f *fakeTarget) LaunchViaCommands(context.Context, []string) (int, error) {
	f.record("LaunchViaCommands")
	f.running = true
	return f.pid, nil
}
func (f *fakeTarget) Attach(context.Context, backend.AttachInfo) (int, error) {
	f.record("Attach")
	f.running = true
	return f.pid, nil
}
func (f *fakeTarget) Resume(context.Context) error { f.record("Resume"); return nil }
func (f *fakeTarget) Kill(context.Context) error   { f.record("Kill"); f.running = false; return nil }
func (f *fakeTarget) Detach(context.Context) error { f.record("Detach"); f.running = false; return nil }
func (f *fakeTarget) Signal(context.Context, int) error                     { f.record("Signal"); return nil }
func (f *fakeTarget) SuppressStopAndNotify(context.Context, int) error      { f.record("SuppressStopAndNotify"); return nil }
func (f *fakeTarget) ProcessIsRunning(context.Context) (bool, error)        { return f.running, nil }
func (f *fakeTarget) SignalNumberForName(context.Context, string) (int, error) {
	f.record("SignalNumberForName")
	return 15, nil
}

// fakeAsync records every message sent to the client and answers
// InterceptClientRequest immediately, as if the client had already sent
// the claimed command.
type fakeAsync struct {
	mu       sync.Mutex
	sent     []json.RawMessage
	seq      int
	gateOpen bool
}

func (f *fakeAsync) SendReverseRequest(string, any) (int, error) { return 0, nil }
func (f *fakeAsync) AwaitResponse(context.Context, int) (*message.Response, error) {
	return nil, nil
}
func (f *fakeAsync) ForwardToBackend([]byte) error { return nil }
func (f *fakeAsync) SendEventToClient(raw []byte) error {
	f.mu.Lock()
	f.sent = append(f.sent, append(json.RawMessage(nil), raw...))
	f.mu.Unlock()
	return nil
}
func (f *fakeAsync) SendRequestToBackendAndAwait(context.Context, string, any) (*message.Response, error) {
	return nil, nil
}
func (f *fakeAsync) SendSilentRequestToBackendAndAwait(context.Context, string, any) (*message.Response, error) {
	return message.NewResponse(1, 1, message.CommandEvaluate, true, "", nil)
}
func (f *fakeAsync) InterceptClientRequest(ctx context.Context, command string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}
func (f *fakeAsync) ActivateEventGate() { f.gateOpen = true }
func (f *fakeAsync) ReleaseEventGate()  { f.gateOpen = false }
func (f *fakeAsync) Logger() *kdaplog.SessionLogger {
	return kdaplog.New(kdaplog.Config{}).WithTraceID("test")
}
func (f *fakeAsync) NextClientMessageSeq() int {
	f.seq++
	return f.seq
}

func (f *fakeAsync) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, raw := range f.sent {
		var probe struct {
			Command string `json:"command"`
			Event   string `json:"event"`
		}
		json.Unmarshal(raw, &probe)
		if probe.Command != "" {
			out = append(out, "response:"+probe.Command)
		} else if probe.Event != "" {
			out = append(out, "event:"+probe.Event)
		}
	}
	return out
}

func newTestHandlers(target backend.Target) *Handlers {
	state := NewDebugSession()
	return &Handlers{target: target, sb: nil, state: state, helper: TerminalHelper{}}
}

func TestHandleLaunchEmitsResponsesInOrder(t *testing.T) {
	target := &fakeTarget{pid: 4242}
	h := newTestHandlers(target)
	async := &fakeAsync{}

	req, err := message.NewRequest(10, message.CommandLaunch, &message.LaunchArguments{
		CommonArguments: message.CommonArguments{Program: "/bin/true"},
	})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	raw, err := req.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	if err := h.handleLaunch(context.Background(), raw, async); err != nil {
		t.Fatalf("handleLaunch: %v", err)
	}

	calls := target.calls
	wantCalls := []string{"CreateTarget", "Launch", "Resume"}
	if len(calls) != len(wantCalls) {
		t.Fatalf("target calls = %v, want %v", calls, wantCalls)
	}
	for i, c := range wantCalls {
		if calls[i] != c {
			t.Fatalf("target calls = %v, want %v", calls, wantCalls)
		}
	}

	msgs := async.commands()
	wantMsgs := []string{
		"event:output", "event:initialized", "event:output", "event:output",
		"response:launch", "response:configurationDone", "event:continued",
	}
	if len(msgs) != len(wantMsgs) {
		t.Fatalf("client messages = %v, want %v", msgs, wantMsgs)
	}
	for i, m := range wantMsgs {
		if msgs[i] != m {
			t.Fatalf("client messages = %v, want %v", msgs, wantMsgs)
		}
	}
}

func TestHandleLaunchStopOnEntrySkipsResume(t *testing.T) {
	target := &fakeTarget{pid: 1}
	h := newTestHandlers(target)
	async := &fakeAsync{}

	req, _ := message.NewRequest(10, message.CommandLaunch, &message.LaunchArguments{
		CommonArguments: message.CommonArguments{Program: "/bin/true", StopOnEntry: true},
	})
	raw, _ := req.ToJSON()

	if err := h.handleLaunch(context.Background(), raw, async); err != nil {
		t.Fatalf("handleLaunch: %v", err)
	}

	for _, c := range target.calls {
		if c == "Resume" {
			t.Fatalf("Resume should not be called when stopOnEntry is set, got %v", target.calls)
		}
	}
}

func TestHandleDisconnectKillsWhenTerminateOnDisconnect(t *testing.T) {
	target := &fakeTarget{pid: 1, running: true}
	h := newTestHandlers(target)
	h.state.setProcessRunning(true)
	h.state.setTerminateOnDisconnect(true)
	async := &fakeAsync{}

	req, _ := message.NewRequest(11, message.CommandDisconnect, &message.DisconnectArguments{})
	raw, _ := req.ToJSON()

	if err := h.handleDisconnect(context.Background(), raw, async); err != nil {
		t.Fatalf("handleDisconnect: %v", err)
	}

	found := false
	for _, c := range target.calls {
		if c == "Kill" {
			found = true
		}
		if c == "Detach" {
			t.Fatalf("expected Kill, not Detach, got %v", target.calls)
		}
	}
	if !found {
		t.Fatalf("expected Kill call, got %v", target.calls)
	}
	if h.state.ProcessRunning() {
		t.Fatal("expected ProcessRunning false after disconnect")
	}
}

func TestHandleDisconnectHonorsExplicitTerminateDebuggeeFalse(t *testing.T) {
	target := &fakeTarget{pid: 1, running: true}
	h := newTestHandlers(target)
	h.state.setProcessRunning(true)
	h.state.setTerminateOnDisconnect(true)
	async := &fakeAsync{}

	noTerminate := message.Some(false)
	req, _ := message.NewRequest(11, message.CommandDisconnect, &message.DisconnectArguments{
		TerminateDebuggee: &noTerminate,
	})
	raw, _ := req.ToJSON()

	if err := h.handleDisconnect(context.Background(), raw, async); err != nil {
		t.Fatalf("handleDisconnect: %v", err)
	}

	for _, c := range target.calls {
		if c == "Kill" {
			t.Fatalf("expected Detach, not Kill, got %v", target.calls)
		}
	}
}

func TestHandleTerminateUsesGracefulSignal(t *testing.T) {
	target := &fakeTarget{pid: 1, running: true}
	h := newTestHandlers(target)
	h.state.setProcessRunning(true)
	h.state.setLifecycleCommands(&GracefulShutdown{SignalName: "SIGTERM"}, nil, nil)
	async := &fakeAsync{}

	req, _ := message.NewRequest(12, message.CommandTerminate, &message.TerminateArguments{})
	raw, _ := req.ToJSON()

	if err := h.handleTerminate(context.Background(), raw, async); err != nil {
		t.Fatalf("handleTerminate: %v", err)
	}

	wantCalls := []string{"SignalNumberForName", "SuppressStopAndNotify", "Signal"}
	if len(target.calls) != len(wantCalls) {
		t.Fatalf("target calls = %v, want %v", target.calls, wantCalls)
	}
	for i, c := range wantCalls {
		if target.calls[i] != c {
			t.Fatalf("target calls = %v, want %v", target.calls, wantCalls)
		}
	}
}
