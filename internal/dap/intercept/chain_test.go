package intercept

import (
	"context"
	"testing"

	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/dap/session"
)

type fakeRecorder struct {
	supportsRunInTerminal bool
}

func (f *fakeRecorder) SetSupportsRunInTerminal(v bool) { f.supportsRunInTerminal = v }

func mustEvent(t *testing.T, seq int, event string, body any) *message.Event {
	t.Helper()
	ev, err := message.NewEvent(seq, event, body)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return ev
}

func TestInitializeObserverRecordsCapabilityAndForwards(t *testing.T) {
	rec := &fakeRecorder{}
	chain := NewChain(NewInitializeObserver(rec))

	req, err := message.NewRequest(1, message.CommandInitialize, &message.InitializeArguments{SupportsRunInTerminalRequest: true})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	action := chain.OnRequest(req)
	if action.Kind != session.ActionForward {
		t.Fatalf("expected Forward, got %v", action.Kind)
	}
	if !rec.supportsRunInTerminal {
		t.Fatal("capability was not recorded")
	}
}

func TestEvaluateContextRewriterRewritesCommandContext(t *testing.T) {
	chain := NewChain(&EvaluateContextRewriter{})

	req, err := message.NewRequest(5, message.CommandEvaluate, &message.EvaluateArguments{Expression: "version", Context: "_command"})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	action := chain.OnRequest(req)
	if action.Kind != session.ActionForwardModified {
		t.Fatalf("expected ForwardModified, got %v", action.Kind)
	}
	args, ok := action.Request.Evaluate()
	if !ok || args.Context != "repl" {
		t.Fatalf("expected context rewritten to repl, got %+v", args)
	}
}

func TestEvaluateContextRewriterLeavesOtherContextsAlone(t *testing.T) {
	chain := NewChain(&EvaluateContextRewriter{})

	req, err := message.NewRequest(5, message.CommandEvaluate, &message.EvaluateArguments{Expression: "x", Context: "watch"})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	action := chain.OnRequest(req)
	if action.Kind != session.ActionForward {
		t.Fatalf("expected Forward, got %v", action.Kind)
	}
}

func TestOutputCategoryNormalizerRewritesAfterContinued(t *testing.T) {
	norm := &OutputCategoryNormalizer{}
	chain := NewChain(norm)

	continued := mustEvent(t, 1, message.EventContinued, &message.ContinuedEventBody{AllThreadsContinued: true})
	if out := chain.OnBackendMessage(continued); len(out) != 1 {
		t.Fatalf("continued event should pass through untouched, got %d messages", len(out))
	}

	console := message.Some(message.CategoryConsole)
	out := mustEvent(t, 2, message.EventOutput, &message.OutputEventBody{Category: &console, Output: "hello\n"})
	result := chain.OnBackendMessage(out)
	if len(result) != 1 {
		t.Fatalf("expected 1 message, got %d", len(result))
	}
	body, ok := result[0].(*message.Event).Output()
	if !ok || body.CategoryOrDefault() != message.CategoryStdout {
		t.Fatalf("expected category rewritten to stdout, got %+v", body)
	}
}

func TestOutputCategoryNormalizerKeepsExitNoticeOnConsole(t *testing.T) {
	norm := &OutputCategoryNormalizer{}
	norm.seenContinued.Store(true)
	chain := NewChain(norm)

	console := message.Some(message.CategoryConsole)
	out := mustEvent(t, 2, message.EventOutput, &message.OutputEventBody{Category: &console, Output: "Process 123 exited with status = 0\n"})
	result := chain.OnBackendMessage(out)
	body, ok := result[0].(*message.Event).Output()
	if !ok || body.CategoryOrDefault() != message.CategoryConsole {
		t.Fatalf("expected exit notice to remain console, got %+v", body)
	}
}

func TestExitStatusReformatterRewordsExitLine(t *testing.T) {
	chain := NewChain(&ExitStatusReformatter{})

	console := message.Some(message.CategoryConsole)
	ev := mustEvent(t, 1, message.EventOutput, &message.OutputEventBody{Category: &console, Output: "Process 4242 exited with status = 0 (0x00000000)\n"})
	result := chain.OnBackendMessage(ev)
	body, ok := result[0].(*message.Event).Output()
	if !ok {
		t.Fatal("expected output body")
	}
	want := "Process 4242 exited with code 0.\n"
	if body.Output != want {
		t.Fatalf("got %q, want %q", body.Output, want)
	}
}

func TestOutputCoalescerMergesConsecutiveSameCategory(t *testing.T) {
	chain := NewChain(&OutputCoalescer{})

	stdout := message.Some(message.CategoryStdout)
	a := mustEvent(t, 1, message.EventOutput, &message.OutputEventBody{Category: &stdout, Output: "foo"})
	b := mustEvent(t, 2, message.EventOutput, &message.OutputEventBody{Category: &stdout, Output: "bar"})

	if out := chain.OnBackendMessage(a); len(out) != 0 {
		t.Fatalf("first output should be held back, got %d messages", len(out))
	}
	if out := chain.OnBackendMessage(b); len(out) != 0 {
		t.Fatalf("second output should still be held back, got %d messages", len(out))
	}

	terminated := mustEvent(t, 3, message.EventTerminated, &message.TerminatedEventBody{})
	out := chain.OnBackendMessage(terminated)
	if len(out) != 2 {
		t.Fatalf("expected flushed coalesced event + terminated, got %d", len(out))
	}
	flushedBody, ok := out[0].(*message.Event).Output()
	if !ok || flushedBody.Output != "foobar" {
		t.Fatalf("expected merged text \"foobar\", got %+v", flushedBody)
	}
	if out[1].(*message.Event).Event != message.EventTerminated {
		t.Fatalf("expected terminated event second, got %+v", out[1])
	}
}

func TestOutputCoalescerNeverCoalescesConsole(t *testing.T) {
	chain := NewChain(&OutputCoalescer{})

	stdout := message.Some(message.CategoryStdout)
	console := message.Some(message.CategoryConsole)
	a := mustEvent(t, 1, message.EventOutput, &message.OutputEventBody{Category: &stdout, Output: "buffered"})
	c := mustEvent(t, 2, message.EventOutput, &message.OutputEventBody{Category: &console, Output: "console line\n"})

	if out := chain.OnBackendMessage(a); len(out) != 0 {
		t.Fatalf("expected held back, got %d", len(out))
	}
	out := chain.OnBackendMessage(c)
	if len(out) != 2 {
		t.Fatalf("expected flush + console passthrough, got %d", len(out))
	}
}

func TestLifecycleDispatcherReturnsHandleAsyncForLaunch(t *testing.T) {
	called := false
	d := &LifecycleDispatcher{OnLaunch: func(_ context.Context, _ []byte, _ session.AsyncContext) { called = true }}

	req, err := message.NewRequest(1, message.CommandLaunch, &message.LaunchArguments{})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	action := d.OnRequest(req)
	if action.Kind != session.ActionHandleAsync {
		t.Fatalf("expected HandleAsync, got %v", action.Kind)
	}
	action.Async(context.Background(), nil, nil)
	if !called {
		t.Fatal("expected async handler to be invoked")
	}
}
