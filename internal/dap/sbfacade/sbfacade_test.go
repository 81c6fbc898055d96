package sbfacade

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/kdaplog"
)

// fakeAsync implements session.AsyncContext with just enough behavior for
// these tests: SendSilentRequestToBackendAndAwait returns a canned
// response built from the script argument.
type fakeAsync struct {
	calls   int
	respond func(script string) (*message.Response, error)
}

func (f *fakeAsync) SendReverseRequest(string, any) (int, error) { return 0, nil }
func (f *fakeAsync) AwaitResponse(context.Context, int) (*message.Response, error) {
	return nil, nil
}
func (f *fakeAsync) ForwardToBackend([]byte) error { return nil }
func (f *fakeAsync) SendEventToClient([]byte) error { return nil }
func (f *fakeAsync) SendRequestToBackendAndAwait(context.Context, string, any) (*message.Response, error) {
	return nil, nil
}
func (f *fakeAsync) SendSilentRequestToBackendAndAwait(_ context.Context, _ string, args any) (*message.Response, error) {
	f.calls++
	evalArgs := args.(*message.EvaluateArguments)
	return f.respond(evalArgs.Expression)
}
func (f *fakeAsync) InterceptClientRequest(context.Context, string) (json.RawMessage, error) {
	return nil, nil
}
func (f *fakeAsync) ActivateEventGate()             {}
func (f *fakeAsync) ReleaseEventGate()              {}
func (f *fakeAsync) Logger() *kdaplog.SessionLogger { return nil }
func (f *fakeAsync) NextClientMessageSeq() int      { return 0 }

func newFakeAsync(result string) *fakeAsync {
	return &fakeAsync{
		respond: func(script string) (*message.Response, error) {
			return message.NewResponse(1, 1, message.CommandEvaluate, true, "", &evaluateResultBody{Result: result})
		},
	}
}

func TestEvalUnquotesDoubleQuotedResult(t *testing.T) {
	f := newFakeAsync(`"hello\nworld"`)
	sb := New(f, 0)

	got, err := sb.Eval(context.Background(), "1+1")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != "hello\nworld" {
		t.Fatalf("got %q", got)
	}
	if f.calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", f.calls)
	}
}

func TestEvalUnquotesSingleQuotedResult(t *testing.T) {
	f := newFakeAsync(`'it\'s fine'`)
	sb := New(f, 0)

	got, err := sb.Eval(context.Background(), "x")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != "it's fine" {
		t.Fatalf("got %q", got)
	}
}

// TestEvalCommandRejectsUnbalancedScript exercises EvalCommand, the only
// entry point that validates (user-authored lldb CLI commands go through
// it; Eval's scripts are proxy-generated Python and are never balance
// checked against the bash grammar).
func TestEvalCommandRejectsUnbalancedScript(t *testing.T) {
	f := newFakeAsync(`"unused"`)
	sb := New(f, 0)

	if _, err := sb.EvalCommand(context.Background(), `breakpoint set --name "unbalanced`); err == nil {
		t.Fatal("expected error for unbalanced command")
	}
	if f.calls != 0 {
		t.Fatalf("backend should not have been called, got %d calls", f.calls)
	}
}

func TestEvalCachedReusesResult(t *testing.T) {
	f := newFakeAsync(`"cached"`)
	sb := New(f, 0)

	for i := 0; i < 3; i++ {
		got, err := sb.EvalCached(context.Background(), "helper_setup()")
		if err != nil {
			t.Fatalf("EvalCached: %v", err)
		}
		if got != "cached" {
			t.Fatalf("got %q", got)
		}
	}
	if f.calls != 1 {
		t.Fatalf("expected exactly 1 backend call across repeated EvalCached, got %d", f.calls)
	}

	hits, misses, size := sb.Stats()
	if hits != 2 || misses != 1 || size != 1 {
		t.Fatalf("unexpected stats: hits=%d misses=%d size=%d", hits, misses, size)
	}
}
