package runinterminal

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/kdaplog"
)

// fakeAsync answers SendReverseRequest/AwaitResponse as a cooperative
// client would: it parses the connect port out of the request args and
// dials it back from a goroutine, acting as the terminal helper.
type fakeAsync struct {
	tty *string
}

func (f *fakeAsync) SendReverseRequest(command string, args any) (int, error) {
	rtArgs := args.(*message.RunInTerminalArguments)
	var port int
	for _, a := range rtArgs.Args {
		if strings.HasPrefix(a, "--connect=") {
			hostPort := strings.TrimPrefix(a, "--connect=")
			_, portStr, _ := net.SplitHostPort(hostPort)
			port, _ = strconv.Atoi(portStr)
		}
	}
	go func() {
		conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return
		}
		defer conn.Close()
		body, _ := json.Marshal(struct {
			TTY *string `json:"tty"`
		}{TTY: f.tty})
		conn.Write(body)
		buf := make([]byte, 64)
		conn.Read(buf)
	}()
	return 1, nil
}

func (f *fakeAsync) AwaitResponse(context.Context, int) (*message.Response, error) {
	return message.NewResponse(2, 1, message.CommandRunInTerminal, true, "", nil)
}
func (f *fakeAsync) ForwardToBackend([]byte) error  { return nil }
func (f *fakeAsync) SendEventToClient([]byte) error { return nil }
func (f *fakeAsync) SendRequestToBackendAndAwait(context.Context, string, any) (*message.Response, error) {
	return nil, nil
}
func (f *fakeAsync) SendSilentRequestToBackendAndAwait(context.Context, string, any) (*message.Response, error) {
	return nil, nil
}
func (f *fakeAsync) InterceptClientRequest(context.Context, string) (json.RawMessage, error) {
	return nil, nil
}
func (f *fakeAsync) ActivateEventGate()             {}
func (f *fakeAsync) ReleaseEventGate()              {}
func (f *fakeAsync) Logger() *kdaplog.SessionLogger { return nil }
func (f *fakeAsync) NextClientMessageSeq() int      { return 0 }

func TestHandshakeReturnsHelperTTY(t *testing.T) {
	tty := "/dev/pts/4"
	async := &fakeAsync{tty: &tty}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tty, err := Handshake(ctx, async, Request{
		Kind:       "integrated",
		HelperPath: "/usr/bin/kdap-terminal-helper",
	})
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if tty != "/dev/pts/4" {
		t.Fatalf("got %q", tty)
	}
}

func TestHandshakeHandlesNullTTY(t *testing.T) {
	async := &fakeAsync{tty: nil}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tty, err := Handshake(ctx, async, Request{
		Kind:       "external",
		HelperPath: "/usr/bin/kdap-terminal-helper",
	})
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if tty != "" {
		t.Fatalf("expected empty tty, got %q", tty)
	}
}
