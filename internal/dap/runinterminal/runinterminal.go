// Package runinterminal implements the reverse-request TCP handshake
// (spec.md §6) that asks the client to open a terminal running a small
// helper program, so the launched debuggee can be attached to a real
// TTY instead of the proxy's own stdio.
package runinterminal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/dap/session"
	"github.com/jomof/kdap/internal/kdaperr"
)

// Request describes the terminal the orchestrator wants opened.
type Request struct {
	Kind          string
	Title         string
	Cwd           string
	HelperPath    string
	HelperArgs    []string
	Env           map[string]string
	AcceptTimeout time.Duration

	// OnListening, if set, is called with the bound loopback port before
	// the reverse request is sent. Tests use this to dial in as the
	// helper program would; production callers leave it nil.
	OnListening func(port int)
}

// helperHandshake is the one JSON object the helper program writes back
// over the accepted connection.
type helperHandshake struct {
	TTY *string `json:"tty"`
}

// Handshake runs the full reverse-request protocol: bind a loopback
// listener, send `runInTerminal` to the client, await its response,
// accept the helper's connection, and read the TTY path it reports. An
// empty string with no error means the handshake completed but the
// helper reported no TTY (e.g. a non-interactive terminal); the caller
// falls back to unredirected stdio either way.
func Handshake(ctx context.Context, async session.AsyncContext, req Request) (string, error) {
	timeout := req.AcceptTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", kdaperr.NewTerminalHandshakeError("runinterminal: bind loopback listener", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	if req.OnListening != nil {
		req.OnListening(addr.Port)
	}
	args := append([]string{fmt.Sprintf("--connect=127.0.0.1:%d", addr.Port)}, req.HelperArgs...)

	seq, err := async.SendReverseRequest(message.CommandRunInTerminal, &message.RunInTerminalArguments{
		Kind:  req.Kind,
		Title: req.Title,
		Cwd:   req.Cwd,
		Args:  append([]string{req.HelperPath}, args...),
		Env:   req.Env,
	})
	if err != nil {
		return "", err
	}

	resp, err := async.AwaitResponse(ctx, seq)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", kdaperr.NewTerminalHandshakeError(fmt.Sprintf("runinterminal: client rejected runInTerminal: %s", resp.Message), nil)
	}

	acceptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := acceptWithContext(acceptCtx, listener)
	if err != nil {
		return "", kdaperr.NewTerminalHandshakeError("runinterminal: accept helper connection", err)
	}
	defer conn.Close()

	var hs helperHandshake
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&hs); err != nil {
		return "", kdaperr.NewTerminalHandshakeError("runinterminal: malformed helper handshake", err)
	}
	if _, err := conn.Write([]byte(`{"success":true}`)); err != nil {
		return "", kdaperr.NewTerminalHandshakeError("runinterminal: ack helper handshake", err)
	}

	if hs.TTY == nil {
		return "", nil
	}
	return *hs.TTY, nil
}

// acceptWithContext accepts one connection, honoring ctx's deadline by
// running the blocking Accept call on a goroutine and racing it against
// ctx.Done(); the listener itself is closed by the caller's defer, which
// also unblocks Accept if the context expires first.
func acceptWithContext(ctx context.Context, listener net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := listener.Accept()
		ch <- result{conn, err}
	}()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		listener.Close()
		<-ch
		return nil, ctx.Err()
	}
}
