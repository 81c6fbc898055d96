package transport

import (
	"io"
	"testing"

	"golang.org/x/net/nettest"
)

// TestListenOnceAcceptsOneConnection exercises the TCP-listen transport
// collaborator end to end: bind via nettest's portable loopback listener
// helper, connect with Connect, and round-trip a framed message.
func TestListenOnceAcceptsOneConnection(t *testing.T) {
	listener, err := nettest.NewLocalListener("tcp")
	if err != nil {
		t.Fatalf("NewLocalListener: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	serverCh := make(chan Stream, 1)
	errCh := make(chan error, 1)
	go func() {
		s, err := ListenOnce(addr)
		if err != nil {
			errCh <- err
			return
		}
		serverCh <- s
	}()

	client, err := Connect(addr)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	var server Stream
	select {
	case server = <-serverCh:
	case err := <-errCh:
		t.Fatalf("ListenOnce: %v", err)
	}
	defer server.Close()

	writer := NewWriter(client)
	if err := writer.WriteMessage([]byte(`{"seq":1,"type":"event","event":"initialized"}`)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	reader := NewReader(server)
	body, err := reader.ReadMessage()
	if err != nil && err != io.EOF {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(body) != `{"seq":1,"type":"event","event":"initialized"}` {
		t.Fatalf("got %q", body)
	}
}
