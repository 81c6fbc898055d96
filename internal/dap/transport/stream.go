package transport

import (
	"io"
	"net"
	"os"
)

// Stream is a full-duplex, closable byte stream: a client or backend
// connection, regardless of how it was established.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// stdio pairs os.Stdin/os.Stdout (or any reader/writer pair) behind one
// Closer that closes both, for the "stdio transport" collaborator.
type stdio struct {
	in  io.Reader
	out io.Writer
}

// Stdio wraps the given reader/writer pair as a Stream. Closing it closes
// both sides if they implement io.Closer; os.Stdin/os.Stdout do.
func Stdio(in io.Reader, out io.Writer) Stream {
	return &stdio{in: in, out: out}
}

func (s *stdio) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *stdio) Write(p []byte) (int, error) { return s.out.Write(p) }
func (s *stdio) Close() error {
	var firstErr error
	if c, ok := s.in.(io.Closer); ok {
		if err := c.Close(); err != nil {
			firstErr = err
		}
	}
	if c, ok := s.out.(io.Closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ListenOnce binds a listener on addr, accepts exactly one connection, and
// closes the listener. This is the "TCP-listen" transport collaborator:
// one IDE client per proxy process.
func ListenOnce(addr string) (Stream, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	return ln.Accept()
}

// Connect dials addr and returns the connection. This is the "TCP-connect"
// transport collaborator, used when the backend itself listens (rather
// than being spawned as a subprocess KDAP owns).
func Connect(addr string) (Stream, error) {
	return net.Dial("tcp", addr)
}

// StdioFiles is a convenience constructor for the common case of proxying
// over the process's own stdin/stdout.
func StdioFiles() Stream {
	return Stdio(os.Stdin, os.Stdout)
}
