package session

import (
	"io"

	"github.com/jomof/kdap/internal/dap/transport"
)

// Endpoint is one side (client or backend) of the proxy, expressed as the
// four independently closable handles spec.md §4.3's shutdown sequence
// names directly: client-input, client-output, backend-input,
// backend-output. A subprocess backend has genuinely separate stdin/stdout
// pipes; a combined transport.Stream (stdio, a TCP connection) reuses the
// same handle for all four closer roles, which is fine since transport.Stream
// already tolerates being asked to close twice in practice via its own
// Close semantics.
type Endpoint struct {
	Reader       io.Reader
	Writer       io.Writer
	ReaderCloser io.Closer
	WriterCloser io.Closer
}

// NewStreamEndpoint adapts a single full-duplex transport.Stream (stdio or
// a TCP connection) into an Endpoint.
func NewStreamEndpoint(s transport.Stream) Endpoint {
	return Endpoint{Reader: s, Writer: s, ReaderCloser: s, WriterCloser: s}
}

// NewPipeEndpoint adapts a subprocess's independent stdout/stdin pipes
// into an Endpoint, so closing the write side (the subprocess's stdin)
// doesn't also close the still-draining read side.
func NewPipeEndpoint(stdout io.ReadCloser, stdin io.WriteCloser) Endpoint {
	return Endpoint{Reader: stdout, Writer: stdin, ReaderCloser: stdout, WriterCloser: stdin}
}

func (e Endpoint) closeReader() error {
	if e.ReaderCloser == nil {
		return nil
	}
	return e.ReaderCloser.Close()
}

func (e Endpoint) closeWriter() error {
	if e.WriterCloser == nil {
		return nil
	}
	return e.WriterCloser.Close()
}
