// Package transport implements the external collaborators spec.md §1 names
// only by the interfaces the core consumes: the Content-Length framing
// codec (§4.2) and the stdio/TCP-listen/TCP-connect stream constructors.
// None of this is part of the core's design — the session router only
// needs something that reads one framed JSON body per call and writes a
// framed body atomically — but a proxy that cannot actually run is not a
// complete module, so concrete implementations live here in the teacher's
// idiom (grounded on pkg/debugger/dap_server.go's readMessage/writeMessage).
package transport

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Reader reads one Content-Length-framed JSON body per call.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r in a framing Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadMessage reads header lines up to the blank line terminator, then
// exactly Content-Length bytes of body. It returns io.EOF when the
// underlying stream is exhausted between messages.
func (r *Reader) ReadMessage() ([]byte, error) {
	length := -1
	for {
		line, err := r.br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "content-length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("transport: malformed Content-Length header %q: %w", line, err)
			}
			length = n
		}
	}

	if length < 0 {
		return nil, fmt.Errorf("transport: frame missing Content-Length header")
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r.br, body); err != nil {
		return nil, err
	}
	return stripBOM(body), nil
}

// stripBOM removes a leading UTF-8 byte-order mark, tolerating backends
// that emit one even though DAP bodies are plain UTF-8 JSON (spec.md §4.1
// calls for tolerant parsing at the framing boundary).
func stripBOM(body []byte) []byte {
	if len(body) < 3 || body[0] != 0xEF || body[1] != 0xBB || body[2] != 0xBF {
		return body
	}
	decoded, err := io.ReadAll(transform.NewReader(
		strings.NewReader(string(body)),
		unicode.UTF8BOM.NewDecoder(),
	))
	if err != nil {
		return body[3:]
	}
	return decoded
}

// Writer atomically emits header + body to the underlying sink. A single
// Writer must not be used concurrently by more than one goroutine without
// external synchronization — the session router's single-writer-per-
// direction rule (spec.md §4.3) is what actually guarantees that, but
// Writer also serializes internally as a defensive measure.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w in a framing Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage writes one Content-Length-framed body.
func (w *Writer) WriteMessage(body []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	if _, err := w.w.Write([]byte(header)); err != nil {
		return err
	}
	_, err := w.w.Write(body)
	return err
}
