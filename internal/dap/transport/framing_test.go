package transport

import (
	"bytes"
	"io"
	"strconv"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	bodies := [][]byte{
		[]byte(`{"seq":1,"type":"request","command":"initialize"}`),
		[]byte(`{"seq":2,"type":"response","request_seq":1,"command":"initialize","success":true}`),
	}
	for _, b := range bodies {
		if err := w.WriteMessage(b); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}

	r := NewReader(&buf)
	for i, want := range bodies {
		got, err := r.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage[%d]: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("ReadMessage[%d] = %s, want %s", i, got, want)
		}
	}

	if _, err := r.ReadMessage(); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestReaderStripsBOM(t *testing.T) {
	body := append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"seq":1,"type":"event","event":"output"}`)...)
	var buf bytes.Buffer
	header := "Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n"
	buf.WriteString(header)
	buf.Write(body)

	r := NewReader(&buf)
	got, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if bytes.HasPrefix(got, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatalf("BOM was not stripped: %q", got)
	}
}

func TestReaderMissingContentLength(t *testing.T) {
	r := NewReader(bytes.NewBufferString("X-Custom: 1\r\n\r\n"))
	if _, err := r.ReadMessage(); err == nil {
		t.Fatal("expected error for missing Content-Length header")
	}
}
