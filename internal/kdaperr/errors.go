// Package kdaperr provides the typed error kinds the session router, the
// interception chain, and the orchestrator raise, adapted from the
// teacher's pkg/errors: a typed error with a Kind, contextual key/value
// pairs, and a captured stack.
package kdaperr

import (
	"fmt"
	"runtime"
	"strings"
)

// Kind is the error taxonomy from spec.md §7.
type Kind int

const (
	// KindProtocol: malformed framing or JSON; fatal to the session.
	KindProtocol Kind = iota
	// KindHandler: an async handler raised while processing a request; a
	// failed response is emitted for the triggering request, the session
	// continues.
	KindHandler
	// KindBackend: a forwarded command response had success=false.
	KindBackend
	// KindTerminalHandshake: the runInTerminal TCP handshake failed; the
	// launch falls back to no-TTY redirection and continues.
	KindTerminalHandshake
	// KindIO: read/write/close on a stream failed; fatal to the session.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "ProtocolError"
	case KindHandler:
		return "HandlerError"
	case KindBackend:
		return "BackendError"
	case KindTerminalHandshake:
		return "TerminalHandshakeError"
	case KindIO:
		return "IOError"
	default:
		return "UnknownError"
	}
}

// Error is KDAP's structured error type.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]interface{}
	Stack   []string
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))
	parts = append(parts, e.Message)
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("(caused by: %v)", e.Cause))
	}
	if len(e.Context) > 0 {
		var ctx []string
		for k, v := range e.Context {
			ctx = append(ctx, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("[%s]", strings.Join(ctx, ", ")))
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair to the error and returns it for
// chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
		Stack:   captureStack(2),
	}
}

func captureStack(skip int) []string {
	var stack []string
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if fn := runtime.FuncForPC(pc); fn != nil {
			stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		}
	}
	return stack
}

// NewProtocolError wraps a framing/parse failure. cause may be nil.
func NewProtocolError(message string, cause error) *Error {
	return newError(KindProtocol, message, cause)
}

// NewHandlerError wraps a failure inside an async handler.
func NewHandlerError(message string, cause error) *Error {
	return newError(KindHandler, message, cause)
}

// NewBackendError wraps a backend response with success=false.
func NewBackendError(command, backendMessage string) *Error {
	return newError(KindBackend, fmt.Sprintf("backend rejected %q: %s", command, backendMessage), nil).
		WithContext("command", command)
}

// NewTerminalHandshakeError wraps a runInTerminal handshake failure.
func NewTerminalHandshakeError(message string, cause error) *Error {
	return newError(KindTerminalHandshake, message, cause)
}

// NewIOError wraps a stream read/write/close failure.
func NewIOError(message string, cause error) *Error {
	return newError(KindIO, message, cause)
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// IsProtocolError reports whether err is a ProtocolError.
func IsProtocolError(err error) bool { return Is(err, KindProtocol) }

// IsBackendError reports whether err is a BackendError.
func IsBackendError(err error) bool { return Is(err, KindBackend) }

// IsTerminalHandshakeError reports whether err is a TerminalHandshakeError.
func IsTerminalHandshakeError(err error) bool { return Is(err, KindTerminalHandshake) }
