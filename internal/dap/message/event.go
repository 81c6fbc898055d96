package message

import (
	"encoding/json"

	"github.com/jomof/kdap/internal/kdaperr"
)

// Known event names the proxy inspects.
const (
	EventInitialized = "initialized"
	EventProcess     = "process"
	EventOutput      = "output"
	EventContinued   = "continued"
	EventExited      = "exited"
	EventTerminated  = "terminated"
	EventStopped     = "stopped"
	EventCapabilities = "capabilities"
)

// Output categories (spec.md §4.1).
const (
	CategoryConsole = "console"
	CategoryStdout  = "stdout"
	CategoryStderr  = "stderr"
)

// OutputEventBody is the refined `output` event body. Category is
// Optional because an absent category and an explicit null are both
// observed in the wild and must not be confused with CategoryConsole.
type OutputEventBody struct {
	Category *Optional[string] `json:"category,omitempty"`
	Output   string            `json:"output"`
}

// ProcessEventBody is the refined `process` event body.
type ProcessEventBody struct {
	Name            string `json:"name"`
	SystemProcessID int    `json:"systemProcessId,omitempty"`
	StartMethod     string `json:"startMethod,omitempty"`
}

// ContinuedEventBody is the refined `continued` event body.
type ContinuedEventBody struct {
	ThreadID            int  `json:"threadId"`
	AllThreadsContinued bool `json:"allThreadsContinued,omitempty"`
}

// ExitedEventBody is the refined `exited` event body. ExitCode is
// propagated unchanged (spec.md §6): 8-bit truncation on POSIX, 32-bit
// signed on Windows; the core does not translate it.
type ExitedEventBody struct {
	ExitCode int `json:"exitCode"`
}

// TerminatedEventBody is the refined `terminated` event body.
type TerminatedEventBody struct {
	Restart *Optional[bool] `json:"restart,omitempty"`
}

// StoppedEventBody is the refined `stopped` event body.
type StoppedEventBody struct {
	Reason            string `json:"reason"`
	ThreadID          int    `json:"threadId,omitempty"`
	AllThreadsStopped bool   `json:"allThreadsStopped,omitempty"`
}

// CapabilitiesEventBody is the refined `capabilities` event body.
type CapabilitiesEventBody struct {
	Capabilities json.RawMessage `json:"capabilities"`
}

// Event is the tagged Event variant.
type Event struct {
	Seq   int
	Event string
	Body  json.RawMessage
	// Parsed holds one of the refined *...EventBody types above, or nil
	// for the Unknown catch-all.
	Parsed any
	raw    json.RawMessage
}

type eventEnvelope struct {
	Seq   int             `json:"seq"`
	Type  envelopeType    `json:"type"`
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

func parseEvent(raw []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, kdaperr.NewProtocolError("message: malformed event envelope", err)
	}

	ev := &Event{
		Seq:   env.Seq,
		Event: env.Event,
		Body:  env.Body,
		raw:   append(json.RawMessage(nil), raw...),
	}

	switch env.Event {
	case EventOutput:
		var body OutputEventBody
		if tryUnmarshal(env.Body, &body) {
			ev.Parsed = &body
		}
	case EventProcess:
		var body ProcessEventBody
		if tryUnmarshal(env.Body, &body) {
			ev.Parsed = &body
		}
	case EventContinued:
		var body ContinuedEventBody
		if tryUnmarshal(env.Body, &body) {
			ev.Parsed = &body
		}
	case EventExited:
		var body ExitedEventBody
		if tryUnmarshal(env.Body, &body) {
			ev.Parsed = &body
		}
	case EventTerminated:
		var body TerminatedEventBody
		if tryUnmarshal(env.Body, &body) {
			ev.Parsed = &body
		}
	case EventStopped:
		var body StoppedEventBody
		if tryUnmarshal(env.Body, &body) {
			ev.Parsed = &body
		}
	case EventCapabilities:
		var body CapabilitiesEventBody
		if tryUnmarshal(env.Body, &body) {
			ev.Parsed = &body
		}
	}

	return ev, nil
}

func (e *Event) SeqNumber() int           { return e.Seq }
func (e *Event) RawJSON() json.RawMessage { return e.raw }
func (*Event) isMessage()                 {}

// Output returns the refined output body, if this is a parsed output
// event.
func (e *Event) Output() (*OutputEventBody, bool) {
	b, ok := e.Parsed.(*OutputEventBody)
	return b, ok
}

// Continued returns the refined continued body, if this is a parsed
// continued event.
func (e *Event) Continued() (*ContinuedEventBody, bool) {
	b, ok := e.Parsed.(*ContinuedEventBody)
	return b, ok
}

// Stopped returns the refined stopped body, if this is a parsed stopped
// event.
func (e *Event) Stopped() (*StoppedEventBody, bool) {
	b, ok := e.Parsed.(*StoppedEventBody)
	return b, ok
}

func (e *Event) ToJSON() ([]byte, error) {
	if e.raw != nil {
		return e.raw, nil
	}
	env := eventEnvelope{
		Seq:   e.Seq,
		Type:  typeEvent,
		Event: e.Event,
		Body:  e.Body,
	}
	return json.Marshal(env)
}

// WithBody re-marshals v as the event's body and clears the cached raw
// bytes (used by interceptors that rewrite an event, e.g. the output
// coalescer and the category normalizer).
func (e *Event) WithBody(v any) (*Event, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	clone := *e
	clone.Body = data
	clone.Parsed = v
	clone.raw = nil
	return &clone, nil
}

// NewEvent builds an Event programmatically.
func NewEvent(seq int, event string, body any) (*Event, error) {
	var raw json.RawMessage
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return &Event{Seq: seq, Event: event, Body: raw, Parsed: body}, nil
}

// CategoryOrDefault returns the output category string, defaulting to
// CategoryConsole when the field is absent — DAP clients treat a missing
// category as console output.
func (b *OutputEventBody) CategoryOrDefault() string {
	if b.Category == nil {
		return CategoryConsole
	}
	if v, ok := b.Category.Get(); ok {
		return v
	}
	return CategoryConsole
}
