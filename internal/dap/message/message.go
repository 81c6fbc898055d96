// Package message implements the DAP wire message model: a tagged sum type
// over requests, responses, and events with typed, refined variants for the
// commands and events the proxy inspects, a catch-all for everything else,
// and byte-exact passthrough for anything the interception chain leaves
// untouched.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/jomof/kdap/internal/kdaperr"
)

// envelopeType is the DAP `type` discriminant.
type envelopeType string

const (
	typeRequest  envelopeType = "request"
	typeResponse envelopeType = "response"
	typeEvent    envelopeType = "event"
)

// Message is the tagged sum type: exactly one of *Request, *Response, or
// *Event. Type switches on the concrete pointer type, never on a string.
type Message interface {
	// SeqNumber returns the message's `seq` field.
	SeqNumber() int
	// RawJSON returns the exact bytes this message was parsed from, or nil
	// if the message was constructed programmatically (and must be
	// serialized through ToJSON instead).
	RawJSON() json.RawMessage
	// ToJSON serializes the message. If RawJSON is non-nil and the message
	// has not been modified since parsing, ToJSON returns it unchanged
	// (identity passthrough); otherwise it re-derives JSON from the typed
	// fields.
	ToJSON() ([]byte, error)
	isMessage()
}

// envelopeProbe is used only to read the `type` discriminant and detect a
// missing one before committing to a variant-specific parse.
type envelopeProbe struct {
	Seq  *int         `json:"seq"`
	Type envelopeType `json:"type"`
}

// Parse decodes one JSON object into its tagged Message variant. Malformed
// JSON or a missing `type` field is a ProtocolError, per spec.md §4.1.
func Parse(raw []byte) (Message, error) {
	var probe envelopeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, kdaperr.NewProtocolError("message: malformed JSON envelope", err)
	}
	if probe.Type == "" {
		return nil, kdaperr.NewProtocolError("message: missing \"type\" field", nil)
	}
	if probe.Seq == nil {
		return nil, kdaperr.NewProtocolError("message: missing \"seq\" field", nil)
	}

	switch probe.Type {
	case typeRequest:
		return parseRequest(raw)
	case typeResponse:
		return parseResponse(raw)
	case typeEvent:
		return parseEvent(raw)
	default:
		return nil, kdaperr.NewProtocolError(fmt.Sprintf("message: unknown envelope type %q", probe.Type), nil)
	}
}
