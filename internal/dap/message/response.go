package message

import (
	"encoding/json"

	"github.com/jomof/kdap/internal/kdaperr"
)

// Response is the tagged Response variant.
type Response struct {
	Seq        int
	RequestSeq int
	Command    string
	Success    bool
	Message    string
	Body       json.RawMessage
	raw        json.RawMessage
}

type responseEnvelope struct {
	Seq        int             `json:"seq"`
	Type       envelopeType    `json:"type"`
	RequestSeq int             `json:"request_seq"`
	Command    string          `json:"command"`
	Success    bool            `json:"success"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

func parseResponse(raw []byte) (*Response, error) {
	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, kdaperr.NewProtocolError("message: malformed response envelope", err)
	}
	return &Response{
		Seq:        env.Seq,
		RequestSeq: env.RequestSeq,
		Command:    env.Command,
		Success:    env.Success,
		Message:    env.Message,
		Body:       env.Body,
		raw:        append(json.RawMessage(nil), raw...),
	}, nil
}

func (r *Response) SeqNumber() int           { return r.Seq }
func (r *Response) RawJSON() json.RawMessage { return r.raw }
func (*Response) isMessage()                 {}

func (r *Response) ToJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	env := responseEnvelope{
		Seq:        r.Seq,
		Type:       typeResponse,
		RequestSeq: r.RequestSeq,
		Command:    r.Command,
		Success:    r.Success,
		Message:    r.Message,
		Body:       r.Body,
	}
	return json.Marshal(env)
}

// BodyAs decodes the response body into dst.
func (r *Response) BodyAs(dst any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, dst)
}

// NewResponse builds a Response programmatically.
func NewResponse(seq, requestSeq int, command string, success bool, failureMessage string, body any) (*Response, error) {
	var raw json.RawMessage
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return &Response{
		Seq:        seq,
		RequestSeq: requestSeq,
		Command:    command,
		Success:    success,
		Message:    failureMessage,
		Body:       raw,
	}, nil
}
