package message

import (
	"encoding/json"

	"github.com/jomof/kdap/internal/kdaperr"
)

// Known request command names the proxy inspects. Anything else parses as
// an Unknown-command Request and is forwarded on raw JSON alone.
const (
	CommandInitialize         = "initialize"
	CommandLaunch             = "launch"
	CommandAttach             = "attach"
	CommandEvaluate           = "evaluate"
	CommandRunInTerminal      = "runInTerminal"
	CommandDisconnect         = "disconnect"
	CommandTerminate          = "terminate"
	CommandConfigurationDone  = "configurationDone"
)

// CommonArguments is the block of launch/attach fields shared between the
// two, flattened at the JSON level by anonymous embedding (Go's
// encoding/json promotes an embedded struct's fields to the parent object
// automatically when the embedded field has no json tag of its own).
type CommonArguments struct {
	InitCommands          []string          `json:"initCommands,omitempty"`
	PreRunCommands        []string          `json:"preRunCommands,omitempty"`
	PreTerminateCommands  []string          `json:"preTerminateCommands,omitempty"`
	ExitCommands          []string          `json:"exitCommands,omitempty"`
	TargetCreateCommands  []string          `json:"targetCreateCommands,omitempty"`
	ProcessCreateCommands []string          `json:"processCreateCommands,omitempty"`
	TerminateCommands     []string          `json:"terminateCommands,omitempty"`
	SourceMap             map[string]string `json:"sourceMap,omitempty"`
	Env                   map[string]string `json:"env,omitempty"`
	Cwd                   string            `json:"cwd,omitempty"`
	Args                  []string          `json:"args,omitempty"`
	Program               string            `json:"program,omitempty"`
	StopOnEntry           bool              `json:"stopOnEntry,omitempty"`
	Terminal              *Terminal         `json:"terminal,omitempty"`
	// GracefulShutdown is either a signal name (string) or a command list
	// ([]string); see spec.md §3 DebugSession state. Stored as RawMessage
	// and decoded by the orchestrator, which knows which shape to expect.
	GracefulShutdown json.RawMessage `json:"gracefulShutdown,omitempty"`
	Stdio            []*Terminal     `json:"stdio,omitempty"`
}

// LaunchArguments is the refined `launch` request payload.
type LaunchArguments struct {
	CommonArguments
	NoDebug bool `json:"noDebug,omitempty"`
}

// AttachArguments is the refined `attach` request payload.
type AttachArguments struct {
	CommonArguments
	PID             int  `json:"pid,omitempty"`
	WaitFor         bool `json:"waitFor,omitempty"`
	IgnoreExisting  bool `json:"ignoreExisting,omitempty"`
}

// InitializeArguments is the refined `initialize` request payload; the
// proxy only inspects client capability flags.
type InitializeArguments struct {
	SupportsRunInTerminalRequest bool `json:"supportsRunInTerminalRequest,omitempty"`
}

// EvaluateArguments is the refined `evaluate` request payload.
type EvaluateArguments struct {
	Expression string `json:"expression"`
	FrameID    int    `json:"frameId,omitempty"`
	Context    string `json:"context,omitempty"`
}

// DisconnectArguments is the refined `disconnect` request payload.
// TerminateDebuggee uses Optional because its absence (fall back to the
// session's stored terminate_on_disconnect) is meaningfully different from
// an explicit false.
type DisconnectArguments struct {
	TerminateDebuggee *Optional[bool] `json:"terminateDebuggee,omitempty"`
}

// TerminateArguments is the refined `terminate` request payload.
type TerminateArguments struct {
	Restart bool `json:"restart,omitempty"`
}

// RunInTerminalArguments is the refined reverse-request payload the proxy
// itself sends to the client (kind field documents it for completeness;
// the proxy constructs these programmatically, it never parses them).
type RunInTerminalArguments struct {
	Kind  string            `json:"kind,omitempty"`
	Title string            `json:"title,omitempty"`
	Cwd   string             `json:"cwd"`
	Args  []string           `json:"args"`
	Env   map[string]string `json:"env,omitempty"`
}

// Request is the tagged Request variant.
type Request struct {
	Seq       int
	Command   string
	Arguments json.RawMessage
	// Parsed holds one of *InitializeArguments, *LaunchArguments,
	// *AttachArguments, *EvaluateArguments, *DisconnectArguments,
	// *TerminateArguments, or nil for an unrecognized command (the
	// catch-all Unknown variant — round-trips via raw alone).
	Parsed any
	raw    json.RawMessage
}

type requestEnvelope struct {
	Seq       int             `json:"seq"`
	Type      envelopeType    `json:"type"`
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func parseRequest(raw []byte) (*Request, error) {
	var env requestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, kdaperr.NewProtocolError("message: malformed request envelope", err)
	}

	req := &Request{
		Seq:       env.Seq,
		Command:   env.Command,
		Arguments: env.Arguments,
		raw:       append(json.RawMessage(nil), raw...),
	}

	// Tolerant parsing: a known command whose arguments fail to parse
	// falls back to the Unknown catch-all rather than aborting the
	// session (spec.md §4.1) — the forwarded raw JSON is still valid.
	switch env.Command {
	case CommandInitialize:
		var args InitializeArguments
		if tryUnmarshal(env.Arguments, &args) {
			req.Parsed = &args
		}
	case CommandLaunch:
		var args LaunchArguments
		if tryUnmarshal(env.Arguments, &args) {
			req.Parsed = &args
		}
	case CommandAttach:
		var args AttachArguments
		if tryUnmarshal(env.Arguments, &args) {
			req.Parsed = &args
		}
	case CommandEvaluate:
		var args EvaluateArguments
		if tryUnmarshal(env.Arguments, &args) {
			req.Parsed = &args
		}
	case CommandDisconnect:
		var args DisconnectArguments
		if tryUnmarshal(env.Arguments, &args) {
			req.Parsed = &args
		}
	case CommandTerminate:
		var args TerminateArguments
		if tryUnmarshal(env.Arguments, &args) {
			req.Parsed = &args
		}
	}

	return req, nil
}

func tryUnmarshal(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 {
		return true
	}
	return json.Unmarshal(raw, dst) == nil
}

func (r *Request) SeqNumber() int             { return r.Seq }
func (r *Request) RawJSON() json.RawMessage   { return r.raw }
func (*Request) isMessage()                   {}

// Launch returns the refined launch arguments, if this is a parsed launch
// request.
func (r *Request) Launch() (*LaunchArguments, bool) {
	a, ok := r.Parsed.(*LaunchArguments)
	return a, ok
}

// Attach returns the refined attach arguments, if this is a parsed attach
// request.
func (r *Request) Attach() (*AttachArguments, bool) {
	a, ok := r.Parsed.(*AttachArguments)
	return a, ok
}

// Evaluate returns the refined evaluate arguments, if this is a parsed
// evaluate request.
func (r *Request) Evaluate() (*EvaluateArguments, bool) {
	a, ok := r.Parsed.(*EvaluateArguments)
	return a, ok
}

// Initialize returns the refined initialize arguments, if this is a parsed
// initialize request.
func (r *Request) Initialize() (*InitializeArguments, bool) {
	a, ok := r.Parsed.(*InitializeArguments)
	return a, ok
}

// Disconnect returns the refined disconnect arguments, if this is a parsed
// disconnect request.
func (r *Request) Disconnect() (*DisconnectArguments, bool) {
	a, ok := r.Parsed.(*DisconnectArguments)
	return a, ok
}

// Terminate returns the refined terminate arguments, if this is a parsed
// terminate request.
func (r *Request) Terminate() (*TerminateArguments, bool) {
	a, ok := r.Parsed.(*TerminateArguments)
	return a, ok
}

// WithArguments re-marshals v as the request's arguments and clears the
// cached raw bytes, so ToJSON re-derives the envelope (used by
// ForwardModified interceptor results, e.g. the evaluate context rewrite).
func (r *Request) WithArguments(v any) (*Request, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	clone := *r
	clone.Arguments = data
	clone.Parsed = v
	clone.raw = nil
	return &clone, nil
}

func (r *Request) ToJSON() ([]byte, error) {
	if r.raw != nil {
		return r.raw, nil
	}
	env := requestEnvelope{
		Seq:       r.Seq,
		Type:      typeRequest,
		Command:   r.Command,
		Arguments: r.Arguments,
	}
	return json.Marshal(env)
}

// NewRequest builds a Request programmatically (used by the async context
// to synthesize reverse and backend-bound requests). seq is assigned by
// the caller, typically from one of the session router's allocators.
func NewRequest(seq int, command string, args any) (*Request, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return &Request{Seq: seq, Command: command, Arguments: data, Parsed: args}, nil
}
