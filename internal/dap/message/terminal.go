package message

import (
	"encoding/json"
	"fmt"
)

// TerminalKind identifies which alternative of the polymorphic `terminal`
// launch argument is populated.
type TerminalKind int

const (
	// TerminalUnset means the field was absent entirely.
	TerminalUnset TerminalKind = iota
	TerminalIntegrated
	TerminalExternal
	TerminalConsole
	// TerminalPath is any string value other than the three enumerations
	// above: a TTY device path.
	TerminalPath
	// TerminalPID is a JSON integer: an existing process id to attach the
	// backend's stdio to.
	TerminalPID
)

// Terminal is the polymorphic `terminal` launch argument: an enum string,
// an arbitrary TTY path string, or a process id integer.
type Terminal struct {
	Kind TerminalKind
	Path string
	PID  int
}

func (t Terminal) MarshalJSON() ([]byte, error) {
	switch t.Kind {
	case TerminalIntegrated:
		return json.Marshal("integrated")
	case TerminalExternal:
		return json.Marshal("external")
	case TerminalConsole:
		return json.Marshal("console")
	case TerminalPath:
		return json.Marshal(t.Path)
	case TerminalPID:
		return json.Marshal(t.PID)
	default:
		return []byte("null"), nil
	}
}

func (t *Terminal) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "integrated":
			t.Kind = TerminalIntegrated
		case "external":
			t.Kind = TerminalExternal
		case "console":
			t.Kind = TerminalConsole
		default:
			t.Kind = TerminalPath
			t.Path = s
		}
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		t.Kind = TerminalPID
		t.PID = n
		return nil
	}

	return fmt.Errorf("message: terminal: unsupported value %s", string(data))
}

// IsIntegratedOrExternal reports whether the requested terminal requires
// the runInTerminal reverse-request handshake (spec.md §6).
func (t Terminal) IsIntegratedOrExternal() bool {
	return t.Kind == TerminalIntegrated || t.Kind == TerminalExternal
}
