package intercept

import (
	"fmt"
	"regexp"

	"github.com/jomof/kdap/internal/dap/message"
)

// backendExitNoticePattern captures lldb-dap's own wording for a process
// exit console line so ExitStatusReformatter can reword it to CodeLLDB's.
var backendExitNoticePattern = regexp.MustCompile(`^Process (\d+) exited with status = (-?\d+)`)

// ExitStatusReformatter is the chain's handler #5: it rewords the
// backend's raw "Process <pid> exited with status = <code> ..." console
// line to the reference adapter's phrasing, leaving everything else (and
// the numeric exitCode on the `exited` event itself, per spec.md §6)
// untouched.
type ExitStatusReformatter struct {
	Base
}

func (ExitStatusReformatter) OnBackendMessage(msg message.Message) []message.Message {
	ev, ok := msg.(*message.Event)
	if !ok || ev.Event != message.EventOutput {
		return []message.Message{msg}
	}

	body, ok := ev.Output()
	if !ok || body.CategoryOrDefault() != message.CategoryConsole {
		return []message.Message{msg}
	}

	m := backendExitNoticePattern.FindStringSubmatch(body.Output)
	if m == nil {
		return []message.Message{msg}
	}

	rewritten := *body
	rewritten.Output = fmt.Sprintf("Process %s exited with code %s.\n", m[1], m[2])
	out, err := ev.WithBody(&rewritten)
	if err != nil {
		return []message.Message{msg}
	}
	return []message.Message{out}
}
