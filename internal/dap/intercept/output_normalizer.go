package intercept

import (
	"regexp"
	"sync/atomic"

	"github.com/jomof/kdap/internal/dap/message"
)

// exitNoticePattern matches the backend's own process-exit console line,
// which the category normalizer leaves alone even after a continued event
// (spec.md §4.4 handler #4); the exit-status reformatter, not this
// handler, is responsible for rewording it.
var exitNoticePattern = regexp.MustCompile(`^Process \d+ exited with status = .*\n?$`)

// OutputCategoryNormalizer is the chain's handler #4. Before the debuggee
// has been resumed (no continued event observed yet), all console output
// is genuinely the debugger's own chatter and is left alone. After
// resume, debuggee-owned output events CodeLLDB would have routed through
// the stdout pipe arrive on lldb-dap's "console" category instead; this
// reclassifies them to "stdout" so the client's UI treats them the same
// way CodeLLDB's would.
type OutputCategoryNormalizer struct {
	Base
	seenContinued atomic.Bool
}

func (n *OutputCategoryNormalizer) OnBackendMessage(msg message.Message) []message.Message {
	ev, ok := msg.(*message.Event)
	if !ok {
		return []message.Message{msg}
	}

	if ev.Event == message.EventContinued {
		n.seenContinued.Store(true)
		return []message.Message{msg}
	}

	if ev.Event != message.EventOutput || !n.seenContinued.Load() {
		return []message.Message{msg}
	}

	body, ok := ev.Output()
	if !ok || body.CategoryOrDefault() != message.CategoryConsole {
		return []message.Message{msg}
	}
	if exitNoticePattern.MatchString(body.Output) {
		return []message.Message{msg}
	}

	stdout := message.Some(message.CategoryStdout)
	rewritten := *body
	rewritten.Category = &stdout
	out, err := ev.WithBody(&rewritten)
	if err != nil {
		return []message.Message{msg}
	}
	return []message.Message{out}
}
