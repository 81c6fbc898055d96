package intercept

import (
	"sync"

	"github.com/jomof/kdap/internal/dap/message"
)

// OutputCoalescer is the chain's handler #6, and must run last: it buffers
// consecutive `output` events sharing a non-console category and merges
// their text, flushing the buffer (placed before the triggering message)
// whenever a different category or a non-output message arrives. Console
// output is never coalesced and always flushes whatever non-console
// buffer is pending.
type OutputCoalescer struct {
	Base

	mu              sync.Mutex
	pending         *message.Event
	pendingCategory string
}

func (c *OutputCoalescer) OnBackendMessage(msg message.Message) []message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev, ok := msg.(*message.Event)
	if !ok || ev.Event != message.EventOutput {
		return c.flushBefore(msg)
	}
	body, ok := ev.Output()
	if !ok {
		return c.flushBefore(msg)
	}

	category := body.CategoryOrDefault()
	if category == message.CategoryConsole {
		return c.flushBefore(msg)
	}

	if c.pending != nil && c.pendingCategory == category {
		pendingBody, _ := c.pending.Output()
		merged := *pendingBody
		merged.Output = pendingBody.Output + body.Output
		if next, err := c.pending.WithBody(&merged); err == nil {
			c.pending = next
		}
		return nil
	}

	flushed := c.flush()
	c.pending = ev
	c.pendingCategory = category
	return flushed
}

// flushBefore flushes any pending coalesced event, then appends msg after
// it, so the buffer always drains before the message that triggered the
// flush.
func (c *OutputCoalescer) flushBefore(msg message.Message) []message.Message {
	out := c.flush()
	return append(out, msg)
}

func (c *OutputCoalescer) flush() []message.Message {
	if c.pending == nil {
		return nil
	}
	out := []message.Message{c.pending}
	c.pending = nil
	c.pendingCategory = ""
	return out
}
