package intercept

import (
	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/dap/session"
)

// InitializeObserver is the chain's handler #1: it captures
// supportsRunInTerminalRequest off the client's initialize request without
// otherwise touching it, then forwards unchanged.
type InitializeObserver struct {
	Base
	recorder session.CapabilityRecorder
}

// NewInitializeObserver builds the observer, recording capabilities onto
// recorder as they're seen.
func NewInitializeObserver(recorder session.CapabilityRecorder) *InitializeObserver {
	return &InitializeObserver{recorder: recorder}
}

func (o *InitializeObserver) OnRequest(req *message.Request) session.Action {
	if args, ok := req.Initialize(); ok {
		o.recorder.SetSupportsRunInTerminal(args.SupportsRunInTerminalRequest)
	}
	return session.Forward()
}
