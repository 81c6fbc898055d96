package intercept

import (
	"github.com/jomof/kdap/internal/dap/message"
	"github.com/jomof/kdap/internal/dap/session"
)

const (
	evaluateContextCommand = "_command"
	evaluateContextRepl    = "repl"
)

// EvaluateContextRewriter is the chain's handler #3: CodeLLDB's "command"
// evaluate context has no backend equivalent, so requests using it are
// rewritten to the backend's own "repl" context before forwarding;
// everything else passes through unchanged.
type EvaluateContextRewriter struct {
	Base
}

func (EvaluateContextRewriter) OnRequest(req *message.Request) session.Action {
	args, ok := req.Evaluate()
	if !ok || args.Context != evaluateContextCommand {
		return session.Forward()
	}

	rewritten := *args
	rewritten.Context = evaluateContextRepl
	modified, err := req.WithArguments(&rewritten)
	if err != nil {
		return session.Forward()
	}
	return session.ForwardModified(modified)
}
