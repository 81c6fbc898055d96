package sbfacade

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"

	"github.com/jomof/kdap/internal/kdaperr"
)

// Validator checks a user-authored scripted command (initCommands,
// preRunCommands, the launch/attach arguments' script fields) for
// balanced quoting and parens before it's embedded in a backend evaluate
// request — a malformed command shouldn't panic or hang the session, it
// should fail the launch with a clear message. Grounded on the teacher's
// pkg/parser/parser.go, which uses the same grammar to build a full AST;
// this only needs tree-sitter's error-node detection, not a full walk.
type Validator struct {
	language *sitter.Language
}

// NewValidator builds a validator using the bash grammar, the closest
// fit for lldb's command syntax (quoting and parenthesization rules are
// shared, even though lldb commands aren't themselves shell scripts).
func NewValidator() *Validator {
	return &Validator{language: bash.GetLanguage()}
}

// CheckBalanced reports an error if script contains unbalanced quotes or
// parens, per the grammar's own error-node detection.
func (v *Validator) CheckBalanced(script string) error {
	parser := sitter.NewParser()
	parser.SetLanguage(v.language)

	tree := parser.Parse(nil, []byte(script))
	if tree == nil {
		return kdaperr.NewProtocolError("sbfacade: failed to parse scripted command", nil)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return kdaperr.NewProtocolError("sbfacade: failed to parse scripted command", nil)
	}
	if root.HasError() {
		return kdaperr.NewProtocolError(fmt.Sprintf("sbfacade: unbalanced quoting or parens in scripted command: %q", script), nil)
	}
	return nil
}
