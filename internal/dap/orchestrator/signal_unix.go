//go:build unix

package orchestrator

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/jomof/kdap/internal/kdaperr"
)

// validateSignalName resolves name (e.g. "SIGTERM" or "TERM") against this
// platform's signal table before handle_terminate ever asks the backend
// about it, so a typo in a launch.json gracefulShutdown field is reported
// immediately rather than after a round trip to lldb-dap.
func validateSignalName(name string) error {
	bare := strings.TrimPrefix(strings.ToUpper(name), "SIG")
	if unix.SignalNum("SIG"+bare) == 0 {
		return kdaperr.NewProtocolError(fmt.Sprintf("orchestrator: gracefulShutdown names an unknown signal %q", name), nil)
	}
	return nil
}
