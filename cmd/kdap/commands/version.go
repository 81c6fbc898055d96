package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the 'version' command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print KDAP version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("KDAP - Debug Adapter Protocol proxy for lldb-dap")
			fmt.Println("Version: 0.1.0")
		},
	}
}
