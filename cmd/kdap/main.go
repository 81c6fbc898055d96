package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jomof/kdap/cmd/kdap/commands"
)

func main() {
	os.Exit(run())
}

// run builds and executes the root command, returning the process exit
// code. Split out from main so the testscript harness can invoke it as an
// in-process subcommand (see main_test.go).
func run() int {
	rootCmd := &cobra.Command{
		Use:     "kdap",
		Short:   "KDAP - a concurrent Debug Adapter Protocol proxy for lldb-dap",
		Long:    `KDAP proxies the Debug Adapter Protocol between an IDE client and lldb-dap, filling in the gaps CodeLLDB's users rely on that lldb-dap alone does not provide.`,
		Version: "0.1.0",
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
