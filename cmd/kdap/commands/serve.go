package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jomof/kdap/internal/dap/intercept"
	"github.com/jomof/kdap/internal/dap/orchestrator"
	"github.com/jomof/kdap/internal/dap/session"
	"github.com/jomof/kdap/internal/dap/transport"
	"github.com/jomof/kdap/internal/kdapconfig"
	"github.com/jomof/kdap/internal/kdaplog"
)

// NewServeCommand builds the `serve` command: spawn the native backend,
// build the interception chain and session router, and pump messages
// between the IDE client (this process's own stdio) and the backend until
// either side disconnects.
func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the KDAP proxy over stdio",
		Long: `Serve starts KDAP as a Debug Adapter Protocol proxy: it speaks DAP to
an IDE client over its own stdin/stdout and relays to a native debugger
backend (lldb-dap by default) it spawns as a subprocess.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := kdapconfig.Default()
			if configPath != "" {
				loaded, err := kdapconfig.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			logger := kdaplog.New(kdaplog.Config{
				Level:  kdaplog.ParseLevel(cfg.LogLevel),
				Format: logFormat(cfg.LogFormat),
			})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			return runSession(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to kdap.yaml (defaults built in if omitted)")
	return cmd
}

func logFormat(s string) kdaplog.Format {
	if s == "json" {
		return kdaplog.JSONFormat
	}
	return kdaplog.TextFormat
}

// runSession spawns the backend, wires the interception chain and
// orchestrator, and pumps one debug session to completion.
func runSession(ctx context.Context, cfg kdapconfig.Config, logger *kdaplog.Logger) error {
	backendCmd := exec.CommandContext(ctx, cfg.Backend, cfg.BackendArgs...)
	backendCmd.Stderr = os.Stderr

	backendStdin, err := backendCmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("serve: backend stdin pipe: %w", err)
	}
	backendStdout, err := backendCmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("serve: backend stdout pipe: %w", err)
	}
	if err := backendCmd.Start(); err != nil {
		return fmt.Errorf("serve: start backend %s: %w", cfg.Backend, err)
	}
	defer backendCmd.Wait()

	clientEndpoint := session.NewStreamEndpoint(transport.StdioFiles())
	backendEndpoint := session.NewPipeEndpoint(backendStdout, backendStdin)

	sessionLogger := logger.WithTrace()
	router := session.NewRouter(clientEndpoint, backendEndpoint, nil, sessionLogger, session.Config{
		ChannelCapacity: cfg.ChannelCapacity,
	})

	// Handlers needs an AsyncContext at construction time (to build its SB
	// facade), but the interception chain needs Handlers' methods before
	// the Router can be given its final interceptor — Router.SetInterceptor
	// breaks that cycle.
	state := orchestrator.NewDebugSession()
	handlers := orchestrator.New(router, state, orchestrator.TerminalHelper{Path: cfg.TerminalHelper})

	chain := intercept.NewChain(
		intercept.NewInitializeObserver(state),
		&intercept.LifecycleDispatcher{
			OnLaunch:     handlers.HandleLaunch,
			OnAttach:     handlers.HandleAttach,
			OnDisconnect: handlers.HandleDisconnect,
			OnTerminate:  handlers.HandleTerminate,
		},
		&intercept.EvaluateContextRewriter{},
		&intercept.OutputCategoryNormalizer{},
		&intercept.ExitStatusReformatter{},
		&intercept.OutputCoalescer{},
	)
	router.SetInterceptor(chain)

	sessionLogger.Info("serve: session starting", "backend", cfg.Backend, "trace", sessionLogger.TraceID())
	err = router.Run(ctx)
	sessionLogger.Info("serve: session ended", "error", err)
	return err
}
