package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AdityaGoyal-512/notebook-runner/internal/app"
	"github.com/AdityaGoyal-512/notebook-runner/internal/backend"
	"github.com/AdityaGoyal-512/notebook-runner/internal/config"
	"github.com/AdityaGoyal-512/notebook-runner/internal/history"
	"github.com/AdityaGoyal-512/notebook-runner/internal/logger"
	"github.com/AdityaGoyal-512/notebook-runner/internal/mcpserver"
	"github.com/AdityaGoyal-512/notebook-runner/internal/session"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "notebook-runner",
	Short:         "Trigger the two backend notebooks from the terminal",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: notebook-runner.yaml in . or the user config dir)")
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newMCPCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "notebook-runner: %v\n", err)
		os.Exit(1)
	}
}

// env is what every subcommand needs once config is resolved.
type env struct {
	cfg    *config.Config
	log    *zap.Logger
	client *backend.Client
	close  func()
}

func setup() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, closeLog, err := logger.New(logger.Options{File: cfg.Log.File, Level: cfg.Log.Level})
	if err != nil {
		return nil, err
	}
	client, err := backend.NewClient(cfg.Dispatch.BaseURL, backend.WithLogger(log))
	if err != nil {
		closeLog()
		return nil, err
	}
	return &env{cfg: cfg, log: log, client: client, close: closeLog}, nil
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !isTerminal(os.Stdout.Fd()) {
		return errors.New("stdout is not a terminal; use `notebook-runner run <1|2>` instead")
	}

	e, err := setup()
	if err != nil {
		return err
	}
	defer e.close()

	journal, err := history.OpenMemory()
	if err != nil {
		return err
	}
	defer journal.Close()

	e.log.Info("dispatcher starting", zap.String("base_url", e.client.BaseURL()))
	m := app.NewDispatcher(app.Deps{
		Client:  e.client,
		Journal: journal,
		Logger:  e.log,
		Timeout: e.cfg.RequestTimeout,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func parseNotebook(arg string) (backend.Notebook, error) {
	v, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", backend.ErrInvalidNotebook, arg)
	}
	n := backend.Notebook(v)
	return n, n.Validate()
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <1|2>",
		Short: "Run one notebook and print its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseNotebook(args[0])
			if err != nil {
				return err
			}

			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			if e.cfg.RequestTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
				defer cancel()
			}

			result, err := e.client.RunNotebook(ctx, n)
			if err != nil {
				e.log.Warn("notebook run failed", zap.Int("notebook", int(n)), zap.Error(err))
				result = backend.TransportFailure()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, session.StatusLine(result))
			fmt.Fprintln(out, session.RenderText(result))
			if !result.Success {
				return fmt.Errorf("notebook %d did not succeed", n)
			}
			return nil
		},
	}
	return cmd
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve run_notebook as an MCP tool over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.close()

			journal, err := history.OpenMemory()
			if err != nil {
				return err
			}
			defer journal.Close()

			h := mcpserver.NewHandler(e.client, journal, e.log, e.cfg.RequestTimeout)
			return mcpserver.Serve(h, version)
		},
	}
}
