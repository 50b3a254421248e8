package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AdityaGoyal-512/notebook-runner/internal/logger"
	"github.com/AdityaGoyal-512/notebook-runner/internal/stub"
)

var rootCmd = &cobra.Command{
	Use:           "notebook-stub",
	Short:         "Stand-in backend for the notebook front ends",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "notebook-stub: %v\n", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var (
		addr      string
		staticDir string
		logFile   string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve both notebook endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if staticDir != "" {
				info, err := os.Stat(staticDir)
				if err != nil {
					return fmt.Errorf("static dir: %w", err)
				}
				if !info.IsDir() {
					return fmt.Errorf("static dir: %s is not a directory", staticDir)
				}
			}

			log, closeLog, err := logger.New(logger.Options{File: logFile, Level: logLevel, Console: true})
			if err != nil {
				return err
			}
			defer closeLog()

			app := stub.New(stub.Config{StaticDir: staticDir, Logger: log})

			errCh := make(chan error, 1)
			go func() {
				log.Info("stub listening", zap.String("addr", addr), zap.String("static", staticDir))
				errCh <- app.Listen(addr)
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
				log.Info("stub shutting down")
				return app.Shutdown()
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", ":8000", "listen address")
	flags.StringVar(&staticDir, "static", "", "directory served under /static")
	flags.StringVar(&logFile, "log-file", "notebook-stub.log", "log file")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	return cmd
}
