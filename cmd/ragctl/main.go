// Command ragctl administers a StreamFlix RAG deployment from the shell:
// loading indexes, inspecting the semantic cache and asking the help center.
// It reads the same environment as the server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"streamflix-rag/internal/app"
	"streamflix-rag/internal/config"
	"streamflix-rag/pkg/logging/logging"
)

var version = "dev"

func main() {
	var verbose bool

	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Manage StreamFlix search indexes, semantic cache and help center",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !verbose && os.Getenv("LOG_LEVEL") == "" {
				_ = os.Setenv("LOG_LEVEL", "warn")
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at info level")

	root.AddCommand(
		newIngestCmd(),
		newCacheCmd(),
		newAskCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// withApp wires an App from the environment, runs fn and closes it.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.DefaultLogger()
	defer func() { _ = logger.Sync() }()

	if cfg.Backend == "memory" {
		logger.Warn("memory backend selected; changes are lost when ragctl exits",
			zap.String("hint", "set VECTOR_BACKEND=redis or pgvector"))
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}
