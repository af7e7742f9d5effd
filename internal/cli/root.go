// Package cli exposes the pipeline as subcommands: one-shot ingestion,
// forecast refresh, exports, and the long-running scheduled mode.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/mailspend/internal/app"
	"github.com/FACorreiaa/mailspend/pkg/config"
)

var deps *app.Dependencies

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mailspend",
		Short:         "Turn bank notification emails into a spending ledger and forecasts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel(),
			}))
			slog.SetDefault(logger)

			deps, err = app.InitDependencies(cfg, logger)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if deps != nil {
				deps.Close()
			}
		},
	}

	root.AddCommand(
		newIngestCmd(),
		newForecastCmd(),
		newExportCmd(),
		newRunCmd(),
		newVersionCmd(),
	)
	return root
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}
