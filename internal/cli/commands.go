package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch new messages and reconcile them into the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := deps.RunIngest(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("ingested %d message(s), %d error(s), status %s in %s\n",
				stats.Processed, stats.Errors, stats.Status, stats.Duration().Round(time.Millisecond))
			return nil
		},
	}
}

func newForecastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forecast",
		Short: "Refresh forecasts for categories whose series changed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return deps.RunForecast(cmd.Context())
		},
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the ledger to the configured CSV path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := deps.ExportLedger(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("exported %d ledger row(s) to %s\n", n, deps.Config.Export.LedgerCSVPath)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run continuously on the configured schedules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Config.Observability.MetricsEnabled {
				addr := fmt.Sprintf(":%d", deps.Config.Observability.MetricsPort)
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", deps.MetricsHandler())
					if err := http.ListenAndServe(addr, mux); err != nil {
						deps.Logger.Error("metrics server stopped", "error", err)
					}
				}()
				deps.Logger.Info("metrics server listening", "addr", addr)
			}

			if err := deps.Scheduler.Start(
				deps.Config.Pipeline.Schedule,
				deps.Config.Forecast.Schedule,
			); err != nil {
				return err
			}
			deps.Scheduler.RunIngestNow()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			<-deps.Scheduler.Stop().Done()
			deps.Logger.Info("shutdown complete")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("mailspend %s (%s)\n", version, commit)
		},
	}
}
