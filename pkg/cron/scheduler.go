// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// IngestJob runs one ingestion batch.
type IngestJob func(ctx context.Context) error

// ForecastJob refreshes forecasts for changed categories.
type ForecastJob func(ctx context.Context) error

// Scheduler drives the ingestion and forecast jobs on cron schedules.
type Scheduler struct {
	cron     *cron.Cron
	ingest   IngestJob
	forecast ForecastJob
	logger   *slog.Logger
}

// NewScheduler creates a scheduler with standard 5-field cron syntax.
func NewScheduler(ingest IngestJob, forecast ForecastJob, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	return &Scheduler{
		cron:     c,
		ingest:   ingest,
		forecast: forecast,
		logger:   logger,
	}
}

// Start registers both jobs and begins the schedule.
func (s *Scheduler) Start(ingestSpec, forecastSpec string) error {
	if _, err := s.cron.AddFunc(ingestSpec, s.runIngest); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(forecastSpec, s.runForecast); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("ingest_schedule", ingestSpec),
		slog.String("forecast_schedule", forecastSpec),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunIngestNow triggers an ingestion batch outside the schedule.
func (s *Scheduler) RunIngestNow() {
	go s.runIngest()
}

func (s *Scheduler) runIngest() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := s.ingest(ctx); err != nil {
		s.logger.Error("scheduled ingestion failed", slog.Any("error", err))
		return
	}

	// A committed batch may have changed category series; refresh
	// forecasts right away instead of waiting for the next slot.
	if err := s.forecast(ctx); err != nil {
		s.logger.Error("post-ingest forecast refresh failed", slog.Any("error", err))
	}
}

func (s *Scheduler) runForecast() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := s.forecast(ctx); err != nil {
		s.logger.Error("scheduled forecast refresh failed", slog.Any("error", err))
	}
}
