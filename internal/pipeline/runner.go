package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/mailspend/internal/domain/classify"
	"github.com/FACorreiaa/mailspend/internal/domain/ledger"
	"github.com/FACorreiaa/mailspend/internal/mailbox"
)

// JobStats records one ingestion run for the job-stats workbook.
type JobStats struct {
	JobName    string
	StartedAt  time.Time
	FinishedAt time.Time
	Processed  int
	Errors     int
	Status     string
}

// Duration returns the wall time of the run.
func (s JobStats) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Runner connects the mailbox source to the orchestrator and owns the
// ingestion cursor. The cursor only advances after the batch commits,
// so a crashed run re-delivers its messages and the dedup key absorbs
// the repetition.
type Runner struct {
	source     mailbox.Source
	cursor     mailbox.CursorStore
	orch       *Orchestrator
	classifier *classify.Classifier
	store      ledger.Store
	batchSize  int
	logger     *slog.Logger
}

// NewRunner creates an ingestion runner.
func NewRunner(
	source mailbox.Source,
	cursor mailbox.CursorStore,
	orch *Orchestrator,
	classifier *classify.Classifier,
	store ledger.Store,
	batchSize int,
	logger *slog.Logger,
) *Runner {
	if batchSize < 1 {
		batchSize = 200
	}
	return &Runner{
		source:     source,
		cursor:     cursor,
		orch:       orch,
		classifier: classifier,
		store:      store,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// RunOnce processes one ingestion batch end to end.
func (r *Runner) RunOnce(ctx context.Context) (JobStats, error) {
	stats := JobStats{JobName: "ingest", StartedAt: time.Now(), Status: "ok"}

	cursor, err := r.cursor.Load(ctx)
	if err != nil {
		return r.fail(stats, fmt.Errorf("failed to load cursor: %w", err))
	}

	msgs, next, err := r.source.FetchSince(ctx, cursor, r.batchSize)
	if err != nil {
		return r.fail(stats, fmt.Errorf("mailbox fetch failed: %w", err))
	}
	if len(msgs) == 0 {
		stats.FinishedAt = time.Now()
		r.logger.Info("no new messages", slog.String("cursor", cursor))
		return stats, nil
	}

	// Earlier commits inform later batches: vendors confirmed last run
	// resolve as exact aliases this run.
	history, err := r.store.VendorHistory(ctx)
	if err != nil {
		return r.fail(stats, fmt.Errorf("failed to load vendor history: %w", err))
	}
	r.classifier.RebuildAliases(history)

	res, err := r.orch.ProcessBatch(ctx, msgs)
	stats.Processed = res.Processed
	stats.Errors = res.Failed
	if err != nil {
		return r.fail(stats, err)
	}

	if res.Failed > 0 {
		// Failed messages must be re-delivered; holding the cursor back
		// re-fetches the whole batch and dedup absorbs the successes.
		stats.Status = "partial"
		stats.FinishedAt = time.Now()
		r.logger.Warn("batch finished with failures, cursor not advanced",
			slog.Int("failed", res.Failed),
			slog.Int("processed", res.Processed),
		)
		return stats, nil
	}

	if err := r.cursor.Save(ctx, next); err != nil {
		return r.fail(stats, fmt.Errorf("failed to save cursor: %w", err))
	}

	stats.FinishedAt = time.Now()
	r.logger.Info("ingestion batch complete",
		slog.Int("messages", len(msgs)),
		slog.Int("created", res.Created),
		slog.Int("merged", res.Merged),
		slog.Int("discarded", res.Discarded),
		slog.Int("degraded", res.Degraded),
		slog.String("next_cursor", next),
	)
	return stats, nil
}

func (r *Runner) fail(stats JobStats, err error) (JobStats, error) {
	stats.Status = "failed"
	stats.FinishedAt = time.Now()
	stats.Errors++
	return stats, err
}
