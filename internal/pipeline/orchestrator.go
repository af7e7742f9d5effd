// Package pipeline drives ingestion batches through the per-message
// stage chain and schedules forecast refreshes. Failures are isolated
// per message; only the ledger commit decides whether a candidate took
// effect.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/mailspend/internal/domain/classify"
	"github.com/FACorreiaa/mailspend/internal/domain/ingest/extractor"
	"github.com/FACorreiaa/mailspend/internal/domain/ingest/normalizer"
	"github.com/FACorreiaa/mailspend/internal/domain/ledger"
	"github.com/FACorreiaa/mailspend/internal/mailbox"
	"github.com/FACorreiaa/mailspend/pkg/metrics"
)

// Config controls batch parallelism and capability retry policy.
type Config struct {
	Workers          int
	MaxAttempts      int
	RetryBaseDelay   time.Duration
	CapabilityPerSec float64
}

// BatchResult summarizes one ingestion batch.
type BatchResult struct {
	Processed int
	Failed    int
	Created   int
	Merged    int
	Rejected  int
	Discarded int
	Degraded  int
}

// Orchestrator runs the normalize-extract-classify-reconcile chain for
// each message of a batch over a bounded worker pool.
type Orchestrator struct {
	normalizer *normalizer.Normalizer
	extractor  *extractor.Extractor
	classifier *classify.Classifier
	reconciler *ledger.Reconciler
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	limiter    *rate.Limiter
	cfg        Config
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(
	norm *normalizer.Normalizer,
	ext *extractor.Extractor,
	cls *classify.Classifier,
	rec *ledger.Reconciler,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}

	limit := rate.Limit(cfg.CapabilityPerSec)
	if cfg.CapabilityPerSec <= 0 {
		limit = rate.Inf
	}

	return &Orchestrator{
		normalizer: norm,
		extractor:  ext,
		classifier: cls,
		reconciler: rec,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer("mailspend/pipeline"),
		limiter:    rate.NewLimiter(limit, 1),
		cfg:        cfg,
	}
}

type messageOutcome struct {
	created   int
	merged    int
	rejected  int
	discarded int
	degraded  int
	err       error
}

// ProcessBatch runs one batch. A message-level failure marks that
// message for the next batch and the rest continue; cancellation stops
// the batch between messages and returns the context error.
func (o *Orchestrator) ProcessBatch(ctx context.Context, msgs []mailbox.RawMessage) (BatchResult, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.ProcessBatch",
		trace.WithAttributes(attribute.Int("batch.size", len(msgs))))
	defer span.End()

	jobs := make(chan mailbox.RawMessage)
	outcomes := make(chan messageOutcome, len(msgs))

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				outcomes <- o.processMessage(ctx, msg)
			}
		}()
	}

feed:
	for _, msg := range msgs {
		select {
		case jobs <- msg:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	var res BatchResult
	for out := range outcomes {
		if out.err != nil {
			res.Failed++
			o.metrics.MessagesFailed.Inc()
			continue
		}
		res.Processed++
		res.Created += out.created
		res.Merged += out.merged
		res.Rejected += out.rejected
		res.Discarded += out.discarded
		res.Degraded += out.degraded
		o.metrics.MessagesProcessed.Inc()
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// processMessage runs the full stage chain for one message. The context
// is checked between stages so a cancelled batch stops without leaving
// a partially reconciled candidate.
func (o *Orchestrator) processMessage(ctx context.Context, msg mailbox.RawMessage) messageOutcome {
	ctx, span := o.tracer.Start(ctx, "pipeline.processMessage",
		trace.WithAttributes(attribute.String("message.id", msg.ID)))
	defer span.End()

	var out messageOutcome

	if err := ctx.Err(); err != nil {
		out.err = err
		return out
	}

	norm := o.timedNormalize(msg)
	cands, discards := o.timedExtract(norm)

	out.discarded = len(discards)
	for _, d := range discards {
		o.metrics.Discards.WithLabelValues(d.Reason).Inc()
	}
	o.metrics.CandidatesTotal.Add(float64(len(cands)))

	for _, cand := range cands {
		if err := ctx.Err(); err != nil {
			out.err = err
			return out
		}

		classified, degraded, err := o.classifyWithRetry(ctx, cand)
		if err != nil {
			out.err = err
			return out
		}
		if degraded {
			out.degraded++
		}

		disposition, _, err := o.reconcile(ctx, classified)
		if err != nil {
			// Ledger write failure: the message retries next batch, the
			// batch itself continues.
			o.logger.Error("ledger reconcile failed",
				slog.String("message_id", msg.ID),
				slog.Any("error", err),
			)
			out.err = err
			return out
		}

		o.metrics.Dispositions.WithLabelValues(string(disposition)).Inc()
		switch disposition {
		case ledger.DispositionCreated:
			out.created++
		case ledger.DispositionMerged:
			out.merged++
		case ledger.DispositionRejected:
			out.rejected++
		}
	}

	return out
}

func (o *Orchestrator) timedNormalize(msg mailbox.RawMessage) normalizer.NormalizedText {
	timer := prometheus.NewTimer(o.metrics.StageDuration.WithLabelValues("normalize"))
	defer timer.ObserveDuration()
	return o.normalizer.Normalize(msg)
}

func (o *Orchestrator) timedExtract(norm normalizer.NormalizedText) ([]ledger.Candidate, []extractor.Discard) {
	timer := prometheus.NewTimer(o.metrics.StageDuration.WithLabelValues("extract"))
	defer timer.ObserveDuration()
	return o.extractor.Extract(norm)
}

// classifyWithRetry retries transient capability failures with bounded
// exponential backoff, then degrades to the fallback policy. Degraded
// results are committed like any other; only cancellation or an
// unexpected error aborts the message.
func (o *Orchestrator) classifyWithRetry(ctx context.Context, cand ledger.Candidate) (ledger.Candidate, bool, error) {
	timer := prometheus.NewTimer(o.metrics.StageDuration.WithLabelValues("classify"))
	defer timer.ObserveDuration()

	backoff := retry.WithMaxRetries(uint64(o.cfg.MaxAttempts-1), retry.NewExponential(o.cfg.RetryBaseDelay))

	var classified ledger.Candidate
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempt > 0 {
			o.metrics.CapabilityRetries.Inc()
		}
		attempt++

		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}

		res, err := o.classifier.Classify(ctx, cand)
		if err != nil {
			if errors.Is(err, classify.ErrUnavailable) {
				return retry.RetryableError(err)
			}
			return err
		}
		classified = res
		return nil
	})

	if err == nil {
		return classified, false, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return cand, false, err
	}
	if errors.Is(err, classify.ErrUnavailable) {
		o.metrics.DegradedMode.Inc()
		return o.classifier.Degrade(cand), true, nil
	}
	return cand, false, fmt.Errorf("classification failed: %w", err)
}

func (o *Orchestrator) reconcile(ctx context.Context, cand ledger.Candidate) (ledger.Disposition, *ledger.Transaction, error) {
	timer := prometheus.NewTimer(o.metrics.StageDuration.WithLabelValues("reconcile"))
	defer timer.ObserveDuration()
	return o.reconciler.Reconcile(ctx, cand)
}
