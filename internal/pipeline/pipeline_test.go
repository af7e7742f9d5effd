package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/mailspend/internal/domain/classify"
	"github.com/FACorreiaa/mailspend/internal/domain/forecast"
	"github.com/FACorreiaa/mailspend/internal/domain/ingest/extractor"
	"github.com/FACorreiaa/mailspend/internal/domain/ingest/normalizer"
	"github.com/FACorreiaa/mailspend/internal/domain/ledger"
	"github.com/FACorreiaa/mailspend/internal/mailbox"
	"github.com/FACorreiaa/mailspend/pkg/metrics"
	"github.com/FACorreiaa/mailspend/pkg/money"
)

type stubCapability struct {
	err error
}

func (s stubCapability) Classify(context.Context, string, []string) (string, float64, error) {
	return "", 0, s.err
}

func newTestPipeline(capability classify.Capability) (*Orchestrator, *ledger.MemoryStore, *classify.Classifier) {
	store := ledger.NewMemoryStore()
	norm := normalizer.New()
	ext := extractor.New(extractor.Config{FallbackLocale: money.LocaleUS, FallbackCurrency: money.USD}, nil)
	cls := classify.New(classify.Config{MinConfidence: 0.35, FuzzyThreshold: 85}, capability, slog.Default())
	rec := ledger.NewReconciler(store, 0.90, slog.Default())

	orch := NewOrchestrator(norm, ext, cls, rec, metrics.NewUnregistered(), slog.Default(), Config{
		Workers:        2,
		MaxAttempts:    2,
		RetryBaseDelay: time.Millisecond,
	})
	return orch, store, cls
}

func bankMessage(id, body string, at time.Time) mailbox.RawMessage {
	return mailbox.RawMessage{
		ID:         id,
		Sender:     "alerts@bank.com",
		Subject:    "Transaction alert",
		ReceivedAt: at,
		Body:       body,
	}
}

func TestProcessBatchCommitsLedgerRows(t *testing.T) {
	orch, store, _ := newTestPipeline(nil)
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	res, err := orch.ProcessBatch(context.Background(), []mailbox.RawMessage{
		bankMessage("m1", "You spent $42.50 at Acme Coffee on 2024-03-01", at),
		bankMessage("m2", "You spent $18.00 at City Gym on 2024-03-01", at),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, res.Created)
	assert.Zero(t, res.Failed)

	rows, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestProcessBatchIdempotentAcrossRuns(t *testing.T) {
	orch, store, _ := newTestPipeline(nil)
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	msg := bankMessage("m1", "You spent $42.50 at Acme Coffee on 2024-03-01", at)

	first, err := orch.ProcessBatch(context.Background(), []mailbox.RawMessage{msg})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := orch.ProcessBatch(context.Background(), []mailbox.RawMessage{msg})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Merged)

	rows, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1, "reprocessing must not duplicate ledger rows")
}

func TestProcessBatchIsolatesUnusableMessages(t *testing.T) {
	orch, store, _ := newTestPipeline(nil)
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	res, err := orch.ProcessBatch(context.Background(), []mailbox.RawMessage{
		bankMessage("m1", "Your monthly statement is ready", at),
		bankMessage("m2", "You spent $18.00 at City Gym on 2024-03-01", at),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Processed, "a discard is not a failure")
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Discarded)

	rows, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestProcessBatchDegradesOnCapabilityOutage(t *testing.T) {
	orch, store, _ := newTestPipeline(stubCapability{err: classify.ErrUnavailable})
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	res, err := orch.ProcessBatch(context.Background(), []mailbox.RawMessage{
		bankMessage("m1", "You spent $42.50 at Acme Coffee on 2024-03-01", at),
		bankMessage("m2", "You spent $18.00 at City Gym on 2024-03-01", at),
	})
	require.NoError(t, err, "capability outage must not fail the batch")

	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.Degraded)

	rows, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.NotZero(t, row.AmountMinor, "required fields stay both-or-neither")
		assert.NotEmpty(t, row.Direction)
		assert.Equal(t, ledger.CategoryUncategorized, row.Category)
	}
}

func TestProcessBatchFailsMessageOnUnexpectedClassifierError(t *testing.T) {
	orch, store, _ := newTestPipeline(stubCapability{err: errors.New("wire format mismatch")})
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	res, err := orch.ProcessBatch(context.Background(), []mailbox.RawMessage{
		bankMessage("m1", "You spent $42.50 at Acme Coffee on 2024-03-01", at),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Created)

	rows, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows, "no partial candidate reaches the ledger")
}

func TestProcessBatchCancellation(t *testing.T) {
	orch, store, _ := newTestPipeline(nil)
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.ProcessBatch(ctx, []mailbox.RawMessage{
		bankMessage("m1", "You spent $42.50 at Acme Coffee on 2024-03-01", at),
	})
	require.ErrorIs(t, err, context.Canceled)

	rows, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows, "a cancelled batch leaves the ledger unchanged")
}

func TestRunnerAdvancesCursorOnlyAfterCommit(t *testing.T) {
	orch, store, cls := newTestPipeline(nil)
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	source := &mailbox.StaticSource{Messages: []mailbox.RawMessage{
		bankMessage("m1", "You spent $42.50 at Acme Coffee on 2024-03-01", at),
		bankMessage("m2", "You spent $18.00 at City Gym on 2024-03-01", at.Add(time.Hour)),
	}}
	cursor := mailbox.NewFileCursorStore(filepath.Join(t.TempDir(), "last_run.json"))
	runner := NewRunner(source, cursor, orch, cls, store, 50, slog.Default())

	stats, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", stats.Status)
	assert.Equal(t, 2, stats.Processed)

	saved, err := cursor.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, at.Add(time.Hour).UTC().Format(time.RFC3339), saved)

	// The boundary message is re-served under the inclusive cursor and
	// the dedup key merges it instead of duplicating.
	stats, err = runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", stats.Status)
	assert.Equal(t, 1, stats.Processed)

	rows, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRunnerHoldsCursorBackOnFailures(t *testing.T) {
	orch, store, cls := newTestPipeline(stubCapability{err: errors.New("boom")})
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	source := &mailbox.StaticSource{Messages: []mailbox.RawMessage{
		bankMessage("m1", "You spent $42.50 at Acme Coffee on 2024-03-01", at),
	}}
	cursor := mailbox.NewFileCursorStore(filepath.Join(t.TempDir(), "last_run.json"))
	runner := NewRunner(source, cursor, orch, cls, store, 50, slog.Default())

	stats, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "partial", stats.Status)
	assert.Equal(t, 1, stats.Errors)

	saved, err := cursor.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, saved, "failed messages must be re-delivered next run")
}

func TestForecastRunnerSkipsUnchangedSeries(t *testing.T) {
	store := ledger.NewMemoryStore()
	rec := ledger.NewReconciler(store, 0.90, nil)
	gen := ledger.NewTestDataGenerator(7)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, cand := range gen.MonthlyCandidates("Groceries", 6, end) {
		_, _, err := rec.Reconcile(context.Background(), cand)
		require.NoError(t, err)
	}

	snapshots := forecast.NewMemorySnapshotStore()
	engine := forecast.NewEngine(store, forecast.NewHoltForecaster(), snapshots, forecast.Config{
		HorizonMonths:    6,
		MinHistoryMonths: 3,
	}, nil)
	runner := NewForecastRunner(engine, store, metrics.NewUnregistered(), slog.Default())

	require.NoError(t, runner.RunAll(context.Background()))
	history, err := snapshots.History(context.Background(), "Groceries")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// Unchanged ledger: no refit.
	require.NoError(t, runner.RunAll(context.Background()))
	history, err = snapshots.History(context.Background(), "Groceries")
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// A new commit changes the series and triggers a fresh snapshot.
	_, _, err = rec.Reconcile(context.Background(), gen.Candidate("Groceries", end.AddDate(0, 1, 14)))
	require.NoError(t, err)

	require.NoError(t, runner.RunAll(context.Background()))
	history, err = snapshots.History(context.Background(), "Groceries")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
