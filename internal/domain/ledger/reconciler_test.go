package ledger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/mailspend/pkg/money"
)

func testCandidate() Candidate {
	return Candidate{
		Amount:          money.New(4250, money.USD),
		Direction:       DirectionDebit,
		Vendor:          "ACME COFFEE",
		CanonicalVendor: "Acme Coffee",
		Category:        "Food & Drink",
		OccurredAt:      time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		SourceMessageID: "msg-1",
		Confidence: FieldConfidence{
			Amount:     1.0,
			Direction:  1.0,
			Vendor:     0.8,
			Category:   0.7,
			OccurredAt: 1.0,
		},
	}
}

func newTestReconciler(store Store) *Reconciler {
	return NewReconciler(store, 0.90, slog.Default())
}

func TestDedupKeyIgnoresMessageID(t *testing.T) {
	a := testCandidate()
	b := testCandidate()
	b.SourceMessageID = "msg-2"

	if a.DedupKey() != b.DedupKey() {
		t.Error("dedup key must be independent of the source message ID")
	}
}

func TestDedupKeyCollapsesVendorCase(t *testing.T) {
	a := testCandidate()
	a.CanonicalVendor = "Acme Coffee"

	b := testCandidate()
	b.CanonicalVendor = "ACME COFFEE"

	if a.DedupKey() != b.DedupKey() {
		t.Error("dedup key must be case-insensitive on vendor")
	}
}

func TestDedupKeyDistinguishesTransactions(t *testing.T) {
	base := testCandidate()

	changed := testCandidate()
	changed.Amount = money.New(4300, money.USD)
	if base.DedupKey() == changed.DedupKey() {
		t.Error("different amounts must produce different keys")
	}

	credited := testCandidate()
	credited.Direction = DirectionCredit
	if base.DedupKey() == credited.DedupKey() {
		t.Error("different directions must produce different keys")
	}
}

func TestReconcileIdempotentIngestion(t *testing.T) {
	store := NewMemoryStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	disp, first, err := r.Reconcile(ctx, testCandidate())
	require.NoError(t, err)
	assert.Equal(t, DispositionCreated, disp)
	require.NotNil(t, first)

	// Same message reprocessed in a later batch.
	disp, second, err := r.Reconcile(ctx, testCandidate())
	require.NoError(t, err)
	assert.Equal(t, DispositionMerged, disp)
	assert.Equal(t, first.ID, second.ID)

	rows, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "reprocessing must not create a second ledger row")
}

func TestReconcileConfidenceNeverDecreases(t *testing.T) {
	store := NewMemoryStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	high := testCandidate()
	high.Confidence.Vendor = 0.95
	_, _, err := r.Reconcile(ctx, high)
	require.NoError(t, err)

	low := testCandidate()
	low.SourceMessageID = "msg-2"
	low.Confidence.Vendor = 0.40
	low.CanonicalVendor = "Acme Cofee" // worse extraction of the same vendor

	_, merged, err := r.Reconcile(ctx, low)
	require.NoError(t, err)

	assert.Equal(t, 0.95, merged.Confidence.Vendor)
	assert.Equal(t, "Acme Coffee", merged.Vendor, "lower-confidence vendor must not replace the better one")
	assert.ElementsMatch(t, []string{"msg-1", "msg-2"}, merged.SourceMessageIDs)
}

func TestReconcileStatusNeverRegresses(t *testing.T) {
	store := NewMemoryStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	confident := testCandidate()
	_, row, err := r.Reconcile(ctx, confident)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, row.Status, "required-field confidence 1.0 should auto-confirm")

	weak := testCandidate()
	weak.SourceMessageID = "msg-2"
	weak.Confidence.Amount = 0.3
	weak.Confidence.Direction = 0.3

	_, merged, err := r.Reconcile(ctx, weak)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, merged.Status)
}

func TestReconcilePendingThenConfirm(t *testing.T) {
	store := NewMemoryStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	weak := testCandidate()
	weak.Confidence.Amount = 0.6
	weak.Confidence.Direction = 0.6

	_, row, err := r.Reconcile(ctx, weak)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingReview, row.Status)

	strong := testCandidate()
	strong.SourceMessageID = "msg-2"

	_, merged, err := r.Reconcile(ctx, strong)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, merged.Status, "refined confidence above threshold should confirm")
}

func TestReconcileRejectsIncompleteCandidate(t *testing.T) {
	store := NewMemoryStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	noAmount := testCandidate()
	noAmount.Amount = nil
	disp, _, err := r.Reconcile(ctx, noAmount)
	require.NoError(t, err)
	assert.Equal(t, DispositionRejected, disp)

	noDirection := testCandidate()
	noDirection.Direction = ""
	disp, _, err = r.Reconcile(ctx, noDirection)
	require.NoError(t, err)
	assert.Equal(t, DispositionRejected, disp)

	rows, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReconcileConcurrentSameKey(t *testing.T) {
	store := NewMemoryStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	created := make(chan Disposition, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cand := testCandidate()
			disp, _, err := r.Reconcile(ctx, cand)
			if err != nil {
				t.Errorf("concurrent reconcile failed: %v", err)
				return
			}
			created <- disp
		}(i)
	}
	wg.Wait()
	close(created)

	var createdCount int
	for disp := range created {
		if disp == DispositionCreated {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount, "exactly one writer may create the row")

	rows, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSupersedePreservesRow(t *testing.T) {
	store := NewMemoryStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	cand := testCandidate()
	_, row, err := r.Reconcile(ctx, cand)
	require.NoError(t, err)

	require.NoError(t, r.Supersede(ctx, row.DedupKey))

	got, err := store.GetByDedupKey(ctx, row.DedupKey)
	require.NoError(t, err)
	require.NotNil(t, got, "superseded rows are marked, not erased")
	assert.Equal(t, StatusSuperseded, got.Status)
}

func TestMemoryStoreVersionMonotonic(t *testing.T) {
	store := NewMemoryStore()
	r := newTestReconciler(store)
	ctx := context.Background()

	v0, err := store.Version(ctx)
	require.NoError(t, err)

	_, _, err = r.Reconcile(ctx, testCandidate())
	require.NoError(t, err)
	v1, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Greater(t, v1, v0)

	second := testCandidate()
	second.SourceMessageID = "msg-2"
	_, _, err = r.Reconcile(ctx, second)
	require.NoError(t, err)
	v2, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Greater(t, v2, v1, "merges must advance the version marker too")
}
