package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// maxReconcileAttempts bounds the optimistic retry loop. A retry only
// happens when another writer just committed the same dedup key, so the
// loop terminates quickly in practice; the bound exists to turn a livelock
// bug into a visible error instead of a hang.
const maxReconcileAttempts = 25

// Reconciler merges candidate transactions into the ledger with
// at-most-once creation per dedup key.
type Reconciler struct {
	store            Store
	autoConfirmScore float64
	logger           *slog.Logger
}

// NewReconciler creates a reconciler. Candidates whose required-field
// confidence reaches autoConfirmScore are committed as confirmed directly.
func NewReconciler(store Store, autoConfirmScore float64, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:            store,
		autoConfirmScore: autoConfirmScore,
		logger:           logger,
	}
}

// Reconcile commits one candidate. The returned disposition is created when
// a new row was inserted, merged when the candidate refined an existing row,
// and rejected when the candidate is structurally unusable. Losing an
// insert race degrades to a merge against the winner's committed row.
func (r *Reconciler) Reconcile(ctx context.Context, cand Candidate) (Disposition, *Transaction, error) {
	if cand.Amount == nil || cand.Amount.IsZero() || cand.Direction == "" {
		return DispositionRejected, nil, nil
	}

	key := cand.DedupKey()

	for attempt := 0; attempt < maxReconcileAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return DispositionRejected, nil, err
		}

		existing, err := r.store.GetByDedupKey(ctx, key)
		if err != nil {
			return DispositionRejected, nil, fmt.Errorf("ledger read failed: %w", err)
		}

		if existing == nil {
			row := r.newRow(key, cand)
			err := r.store.Insert(ctx, row)
			if errors.Is(err, ErrDuplicateKey) {
				// Lost the race; merge against the winner on the next pass.
				continue
			}
			if err != nil {
				return DispositionRejected, nil, fmt.Errorf("ledger write failed: %w", err)
			}
			return DispositionCreated, row, nil
		}

		merged := r.merge(existing, cand)
		err = r.store.Update(ctx, merged)
		if errors.Is(err, ErrStaleRevision) {
			continue
		}
		if err != nil {
			return DispositionRejected, nil, fmt.Errorf("ledger write failed: %w", err)
		}
		return DispositionMerged, merged, nil
	}

	return DispositionRejected, nil, fmt.Errorf("ledger reconcile contention on key %s", key)
}

func (r *Reconciler) newRow(key string, cand Candidate) *Transaction {
	vendor := cand.CanonicalVendor
	if vendor == "" {
		vendor = cand.Vendor
	}
	category := cand.Category
	if category == "" {
		category = CategoryUncategorized
	}

	status := StatusPendingReview
	if cand.RequiredConfidence() >= r.autoConfirmScore {
		status = StatusConfirmed
	}

	return &Transaction{
		ID:               uuid.New(),
		DedupKey:         key,
		AmountMinor:      cand.Amount.Amount(),
		Currency:         cand.Amount.Currency(),
		Direction:        cand.Direction,
		Vendor:           vendor,
		Category:         category,
		OccurredAt:       cand.OccurredAt.UTC(),
		Status:           status,
		Confidence:       cand.Confidence,
		SourceMessageIDs: []string{cand.SourceMessageID},
	}
}

// merge refines an existing row with a later candidate for the same key.
// Field values follow the higher confidence; per-field confidence never
// decreases; a confirmed status never regresses to pending.
func (r *Reconciler) merge(existing *Transaction, cand Candidate) *Transaction {
	merged := *existing
	merged.SourceMessageIDs = append([]string(nil), existing.SourceMessageIDs...)

	if cand.Confidence.Vendor > existing.Confidence.Vendor {
		vendor := cand.CanonicalVendor
		if vendor == "" {
			vendor = cand.Vendor
		}
		if vendor != "" {
			merged.Vendor = vendor
		}
	}
	if cand.Confidence.Category > existing.Confidence.Category && cand.Category != "" {
		merged.Category = cand.Category
	}
	if cand.Confidence.OccurredAt > existing.Confidence.OccurredAt && !cand.OccurredAt.IsZero() {
		merged.OccurredAt = cand.OccurredAt.UTC()
	}

	merged.Confidence = maxConfidence(existing.Confidence, cand.Confidence)

	if existing.Status == StatusPendingReview &&
		merged.requiredConfidence() >= r.autoConfirmScore {
		merged.Status = StatusConfirmed
	}

	if !containsString(merged.SourceMessageIDs, cand.SourceMessageID) {
		merged.SourceMessageIDs = append(merged.SourceMessageIDs, cand.SourceMessageID)
	}
	merged.MergeCount++

	if r.logger != nil {
		r.logger.Debug("merged candidate into ledger row",
			slog.String("dedup_key", merged.DedupKey),
			slog.Int("merge_count", merged.MergeCount),
			slog.String("status", string(merged.Status)),
		)
	}
	return &merged
}

func (t *Transaction) requiredConfidence() float64 {
	if t.Confidence.Amount < t.Confidence.Direction {
		return t.Confidence.Amount
	}
	return t.Confidence.Direction
}

func maxConfidence(a, b FieldConfidence) FieldConfidence {
	return FieldConfidence{
		Amount:     maxFloat(a.Amount, b.Amount),
		Direction:  maxFloat(a.Direction, b.Direction),
		Vendor:     maxFloat(a.Vendor, b.Vendor),
		Category:   maxFloat(a.Category, b.Category),
		OccurredAt: maxFloat(a.OccurredAt, b.OccurredAt),
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Supersede marks a row as superseded, preserving it for audit. Used when a
// manual review determines a row duplicates another real-world transaction.
func (r *Reconciler) Supersede(ctx context.Context, key string) error {
	for attempt := 0; attempt < maxReconcileAttempts; attempt++ {
		row, err := r.store.GetByDedupKey(ctx, key)
		if err != nil {
			return fmt.Errorf("ledger read failed: %w", err)
		}
		if row == nil {
			return fmt.Errorf("no ledger row for key %s", key)
		}
		if row.Status == StatusSuperseded {
			return nil
		}

		row.Status = StatusSuperseded
		row.UpdatedAt = time.Now()
		err = r.store.Update(ctx, row)
		if errors.Is(err, ErrStaleRevision) {
			continue
		}
		return err
	}
	return fmt.Errorf("ledger supersede contention on key %s", key)
}
