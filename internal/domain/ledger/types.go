// Package ledger owns the durable transaction ledger: candidate records
// produced by the ingestion stages, the deduplicated ledger rows, and the
// reconciler that merges one into the other.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/mailspend/pkg/money"
)

// Direction distinguishes money leaving the account from money arriving.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// Status is the lifecycle state of a ledger transaction. Rows are never
// deleted; superseded is terminal and preserves the audit trail.
type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusConfirmed     Status = "confirmed"
	StatusSuperseded    Status = "superseded"
)

// Disposition is the reconciler's per-candidate outcome.
type Disposition string

const (
	DispositionCreated  Disposition = "created"
	DispositionMerged   Disposition = "merged"
	DispositionRejected Disposition = "rejected"
)

// CategoryUncategorized is the degraded-mode fallback category.
const CategoryUncategorized = "uncategorized"

// FieldConfidence holds the calibrated per-field scores in [0,1].
type FieldConfidence struct {
	Amount     float64
	Direction  float64
	Vendor     float64
	Category   float64
	OccurredAt float64
}

// Candidate is a transaction extracted from one message. It is transient:
// it exists only within a pipeline run until accepted or discarded.
type Candidate struct {
	Amount          *money.Money
	Direction       Direction
	Vendor          string // raw extracted vendor text
	CanonicalVendor string // set by the classifier
	Category        string // set by the classifier
	OccurredAt      time.Time
	SourceMessageID string
	Confidence      FieldConfidence
}

// RequiredConfidence is the score gating ledger admission: the weakest of
// the two required fields.
func (c *Candidate) RequiredConfidence() float64 {
	if c.Confidence.Amount < c.Confidence.Direction {
		return c.Confidence.Amount
	}
	return c.Confidence.Direction
}

// vendorForKey prefers the canonical vendor so capitalization variants of
// the same merchant collapse to one key.
func (c *Candidate) vendorForKey() string {
	v := c.CanonicalVendor
	if v == "" {
		v = c.Vendor
	}
	return strings.ToUpper(strings.TrimSpace(v))
}

// DedupKey is the deterministic fingerprint of the real-world transaction.
// It is built from normalized amount, currency, direction, the occurred-at
// day, and the canonical vendor — deliberately independent of the source
// message ID, so duplicate notifications collapse.
func (c *Candidate) DedupKey() string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s",
		c.Amount.Amount(),
		c.Amount.Currency(),
		c.Direction,
		c.OccurredAt.UTC().Format("2006-01-02"),
		c.vendorForKey(),
	)
	return hex.EncodeToString(h.Sum(nil))
}

// Transaction is a durable ledger row.
type Transaction struct {
	ID               uuid.UUID
	DedupKey         string
	AmountMinor      int64
	Currency         string
	Direction        Direction
	Vendor           string // canonical vendor name
	Category         string
	OccurredAt       time.Time
	Status           Status
	Confidence       FieldConfidence
	SourceMessageIDs []string
	MergeCount       int
	Revision         int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Amount returns the row's monetary value.
func (t *Transaction) Amount() *money.Money {
	return money.New(t.AmountMinor, t.Currency)
}

// SeriesPoint is one time bucket of a category's spend series.
type SeriesPoint struct {
	Period     time.Time // first day of the month, UTC
	TotalMinor int64
	Count      int
}

// VendorStat summarizes ledger history for one (vendor, category) pair.
// The classifier builds its alias table from these.
type VendorStat struct {
	Vendor   string
	Category string
	Count    int
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
