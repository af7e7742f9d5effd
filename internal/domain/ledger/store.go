package ledger

import (
	"context"
	"errors"
	"time"
)

// Store errors surfaced to the reconciler's retry loop.
var (
	// ErrDuplicateKey means another writer inserted the dedup key first.
	ErrDuplicateKey = errors.New("ledger: dedup key already exists")
	// ErrStaleRevision means the row changed since it was read.
	ErrStaleRevision = errors.New("ledger: stale revision")
)

// Store is the ledger store collaborator. Insert must be atomic on the
// dedup key: two concurrent inserts for one key yield exactly one row and
// one ErrDuplicateKey. Update is an optimistic compare-and-swap on the
// row's revision. The version marker is monotonic and advances with every
// committed insert or update, which makes it usable as a consistent
// snapshot identifier for forecasting.
type Store interface {
	Insert(ctx context.Context, tx *Transaction) error
	Update(ctx context.Context, tx *Transaction) error
	GetByDedupKey(ctx context.Context, key string) (*Transaction, error)
	ListAll(ctx context.Context) ([]Transaction, error)
	Categories(ctx context.Context) ([]string, error)
	// CategorySeries aggregates confirmed and pending debit spend into
	// monthly buckets up to (and excluding) the month containing until.
	// Superseded rows are excluded. Buckets with no spend are omitted.
	CategorySeries(ctx context.Context, category string, until time.Time) ([]SeriesPoint, error)
	VendorHistory(ctx context.Context) ([]VendorStat, error)
	Version(ctx context.Context) (int64, error)
}
