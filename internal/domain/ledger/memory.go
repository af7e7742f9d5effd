package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used for local runs and tests. All
// operations serialize on one mutex, which trivially satisfies the
// per-dedup-key atomicity contract.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]*Transaction
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*Transaction)}
}

func (s *MemoryStore) Insert(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[tx.DedupKey]; exists {
		return ErrDuplicateKey
	}

	now := time.Now()
	tx.Revision = 1
	tx.CreatedAt = now
	tx.UpdatedAt = now
	clone := cloneTransaction(tx)
	s.rows[tx.DedupKey] = &clone
	return nil
}

func (s *MemoryStore) Update(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rows[tx.DedupKey]
	if !ok || existing.Revision != tx.Revision {
		return ErrStaleRevision
	}

	tx.Revision++
	tx.UpdatedAt = time.Now()
	clone := cloneTransaction(tx)
	s.rows[tx.DedupKey] = &clone
	return nil
}

func (s *MemoryStore) GetByDedupKey(_ context.Context, key string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[key]
	if !ok {
		return nil, nil
	}
	clone := cloneTransaction(row)
	return &clone, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Transaction, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, cloneTransaction(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (s *MemoryStore) Categories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	for _, row := range s.rows {
		if row.Category != "" && row.Status != StatusSuperseded {
			seen[row.Category] = true
		}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) CategorySeries(_ context.Context, category string, until time.Time) ([]SeriesPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := MonthStart(until)
	buckets := make(map[time.Time]*SeriesPoint)
	for _, row := range s.rows {
		if row.Status == StatusSuperseded || row.Direction != DirectionDebit {
			continue
		}
		if !strings.EqualFold(row.Category, category) {
			continue
		}
		period := MonthStart(row.OccurredAt)
		if !period.Before(cutoff) {
			continue
		}
		b, ok := buckets[period]
		if !ok {
			b = &SeriesPoint{Period: period}
			buckets[period] = b
		}
		b.TotalMinor += row.AmountMinor
		b.Count++
	}

	out := make([]SeriesPoint, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

func (s *MemoryStore) VendorHistory(_ context.Context) ([]VendorStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[[2]string]int)
	for _, row := range s.rows {
		if row.Status == StatusSuperseded || row.Vendor == "" || row.Category == "" {
			continue
		}
		counts[[2]string{row.Vendor, row.Category}]++
	}

	out := make([]VendorStat, 0, len(counts))
	for key, n := range counts {
		out = append(out, VendorStat{Vendor: key[0], Category: key[1], Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Vendor < out[j].Vendor
	})
	return out, nil
}

// Version sums row revisions. Rows are never deleted and revisions only
// grow, so the sum is a monotonic snapshot marker.
func (s *MemoryStore) Version(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v int64
	for _, row := range s.rows {
		v += row.Revision
	}
	return v, nil
}

func cloneTransaction(tx *Transaction) Transaction {
	clone := *tx
	clone.SourceMessageIDs = append([]string(nil), tx.SourceMessageIDs...)
	return clone
}

var _ Store = (*MemoryStore)(nil)
