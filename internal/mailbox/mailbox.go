// Package mailbox defines the pull interface to the external mail-fetch
// collaborator and the local sources used for development and testing.
package mailbox

import (
	"context"
	"sort"
	"time"
)

// RawMessage is an immutable notification message as delivered by the
// mailbox collaborator. The pipeline never mutates it.
type RawMessage struct {
	ID         string
	Sender     string
	Subject    string
	ReceivedAt time.Time
	Body       string
}

// Source supplies raw messages incrementally. FetchSince returns messages
// received at or after the cursor plus the next cursor to persist once the
// batch has been fully reconciled. Re-delivery, whether under an unchanged
// cursor or across the inclusive boundary, must be safe: the ledger dedup
// key makes reprocessing idempotent.
type Source interface {
	FetchSince(ctx context.Context, cursor string, limit int) ([]RawMessage, string, error)
}

// CursorStore persists the ingestion cursor between runs.
type CursorStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, cursor string) error
}

// StaticSource serves a fixed message slice. Used in tests and backfills.
type StaticSource struct {
	Messages []RawMessage
}

// FetchSince returns messages received at or after the cursor timestamp
// (RFC 3339), oldest first regardless of slice order. An empty cursor
// returns everything. The inclusive boundary re-serves messages sitting
// exactly on the cursor; the ledger dedup key makes the replay harmless and
// it keeps equal-timestamp messages from being lost when a limit truncates
// between them.
func (s *StaticSource) FetchSince(_ context.Context, cursor string, limit int) ([]RawMessage, string, error) {
	var since time.Time
	if cursor != "" {
		parsed, err := time.Parse(time.RFC3339, cursor)
		if err == nil {
			since = parsed
		}
	}

	sorted := append([]RawMessage(nil), s.Messages...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ReceivedAt.Before(sorted[j].ReceivedAt) })

	var out []RawMessage
	for _, msg := range sorted {
		if msg.ReceivedAt.Before(since) {
			continue
		}
		out = append(out, msg)
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	next := cursor
	if len(out) > 0 {
		next = out[len(out)-1].ReceivedAt.UTC().Format(time.RFC3339)
	}
	return out, next, nil
}
