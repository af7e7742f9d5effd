package mailbox

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DirectorySource reads .eml files from a local directory and serves them
// through the Source interface. It stands in for a remote mailbox
// collaborator during development and in end-to-end tests.
type DirectorySource struct {
	dir    string
	logger *slog.Logger
}

// NewDirectorySource creates a source over the given directory.
func NewDirectorySource(dir string, logger *slog.Logger) *DirectorySource {
	return &DirectorySource{dir: dir, logger: logger}
}

// FetchSince parses every .eml file received at or after the cursor
// timestamp, ordered by receive time. The boundary is inclusive so a limit
// that truncates between two messages sharing a timestamp cannot drop the
// rest for good; the ledger dedup key absorbs the replayed ones. Unreadable
// files are skipped with a warning, not failed: one broken file must not
// block the batch.
func (s *DirectorySource) FetchSince(ctx context.Context, cursor string, limit int) ([]RawMessage, string, error) {
	var since time.Time
	if cursor != "" {
		if parsed, err := time.Parse(time.RFC3339, cursor); err == nil {
			since = parsed
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, cursor, fmt.Errorf("failed to read message dir %s: %w", s.dir, err)
	}

	var msgs []RawMessage
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, cursor, ctx.Err()
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".eml") {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		msg, err := s.parseFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable message file",
				slog.String("path", path),
				slog.Any("error", err),
			)
			continue
		}
		if msg.ReceivedAt.Before(since) {
			continue
		}
		msgs = append(msgs, msg)
	}

	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].ReceivedAt.Before(msgs[j].ReceivedAt) })
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}

	next := cursor
	if len(msgs) > 0 {
		next = msgs[len(msgs)-1].ReceivedAt.UTC().Format(time.RFC3339)
	}
	return msgs, next, nil
}

// parseFile reads one RFC 5322 message from disk.
func (s *DirectorySource) parseFile(path string) (RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return RawMessage{}, err
	}
	defer f.Close()

	parsed, err := mail.ReadMessage(f)
	if err != nil {
		return RawMessage{}, fmt.Errorf("failed to parse message: %w", err)
	}

	body, err := io.ReadAll(parsed.Body)
	if err != nil {
		return RawMessage{}, fmt.Errorf("failed to read body: %w", err)
	}

	received := time.Now()
	if date, err := parsed.Header.Date(); err == nil {
		received = date
	}

	id := parsed.Header.Get("Message-Id")
	if id == "" {
		id = filepath.Base(path)
	}

	sender := parsed.Header.Get("From")
	if addr, err := mail.ParseAddress(sender); err == nil {
		sender = addr.Address
	}

	return RawMessage{
		ID:         strings.Trim(id, "<>"),
		Sender:     sender,
		Subject:    parsed.Header.Get("Subject"),
		ReceivedAt: received,
		Body:       string(body),
	}, nil
}
