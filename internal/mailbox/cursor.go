package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileCursorStore persists the last-run cursor to a small JSON tracker file,
// so interrupted runs resume where the previous batch committed.
type FileCursorStore struct {
	path string
}

// NewFileCursorStore creates a cursor store backed by the given path.
func NewFileCursorStore(path string) *FileCursorStore {
	return &FileCursorStore{path: path}
}

type cursorFile struct {
	LastTimestamp string `json:"last_timestamp"`
}

// Load returns the stored cursor, or "" when no tracker file exists yet.
func (s *FileCursorStore) Load(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cursor tracker: %w", err)
	}

	var cf cursorFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return "", fmt.Errorf("failed to decode cursor tracker: %w", err)
	}
	return cf.LastTimestamp, nil
}

// Save writes the cursor atomically (write-then-rename).
func (s *FileCursorStore) Save(_ context.Context, cursor string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cursor dir: %w", err)
	}

	data, err := json.Marshal(cursorFile{LastTimestamp: cursor})
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cursor tracker: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace cursor tracker: %w", err)
	}
	return nil
}
