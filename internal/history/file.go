package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileStore keeps the history as a single JSON array on disk, rewritten on
// every append. Good enough for one process and a handful of games per
// evening.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Append(ctx context.Context, summary Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	summaries, err := f.readAll()
	if err != nil {
		return err
	}
	summaries = append(summaries, summary)

	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

func (f *FileStore) List(ctx context.Context) ([]Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readAll()
}

func (f *FileStore) readAll() ([]Summary, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return []Summary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var summaries []Summary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return summaries, nil
}
