// Package markdown implements the record store as append-only markdown
// artifacts on disk: every write produces a new file with a stable ID,
// nothing is ever rewritten.
package markdown

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store writes human-readable artifacts under a root directory.
type Store struct {
	root string
	mu   sync.Mutex
}

// New creates the store, making the root directory if needed.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create record root: %w", err)
	}
	return &Store{root: root}, nil
}

// Write persists content as a new markdown artifact and returns its ID.
// Metadata is rendered as a front-matter block; keys are sorted so the
// artifact bytes are deterministic for identical input.
func (s *Store) Write(ctx context.Context, content string, meta map[string]string) (string, error) {
	id := uuid.New().String()

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString(fmt.Sprintf("id: %s\n", id))
	b.WriteString(fmt.Sprintf("created_at: %s\n", time.Now().Format(time.RFC3339)))
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("%s: %s\n", k, meta[k]))
	}
	b.WriteString("---\n\n")
	b.WriteString(content)
	b.WriteString("\n")

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.root, id+".md")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write record %s: %w", id, err)
	}
	return id, nil
}

// Path returns the on-disk path for a record ID.
func (s *Store) Path(id string) string {
	return filepath.Join(s.root, id+".md")
}
