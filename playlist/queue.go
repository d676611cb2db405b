// Package playlist keeps a remote playlist eventually consistent with the
// link ledger. Pending insertions ride a crash-safe retry queue file; a
// fingerprint-gated backfill reconciles full membership when the ledger or
// the playlist target changed out from under the incremental path.
package playlist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Queue is the on-disk retry queue: one video ID per line. An absent file is
// an empty queue; the file is removed once the queue drains.
type Queue struct {
	Path string
}

// Load reads the queued video IDs in order, deduplicated.
func (q *Queue) Load() ([]string, error) {
	data, err := os.ReadFile(q.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read retry queue: %w", err)
	}
	var ids []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		id := strings.TrimSpace(line)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// Save rewrites the queue. An empty set deletes the file.
func (q *Queue) Save(ids []string) error {
	if len(ids) == 0 {
		if err := os.Remove(q.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove retry queue: %w", err)
		}
		return nil
	}
	if dir := filepath.Dir(q.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir retry queue dir: %w", err)
		}
	}
	if err := os.WriteFile(q.Path, []byte(strings.Join(ids, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("write retry queue: %w", err)
	}
	return nil
}

// mergeIDs unions id lists preserving first-seen order.
func mergeIDs(lists ...[]string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
