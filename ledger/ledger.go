// Package ledger maintains the durable link log: an append-only text file with
// one watch URL per line, deduplicated by video ID. The file is the single
// source of truth for "already recorded"; it is re-read before every append so
// out-of-band edits are respected.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// videoIDPattern matches a canonical 11-character YouTube video ID.
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// urlIDPattern pulls a video ID out of the URL forms YouTube serves:
// watch?v=, youtu.be/, /live/, /shorts/ and /embed/.
var urlIDPattern = regexp.MustCompile(`(?:[?&]v=|youtu\.be/|/live/|/shorts/|/embed/)([A-Za-z0-9_-]{11})(?:[?&#]|$)`)

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ExtractVideoID normalizes a watch URL, short URL, or bare token to its
// 11-character video ID. A URL and its bare ID extract to the same key.
// Returns empty string when no ID can be recovered.
func ExtractVideoID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if videoIDPattern.MatchString(s) {
		return s
	}
	if m := urlIDPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// Entry is a line appended to the ledger during an Append call.
type Entry struct {
	VideoID string
	URL     string
}

// knownIDs scans existing ledger content and collects every video ID already
// recorded. Each non-blank line's last whitespace-delimited token is run
// through the same extractor used for input, so timestamped and bare lines
// are treated alike.
func knownIDs(content string) map[string]bool {
	known := make(map[string]bool)
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if id := ExtractVideoID(fields[len(fields)-1]); id != "" {
			known[id] = true
		}
	}
	return known
}

// Append records the given video IDs in the ledger at path, skipping IDs the
// file already contains. A missing file counts as empty. Lines are
// "<RFC3339 UTC seconds>\t<watch URL>" when withTimestamp is set, else the
// bare watch URL. Parent directories are created as needed. Returns the
// entries actually written; an empty slice means everything was a duplicate.
func Append(path string, videoIDs []string, withTimestamp bool) ([]Entry, error) {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	known := knownIDs(string(existing))

	var entries []Entry
	var sb strings.Builder
	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range videoIDs {
		if id == "" || known[id] {
			continue
		}
		known[id] = true
		url := WatchURL(id)
		if withTimestamp {
			sb.WriteString(now)
			sb.WriteString("\t")
		}
		sb.WriteString(url)
		sb.WriteString("\n")
		entries = append(entries, Entry{VideoID: id, URL: url})
	}
	if len(entries) == 0 {
		return nil, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir ledger dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.WriteString(sb.String()); err != nil {
		return nil, fmt.Errorf("append ledger: %w", err)
	}
	return entries, nil
}

// VideoIDs returns every video ID currently recorded in the ledger, in file
// order. A missing file yields an empty slice.
func VideoIDs(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	seen := make(map[string]bool)
	var ids []string
	for _, line := range strings.Split(string(content), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		id := ExtractVideoID(fields[len(fields)-1])
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
