package playlist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const stateVersion = 1

// Fingerprint cheaply identifies a ledger file revision without hashing
// content: size plus modification time in milliseconds.
type Fingerprint struct {
	Size    int64 `json:"size"`
	MtimeMs int64 `json:"mtimeMs"`
}

// SyncState is the persisted record of the last full reconciliation. A
// mismatch between it and current reality (playlist target changed, ledger
// edited out-of-band, first run) forces a full backfill.
type SyncState struct {
	Version           int         `json:"version"`
	PlaylistKey       string      `json:"playlistKey"`
	PlaylistID        string      `json:"playlistId"`
	OutputPath        string      `json:"outputPath"`
	OutputFingerprint Fingerprint `json:"outputFingerprint"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// playlistKey identifies the sync target independent of resolution: an
// explicit ID wins over a title to be looked up or created.
func playlistKey(explicitID, title string) string {
	if explicitID != "" {
		return "id:" + explicitID
	}
	return "title:" + title
}

// FileFingerprint stats path; a missing file yields the zero fingerprint.
// The orchestrator captures the ledger fingerprint before appending so the
// reconciler can tell its own appends apart from out-of-band edits.
func FileFingerprint(path string) (Fingerprint, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Fingerprint{}, nil
		}
		return Fingerprint{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Fingerprint{Size: fi.Size(), MtimeMs: fi.ModTime().UnixMilli()}, nil
}

// loadState returns the persisted sync state, or nil when absent or
// unreadable (either way the caller falls back to a full backfill).
func loadState(path string) *SyncState {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var st SyncState
	if err := json.Unmarshal(data, &st); err != nil || st.Version != stateVersion {
		return nil
	}
	return &st
}

func saveState(path string, st *SyncState) error {
	st.Version = stateVersion
	st.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sync state: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir sync state dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	return nil
}
