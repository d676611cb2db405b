package playlist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kmscode/livelinks/ledger"
)

// fakeRemote implements API in memory. failIDs simulate per-item insertion
// failures; calls are tracked for assertions.
type fakeRemote struct {
	playlistID string
	created    bool
	members    []string
	failIDs    map[string]bool

	membershipFetches int
	inserts           []string
}

func (f *fakeRemote) EnsurePlaylist(_ context.Context, explicitID, title string) (string, bool, error) {
	if explicitID != "" {
		return explicitID, false, nil
	}
	if f.playlistID == "" {
		f.playlistID = "PLcreated"
		f.created = true
	}
	return f.playlistID, f.created, nil
}

func (f *fakeRemote) PlaylistVideoIDs(_ context.Context, playlistID string) ([]string, error) {
	f.membershipFetches++
	return append([]string(nil), f.members...), nil
}

func (f *fakeRemote) InsertPlaylistItem(_ context.Context, playlistID, videoID string) error {
	f.inserts = append(f.inserts, videoID)
	if f.failIDs[videoID] {
		return fmt.Errorf("insert %s: quota exceeded", videoID)
	}
	f.members = append(f.members, videoID)
	return nil
}

func newTestReconciler(t *testing.T, remote API) *Reconciler {
	t.Helper()
	dir := t.TempDir()
	return &Reconciler{
		API:           remote,
		LedgerPath:    filepath.Join(dir, "out.txt"),
		QueuePath:     filepath.Join(dir, "out.txt.queue"),
		StatePath:     filepath.Join(dir, "out.txt.sync.json"),
		PlaylistTitle: "Live Streams",
	}
}

// appendAndSync mirrors the orchestrator: fingerprint the ledger, append,
// then hand both to the reconciler.
func appendAndSync(t *testing.T, r *Reconciler, ids []string) (*Result, error) {
	t.Helper()
	fp, err := FileFingerprint(r.LedgerPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) > 0 {
		if _, err := ledger.Append(r.LedgerPath, ids, false); err != nil {
			t.Fatal(err)
		}
	}
	return r.Sync(context.Background(), ids, fp)
}

func TestSyncFirstRunBackfills(t *testing.T) {
	remote := &fakeRemote{}
	r := newTestReconciler(t, remote)
	if _, err := ledger.Append(r.LedgerPath, []string{"aaa11111111", "bbb11111111"}, false); err != nil {
		t.Fatal(err)
	}
	res, err := appendAndSync(t, r, []string{"ccc11111111"})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !res.Backfilled {
		t.Error("first run should backfill")
	}
	// Union of queue (new IDs) and ledger, deduplicated.
	if len(res.Inserted) != 3 {
		t.Errorf("inserted = %v", res.Inserted)
	}
	if _, err := os.Stat(r.QueuePath); !os.IsNotExist(err) {
		t.Error("drained queue file should be deleted")
	}
}

func TestSyncSecondRunIncremental(t *testing.T) {
	remote := &fakeRemote{}
	r := newTestReconciler(t, remote)
	if _, err := appendAndSync(t, r, []string{"aaa11111111"}); err != nil {
		t.Fatal(err)
	}
	fetchesAfterBackfill := remote.membershipFetches

	// The reconciler's own append must not look like an external edit.
	res, err := appendAndSync(t, r, []string{"ddd11111111"})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Backfilled {
		t.Error("second run should take the incremental path")
	}
	if remote.membershipFetches != fetchesAfterBackfill {
		t.Error("incremental mode must not fetch playlist membership")
	}
	if len(res.Inserted) != 1 || res.Inserted[0] != "ddd11111111" {
		t.Errorf("inserted = %v", res.Inserted)
	}
}

func TestSyncExternalEditForcesBackfill(t *testing.T) {
	remote := &fakeRemote{}
	r := newTestReconciler(t, remote)
	if _, err := appendAndSync(t, r, []string{"aaa11111111"}); err != nil {
		t.Fatal(err)
	}

	// Someone edits the ledger outside the process.
	f, err := os.OpenFile(r.LedgerPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(ledger.WatchURL("eee11111111") + "\n"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	res, err := appendAndSync(t, r, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !res.Backfilled {
		t.Error("external ledger edit should force backfill")
	}
	if len(res.Inserted) != 1 || res.Inserted[0] != "eee11111111" {
		t.Errorf("inserted = %v, want the out-of-band addition", res.Inserted)
	}
}

func TestSyncFailedInsertStaysQueued(t *testing.T) {
	remote := &fakeRemote{failIDs: map[string]bool{"v1aaaaaaaaa": true}}
	r := newTestReconciler(t, remote)
	q := &Queue{Path: r.QueuePath}
	if err := q.Save([]string{"v1aaaaaaaaa", "v2aaaaaaaaa"}); err != nil {
		t.Fatal(err)
	}
	if _, err := appendAndSync(t, r, nil); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	left, err := q.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0] != "v1aaaaaaaaa" {
		t.Errorf("queue after sync = %v, want [v1aaaaaaaaa]", left)
	}
}

func TestSyncBackfillNeverDuplicates(t *testing.T) {
	remote := &fakeRemote{members: []string{"aaa11111111"}}
	r := newTestReconciler(t, remote)
	if _, err := ledger.Append(r.LedgerPath, []string{"aaa11111111", "bbb11111111"}, false); err != nil {
		t.Fatal(err)
	}
	res, err := appendAndSync(t, r, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(res.Inserted) != 1 || res.Inserted[0] != "bbb11111111" {
		t.Errorf("inserted = %v, want only bbb11111111", res.Inserted)
	}
	// Repeating the backfill (state removed) must still not duplicate.
	if err := os.Remove(r.StatePath); err != nil {
		t.Fatal(err)
	}
	res, err = appendAndSync(t, r, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(res.Inserted) != 0 {
		t.Errorf("repeat backfill inserted %v", res.Inserted)
	}
}

func TestSyncPlaylistTargetChangeForcesBackfill(t *testing.T) {
	remote := &fakeRemote{}
	r := newTestReconciler(t, remote)
	if _, err := appendAndSync(t, r, nil); err != nil {
		t.Fatal(err)
	}
	r2 := *r
	r2.PlaylistID = "PLexplicit"
	r2.resolvedID = ""
	res, err := appendAndSync(t, &r2, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !res.Backfilled {
		t.Error("changed playlist key should force backfill")
	}
	if res.PlaylistID != "PLexplicit" {
		t.Errorf("playlist = %q", res.PlaylistID)
	}
}

func TestSyncPersistsQueueBeforeRemoteCalls(t *testing.T) {
	r := newTestReconciler(t, &failingEnsure{})
	_, err := appendAndSync(t, r, []string{"eee11111111"})
	if err == nil {
		t.Fatal("expected resolve failure")
	}
	left, err := (&Queue{Path: r.QueuePath}).Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0] != "eee11111111" {
		t.Errorf("queue = %v, new IDs must survive a failed sync", left)
	}
}

type failingEnsure struct{}

func (failingEnsure) EnsurePlaylist(context.Context, string, string) (string, bool, error) {
	return "", false, fmt.Errorf("api unavailable")
}
func (failingEnsure) PlaylistVideoIDs(context.Context, string) ([]string, error) {
	return nil, fmt.Errorf("api unavailable")
}
func (failingEnsure) InsertPlaylistItem(context.Context, string, string) error {
	return fmt.Errorf("api unavailable")
}
