package live

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kmscode/livelinks/config"
	"github.com/kmscode/livelinks/ledger"
	"github.com/kmscode/livelinks/playlist"
	"github.com/kmscode/livelinks/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.Init()
	os.Exit(m.Run())
}

type fakeSyncer struct {
	calls [][]string
	res   *playlist.Result
	err   error
}

func (f *fakeSyncer) Sync(_ context.Context, newIDs []string, _ playlist.Fingerprint) (*playlist.Result, error) {
	f.calls = append(f.calls, newIDs)
	return f.res, f.err
}

func newRunner(t *testing.T, api API, channels ...string) *Runner {
	t.Helper()
	out := filepath.Join(t.TempDir(), "livestreams.txt")
	cfg := &config.Config{
		Channels:   channels,
		OutputFile: out,
		QueueFile:  out + ".queue",
		Timestamps: true,
	}
	return &Runner{
		Cfg:        cfg,
		Discoverer: &Discoverer{API: api, ScanLimit: 10, MaxResults: 5, State: NewRunState()},
	}
}

func TestRunOnceAppendsToLedger(t *testing.T) {
	r := newRunner(t, newFake(), "UCchan1234567890ab")

	sum, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(sum.Appended) != 1 || sum.Appended[0] != "vid00000002" {
		t.Errorf("appended = %v", sum.Appended)
	}
	ids, err := ledger.VideoIDs(r.Cfg.OutputFile)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, id := range ids {
		if id == "vid00000002" {
			found = true
		}
	}
	if !found {
		t.Error("ledger missing discovered video")
	}
	if got := r.LastSummary(); got == nil || got.Channels != 1 {
		t.Errorf("LastSummary = %+v", got)
	}
}

func TestRunOnceDedupsAcrossRuns(t *testing.T) {
	r := newRunner(t, newFake(), "UCchan1234567890ab")

	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	sum, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Live) != 1 {
		t.Errorf("live = %v", sum.Live)
	}
	if len(sum.Appended) != 0 {
		t.Errorf("appended = %v, want nothing on repeat discovery", sum.Appended)
	}
}

func TestRunOnceSingleChannelErrorPropagates(t *testing.T) {
	r := newRunner(t, newFake(), "@nosuchhandle")

	if _, err := r.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error for sole unresolvable channel")
	}
}

func TestRunOnceMultiChannelIsolatesFailures(t *testing.T) {
	f := newFake()
	r := newRunner(t, f, "@nosuchhandle", "UCchan1234567890ab")

	sum, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("multi-channel run must not fail on one bad channel: %v", err)
	}
	if len(sum.Errors) != 1 || !strings.Contains(sum.Errors[0], "@nosuchhandle") {
		t.Errorf("errors = %v", sum.Errors)
	}
	if len(sum.Appended) != 1 {
		t.Errorf("appended = %v, healthy channel should still be recorded", sum.Appended)
	}
}

func TestRunOnceInvokesSyncer(t *testing.T) {
	r := newRunner(t, newFake(), "UCchan1234567890ab")
	syn := &fakeSyncer{res: &playlist.Result{PlaylistID: "PLx", Inserted: []string{"vid00000002"}}}
	r.Reconciler = syn

	sum, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(syn.calls) != 1 || len(syn.calls[0]) != 1 {
		t.Errorf("syncer calls = %v", syn.calls)
	}
	if sum.PlaylistID != "PLx" || sum.Inserted != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunOnceSyncFailureDegrades(t *testing.T) {
	r := newRunner(t, newFake(), "UCchan1234567890ab")
	r.Reconciler = &fakeSyncer{err: errors.New("remote down")}

	sum, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("playlist failure must not fail the run: %v", err)
	}
	if len(sum.Appended) != 1 {
		t.Errorf("appended = %v", sum.Appended)
	}
	found := false
	for _, e := range sum.Errors {
		if strings.Contains(e, "remote down") {
			found = true
		}
	}
	if !found {
		t.Errorf("errors = %v, want sync failure surfaced", sum.Errors)
	}
}

func TestRunOnceSyncFailureReportsQueueDepth(t *testing.T) {
	r := newRunner(t, newFake(), "UCchan1234567890ab")
	r.Reconciler = &fakeSyncer{err: errors.New("remote down")}

	// IDs already waiting from an earlier failed flush.
	q := &playlist.Queue{Path: r.Cfg.QueueFile}
	if err := q.Save([]string{"vidqueued01", "vidqueued02"}); err != nil {
		t.Fatal(err)
	}

	sum, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.QueueDepth != 2 {
		t.Errorf("queue depth = %d, want 2 after total sync failure", sum.QueueDepth)
	}
}

func TestRunOnceDiscoveryErrorFailsSingle(t *testing.T) {
	f := newFake()
	f.failFilter = true
	r := newRunner(t, f, "UCchan1234567890ab")

	if _, err := r.RunOnce(context.Background()); err == nil {
		t.Fatal("expected liveness-filter error to propagate")
	}
}
