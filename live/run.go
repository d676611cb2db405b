package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kmscode/livelinks/config"
	"github.com/kmscode/livelinks/ledger"
	"github.com/kmscode/livelinks/playlist"
	"github.com/kmscode/livelinks/telemetry"
)

// Syncer mirrors newly-recorded links into the remote playlist. Satisfied by
// *playlist.Reconciler; nil disables playlist sync. ledgerFP is the ledger
// fingerprint from before this run's append.
type Syncer interface {
	Sync(ctx context.Context, newIDs []string, ledgerFP playlist.Fingerprint) (*playlist.Result, error)
}

// Summary reports what one run did. Served by the /status endpoint.
type Summary struct {
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
	Channels   int       `json:"channels"`
	Live       []string  `json:"live,omitempty"`
	Appended   []string  `json:"appended,omitempty"`
	PlaylistID string    `json:"playlistId,omitempty"`
	Inserted   int       `json:"inserted"`
	QueueDepth int       `json:"queueDepth"`
	Errors     []string  `json:"errors,omitempty"`
}

// Runner composes resolution, discovery, the ledger, and the optional
// reconciler into one invocation. One Runner drives either a single run or
// the whole polling loop; its memo state spans iterations and dies with it.
type Runner struct {
	Cfg        *config.Config
	Discoverer *Discoverer
	Reconciler Syncer // nil when playlist sync is disabled

	mu   sync.Mutex
	last *Summary
}

// LastSummary returns the most recent run summary, or nil before the first
// run completes.
func (r *Runner) LastSummary() *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// RunOnce executes one full pass: resolve and discover every configured
// channel sequentially, append new links to the ledger, then flush the
// playlist sync. With multiple channels, per-channel failures are isolated
// and reported in the summary; with exactly one channel the error propagates.
// Playlist failures never fail the run: the ledger write already happened and
// the affected IDs stay queued.
func (r *Runner) RunOnce(ctx context.Context) (*Summary, error) {
	telemetry.RunsTotal.Inc()
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "livelinks", "run",
		attribute.Int("channels", len(r.Cfg.Channels)))
	defer span.End()

	summary := &Summary{StartedAt: start.UTC(), Channels: len(r.Cfg.Channels)}
	defer func() {
		summary.DurationMs = time.Since(start).Milliseconds()
		telemetry.RunDuration.Observe(time.Since(start).Seconds())
		r.mu.Lock()
		r.last = summary
		r.mu.Unlock()
	}()

	single := len(r.Cfg.Channels) == 1
	var liveIDs []string
	seen := make(map[string]bool)
	for _, ref := range r.Cfg.Channels {
		telemetry.ChannelsChecked.Inc()
		ids, err := r.checkChannel(ctx, ref)
		if err != nil {
			if single {
				telemetry.RunsFailed.Inc()
				telemetry.RecordError(span, err)
				summary.Errors = append(summary.Errors, err.Error())
				return summary, err
			}
			slog.Error("channel check failed", slog.String("channel", ref), slog.Any("err", err))
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", ref, err))
			continue
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				liveIDs = append(liveIDs, id)
			}
		}
	}
	summary.Live = liveIDs
	telemetry.LiveVideosFound.Add(float64(len(liveIDs)))

	// Fingerprint before appending so the reconciler can distinguish this
	// run's own write from an out-of-band ledger edit.
	var ledgerFP playlist.Fingerprint
	if r.Reconciler != nil {
		fp, err := playlist.FileFingerprint(r.Cfg.OutputFile)
		if err != nil {
			telemetry.RunsFailed.Inc()
			telemetry.RecordError(span, err)
			summary.Errors = append(summary.Errors, err.Error())
			return summary, err
		}
		ledgerFP = fp
	}

	entries, err := ledger.Append(r.Cfg.OutputFile, liveIDs, r.Cfg.Timestamps)
	if err != nil {
		telemetry.RunsFailed.Inc()
		telemetry.RecordError(span, err)
		summary.Errors = append(summary.Errors, err.Error())
		return summary, err
	}
	telemetry.LedgerAppends.Add(float64(len(entries)))
	newIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		newIDs = append(newIDs, e.VideoID)
		slog.Info("live link recorded", slog.String("video_id", e.VideoID), slog.String("url", e.URL))
	}
	summary.Appended = newIDs

	if r.Reconciler != nil {
		res, err := r.Reconciler.Sync(ctx, newIDs, ledgerFP)
		if err != nil {
			// Degrade gracefully: the ledger write is done and the queue (or
			// the next backfill) will pick the IDs up again.
			slog.Error("playlist sync failed", slog.Any("err", err))
			summary.Errors = append(summary.Errors, "playlist sync: "+err.Error())
		}
		if res == nil {
			// The merged queue was persisted before the sync fell over;
			// report its real depth rather than zero.
			if queued, qerr := (&playlist.Queue{Path: r.Cfg.QueueFile}).Load(); qerr == nil {
				summary.QueueDepth = len(queued)
			}
		}
		if res != nil {
			summary.PlaylistID = res.PlaylistID
			summary.Inserted = len(res.Inserted)
			telemetry.PlaylistInserts.Add(float64(len(res.Inserted)))
			telemetry.PlaylistFailures.Add(float64(len(res.Failures)))
			summary.QueueDepth = len(res.Failures)
			for _, f := range res.Failures {
				summary.Errors = append(summary.Errors, fmt.Sprintf("insert %s: %s", f.VideoID, f.Message))
			}
		}
		telemetry.SetRetryQueueDepth(summary.QueueDepth)
	}
	return summary, nil
}

// checkChannel resolves one channel reference and discovers its live set.
func (r *Runner) checkChannel(ctx context.Context, ref string) ([]string, error) {
	channelID, err := r.Discoverer.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return r.Discoverer.LiveVideos(ctx, channelID)
}

// StartPollLoop runs RunOnce immediately and then on every tick until ctx is
// canceled. Iterations are strictly sequential: a new one starts only after
// the previous completed all network and file work. Failures are logged and
// do not terminate the loop.
func (r *Runner) StartPollLoop(ctx context.Context) {
	interval := r.Cfg.PollInterval
	slog.Info("poll loop starting",
		slog.Duration("interval", interval),
		slog.Int("channels", len(r.Cfg.Channels)))
	if _, err := r.RunOnce(ctx); err != nil {
		slog.Warn("run failed", slog.Any("err", err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("poll loop stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				slog.Warn("run failed", slog.Any("err", err))
			}
		}
	}
}
