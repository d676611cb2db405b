package playlist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kmscode/livelinks/ledger"
)

// API is the remote playlist surface the reconciler drives. Satisfied by
// *youtubeapi.Client; narrowed here so tests can fake the remote side.
type API interface {
	EnsurePlaylist(ctx context.Context, explicitID, title string) (string, bool, error)
	PlaylistVideoIDs(ctx context.Context, playlistID string) ([]string, error)
	InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error
}

// ItemFailure records one failed playlist insertion. Failures never abort
// the batch; the IDs stay queued for the next run.
type ItemFailure struct {
	VideoID string `json:"videoId"`
	Message string `json:"message"`
}

// Result summarizes one reconciliation pass.
type Result struct {
	PlaylistID string
	Inserted   []string
	Failures   []ItemFailure
	Backfilled bool
}

// Reconciler maintains eventual consistency between the ledger and one
// remote playlist.
type Reconciler struct {
	API           API
	LedgerPath    string
	QueuePath     string
	StatePath     string
	PlaylistID    string // explicit target, optional
	PlaylistTitle string

	resolvedID string // remembered for the lifetime of this instance
}

// Sync merges newly discovered IDs into the retry queue, then flushes the
// queue to the remote playlist. Incremental mode inserts queued IDs
// directly; when the persisted sync state disagrees with current reality the
// pass escalates to a full backfill: queue plus every ledger ID, minus the
// fetched remote membership. The queue is rewritten to the IDs that failed,
// and deleted when empty. The merged queue is persisted before any remote
// call, so a crash mid-flush loses nothing.
//
// ledgerFP is the ledger fingerprint taken before this run's append. The
// stored fingerprint is from after the previous run's append, so comparing
// against the pre-append value flags only edits this process did not make.
func (r *Reconciler) Sync(ctx context.Context, newIDs []string, ledgerFP Fingerprint) (*Result, error) {
	q := &Queue{Path: r.QueuePath}
	queued, err := q.Load()
	if err != nil {
		return nil, err
	}
	pending := mergeIDs(queued, newIDs)
	if err := q.Save(pending); err != nil {
		return nil, err
	}

	key := playlistKey(r.PlaylistID, r.PlaylistTitle)
	st := loadState(r.StatePath)
	backfill := st == nil || st.PlaylistKey != key || st.OutputPath != r.LedgerPath || st.OutputFingerprint != ledgerFP
	if backfill && st != nil {
		slog.Info("sync state mismatch, running full backfill",
			slog.String("playlist_key", key),
			slog.String("state_key", st.PlaylistKey))
	}

	playlistID, err := r.resolvePlaylist(ctx)
	if err != nil {
		return nil, err
	}

	toInsert := pending
	if backfill {
		ledgerIDs, err := ledger.VideoIDs(r.LedgerPath)
		if err != nil {
			return nil, err
		}
		desired := mergeIDs(pending, ledgerIDs)
		existing, err := r.API.PlaylistVideoIDs(ctx, playlistID)
		if err != nil {
			return nil, fmt.Errorf("fetch playlist membership: %w", err)
		}
		member := make(map[string]bool, len(existing))
		for _, id := range existing {
			member[id] = true
		}
		toInsert = nil
		for _, id := range desired {
			if !member[id] {
				toInsert = append(toInsert, id)
			}
		}
	}

	res := &Result{PlaylistID: playlistID, Backfilled: backfill}
	var failed []string
	for _, id := range toInsert {
		if err := r.API.InsertPlaylistItem(ctx, playlistID, id); err != nil {
			res.Failures = append(res.Failures, ItemFailure{VideoID: id, Message: err.Error()})
			failed = append(failed, id)
			slog.Warn("playlist insert failed",
				slog.String("video_id", id),
				slog.Any("err", err))
			continue
		}
		res.Inserted = append(res.Inserted, id)
	}

	if err := q.Save(failed); err != nil {
		return res, err
	}
	// Record the ledger as it stands now, this run's append included, so the
	// next pass sees its own write as expected state.
	fp, err := FileFingerprint(r.LedgerPath)
	if err != nil {
		return res, err
	}
	state := &SyncState{
		PlaylistKey:       key,
		PlaylistID:        playlistID,
		OutputPath:        r.LedgerPath,
		OutputFingerprint: fp,
	}
	if err := saveState(r.StatePath, state); err != nil {
		return res, err
	}
	return res, nil
}

// resolvePlaylist picks the target playlist: explicit ID, then the ID
// remembered from an earlier pass this run, then lookup-by-title or create.
func (r *Reconciler) resolvePlaylist(ctx context.Context) (string, error) {
	if r.resolvedID != "" {
		return r.resolvedID, nil
	}
	id, created, err := r.API.EnsurePlaylist(ctx, r.PlaylistID, r.PlaylistTitle)
	if err != nil {
		return "", fmt.Errorf("resolve playlist: %w", err)
	}
	if created {
		slog.Info("created playlist", slog.String("playlist_id", id), slog.String("title", r.PlaylistTitle))
	}
	r.resolvedID = id
	return id, nil
}
