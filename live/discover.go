// Package live discovers currently-live broadcasts for the configured
// channels and drives the per-run pipeline: resolve channels, discover live
// videos, append to the ledger, then sync the playlist. Discovery defaults
// to the quota-cheap uploads-scan strategy; the direct live-search strategy
// is opt-in and expensive.
package live

import (
	"context"
	"log/slog"
)

// API is the YouTube surface discovery needs. Satisfied by
// *youtubeapi.Client; narrowed so tests can fake the remote side.
type API interface {
	ResolveChannel(ctx context.Context, raw string) (string, error)
	UploadsPlaylistID(ctx context.Context, channelID string) (string, error)
	RecentUploads(ctx context.Context, uploadsID string, limit int) ([]string, error)
	FilterLive(ctx context.Context, videoIDs []string) ([]string, error)
	SearchLive(ctx context.Context, channelID string, max int) ([]string, error)
}

// Discoverer determines the set of video IDs currently live on a channel.
type Discoverer struct {
	API        API
	UseSearch  bool
	ScanLimit  int // recent uploads to inspect, already clamped 1..50
	MaxResults int // cap on the returned live set
	State      *RunState
}

// Resolve memoizes channel resolution by the raw reference string for the
// lifetime of the run state.
func (d *Discoverer) Resolve(ctx context.Context, raw string) (string, error) {
	if id, ok := d.State.channelIDs[raw]; ok {
		return id, nil
	}
	id, err := d.API.ResolveChannel(ctx, raw)
	if err != nil {
		return "", err
	}
	d.State.channelIDs[raw] = id
	return id, nil
}

// LiveVideos returns the video IDs currently live on the channel, capped to
// MaxResults.
func (d *Discoverer) LiveVideos(ctx context.Context, channelID string) ([]string, error) {
	if d.UseSearch {
		ids, err := d.API.SearchLive(ctx, channelID, d.MaxResults)
		if err != nil {
			return nil, err
		}
		return d.cap(ids), nil
	}
	return d.scanUploads(ctx, channelID)
}

// scanUploads is the default strategy. Known-live candidates from the
// previous check are re-verified first: if any of them is still live, the
// uploads rescan is skipped entirely. This can miss a second stream that
// started while an older one is still live; accepted quota tradeoff.
func (d *Discoverer) scanUploads(ctx context.Context, channelID string) ([]string, error) {
	if known := d.State.knownLive[channelID]; len(known) > 0 {
		still, err := d.API.FilterLive(ctx, known)
		if err != nil {
			return nil, err
		}
		if len(still) > 0 {
			d.State.knownLive[channelID] = still
			return d.cap(still), nil
		}
		delete(d.State.knownLive, channelID)
	}

	uploadsID, ok := d.State.uploads[channelID]
	if !ok {
		var err error
		uploadsID, err = d.API.UploadsPlaylistID(ctx, channelID)
		if err != nil {
			return nil, err
		}
		d.State.uploads[channelID] = uploadsID
	}

	recent, err := d.API.RecentUploads(ctx, uploadsID, d.ScanLimit)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, nil
	}
	liveIDs, err := d.API.FilterLive(ctx, recent)
	if err != nil {
		return nil, err
	}
	if len(liveIDs) > 0 {
		d.State.knownLive[channelID] = liveIDs
		slog.Debug("live broadcasts found",
			slog.String("channel_id", channelID),
			slog.Int("count", len(liveIDs)))
	}
	return d.cap(liveIDs), nil
}

func (d *Discoverer) cap(ids []string) []string {
	if d.MaxResults > 0 && len(ids) > d.MaxResults {
		return ids[:d.MaxResults]
	}
	return ids
}
