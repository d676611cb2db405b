package youtubeapi

import (
	"context"
	"log/slog"
	"time"

	yt "google.golang.org/api/youtube/v3"

	"github.com/kmscode/livelinks/telemetry"
)

// Playlist propagation probe bounds. A freshly created playlist may not yet
// accept item queries; the probe retries the "not found yet" class with
// doubling delays until it answers or the attempt ceiling is hit.
// Variables so tests can tighten the schedule.
var (
	probeInitialDelay = 500 * time.Millisecond
	probeMaxDelay     = 8 * time.Second
	probeAttempts     = 6
)

// EnsurePlaylist resolves the sync target: an explicit playlist ID wins,
// then lookup-by-title over the authorized account's playlists, then
// creation with that title. Returns the playlist ID and whether it was
// created on this call. Requires a bearer-authorized client.
func (c *Client) EnsurePlaylist(ctx context.Context, explicitID, title string) (string, bool, error) {
	if explicitID != "" {
		return explicitID, false, nil
	}
	id, err := c.findPlaylistByTitle(ctx, title)
	if err != nil {
		return "", false, err
	}
	if id != "" {
		return id, false, nil
	}
	pl := &yt.Playlist{
		Snippet: &yt.PlaylistSnippet{Title: title, Description: "Live streams recorded by livelinks"},
		Status:  &yt.PlaylistStatus{PrivacyStatus: "unlisted"},
	}
	callCtx, cancel := c.opCtx(ctx)
	defer cancel()
	telemetry.CountAPICall("playlists.insert")
	created, err := c.svc.Playlists.Insert([]string{"snippet", "status"}, pl).Context(callCtx).Do()
	if err != nil {
		return "", false, wrapAPI("create playlist "+title, err)
	}
	if err := c.probePlaylist(ctx, created.Id); err != nil {
		return "", false, err
	}
	return created.Id, true, nil
}

func (c *Client) findPlaylistByTitle(ctx context.Context, title string) (string, error) {
	pageToken := ""
	for {
		callCtx, cancel := c.opCtx(ctx)
		call := c.svc.Playlists.List([]string{"id", "snippet"}).Mine(true).MaxResults(50).Context(callCtx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		telemetry.CountAPICall("playlists.list")
		resp, err := call.Do()
		cancel()
		if err != nil {
			return "", wrapAPI("list playlists", err)
		}
		for _, pl := range resp.Items {
			if pl.Snippet != nil && pl.Snippet.Title == title {
				return pl.Id, nil
			}
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			return "", nil
		}
	}
}

// probePlaylist polls a just-created playlist until item queries succeed.
// Only the eventual-consistency "not found yet" class is tolerated; any other
// error, or exhausting the attempt budget, propagates.
func (c *Client) probePlaylist(ctx context.Context, playlistID string) error {
	delay := probeInitialDelay
	var lastErr error
	for attempt := 1; attempt <= probeAttempts; attempt++ {
		callCtx, cancel := c.opCtx(ctx)
		telemetry.CountAPICall("playlistItems.list")
		_, err := c.svc.PlaylistItems.List([]string{"id"}).
			PlaylistId(playlistID).MaxResults(1).Context(callCtx).Do()
		cancel()
		if err == nil {
			return nil
		}
		if !IsNotFound(err) {
			return wrapAPI("probe playlist "+playlistID, err)
		}
		lastErr = err
		slog.Debug("playlist not queryable yet",
			slog.String("playlist_id", playlistID),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > probeMaxDelay {
			delay = probeMaxDelay
		}
	}
	return wrapAPI("playlist "+playlistID+" never became queryable", lastErr)
}

// PlaylistVideoIDs fetches the full membership of a playlist, paginated,
// in playlist order.
func (c *Client) PlaylistVideoIDs(ctx context.Context, playlistID string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		callCtx, cancel := c.opCtx(ctx)
		call := c.svc.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(playlistID).MaxResults(50).Context(callCtx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		telemetry.CountAPICall("playlistItems.list")
		resp, err := call.Do()
		cancel()
		if err != nil {
			return nil, wrapAPI("list playlist items "+playlistID, err)
		}
		for _, item := range resp.Items {
			if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
				ids = append(ids, item.ContentDetails.VideoId)
			}
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			return ids, nil
		}
	}
}

// InsertPlaylistItem appends one video to the playlist.
func (c *Client) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error {
	item := &yt.PlaylistItem{
		Snippet: &yt.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &yt.ResourceId{Kind: "youtube#video", VideoId: videoID},
		},
	}
	callCtx, cancel := c.opCtx(ctx)
	defer cancel()
	telemetry.CountAPICall("playlistItems.insert")
	if _, err := c.svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(callCtx).Do(); err != nil {
		return wrapAPI("insert "+videoID+" into "+playlistID, err)
	}
	return nil
}
