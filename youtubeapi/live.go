package youtubeapi

import (
	"context"

	yt "google.golang.org/api/youtube/v3"

	"github.com/kmscode/livelinks/telemetry"
)

// isLive applies the OR-of-two-signals liveness check.
func isLive(v *yt.Video) bool {
	if v.Snippet != nil && v.Snippet.LiveBroadcastContent == "live" {
		return true
	}
	d := v.LiveStreamingDetails
	return d != nil && d.ActualStartTime != "" && d.ActualEndTime == ""
}

// videoBatchLimit is the maximum number of IDs one videos.list call accepts.
const videoBatchLimit = 50

// UploadsPlaylistID resolves the channel's implicit uploads playlist, the
// cheap proxy for recent activity used by the default discovery strategy.
func (c *Client) UploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	callCtx, cancel := c.opCtx(ctx)
	defer cancel()
	telemetry.CountAPICall("channels.list")
	resp, err := c.svc.Channels.List([]string{"contentDetails"}).Id(channelID).Context(callCtx).Do()
	if err != nil {
		return "", wrapAPI("uploads playlist for "+channelID, err)
	}
	if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil ||
		resp.Items[0].ContentDetails.RelatedPlaylists == nil ||
		resp.Items[0].ContentDetails.RelatedPlaylists.Uploads == "" {
		return "", &NotFoundError{Kind: "channel", Ref: channelID, Hint: "no uploads playlist"}
	}
	return resp.Items[0].ContentDetails.RelatedPlaylists.Uploads, nil
}

// RecentUploads returns the most recent video IDs from an uploads playlist,
// newest first. limit is clamped to the API's single-page bounds (1..50).
func (c *Client) RecentUploads(ctx context.Context, uploadsID string, limit int) ([]string, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}
	callCtx, cancel := c.opCtx(ctx)
	defer cancel()
	telemetry.CountAPICall("playlistItems.list")
	resp, err := c.svc.PlaylistItems.List([]string{"contentDetails"}).
		PlaylistId(uploadsID).MaxResults(int64(limit)).Context(callCtx).Do()
	if err != nil {
		return nil, wrapAPI("recent uploads from "+uploadsID, err)
	}
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
			ids = append(ids, item.ContentDetails.VideoId)
		}
	}
	return ids, nil
}

// FilterLive returns the subset of videoIDs that are live right now,
// deduplicated, in input order. Liveness is the OR of two independent
// signals: the snippet's explicit "live" broadcast status, and a started
// broadcast with no recorded end time. Some records only populate one of the
// two depending on API response state, so both must be checked.
func (c *Client) FilterLive(ctx context.Context, videoIDs []string) ([]string, error) {
	var live []string
	seen := make(map[string]bool)
	for start := 0; start < len(videoIDs); start += videoBatchLimit {
		end := start + videoBatchLimit
		if end > len(videoIDs) {
			end = len(videoIDs)
		}
		callCtx, cancel := c.opCtx(ctx)
		telemetry.CountAPICall("videos.list")
		resp, err := c.svc.Videos.List([]string{"snippet", "liveStreamingDetails"}).
			Id(videoIDs[start:end]...).Context(callCtx).Do()
		cancel()
		if err != nil {
			return nil, wrapAPI("video liveness batch", err)
		}
		for _, v := range resp.Items {
			if seen[v.Id] || !isLive(v) {
				continue
			}
			seen[v.Id] = true
			live = append(live, v.Id)
		}
	}
	return live, nil
}

// SearchLive queries the expensive live-search endpoint directly. Opt-in via
// USE_SEARCH; one call costs two orders of magnitude more quota than the
// uploads-scan path.
func (c *Client) SearchLive(ctx context.Context, channelID string, max int) ([]string, error) {
	if max < 1 {
		max = 1
	}
	callCtx, cancel := c.opCtx(ctx)
	defer cancel()
	telemetry.CountAPICall("search.list")
	resp, err := c.svc.Search.List([]string{"id"}).
		ChannelId(channelID).EventType("live").Type("video").
		MaxResults(int64(max)).Context(callCtx).Do()
	if err != nil {
		return nil, wrapAPI("live search for "+channelID, err)
	}
	var ids []string
	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	return ids, nil
}
