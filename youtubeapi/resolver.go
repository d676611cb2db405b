package youtubeapi

import (
	"context"
	"net/url"
	"strings"

	"github.com/kmscode/livelinks/telemetry"
)

const channelIDPrefix = "UC"

// ChannelRef is a parsed user-supplied channel reference. Exactly one of ID
// or Handle is set.
type ChannelRef struct {
	ID     string
	Handle string // without the leading @
}

// ParseChannelRef classifies a raw channel reference. Priority order:
// literal channel ID, @handle, channel/handle URL, bare handle fallback.
func ParseChannelRef(raw string) ChannelRef {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, channelIDPrefix) && len(s) >= 16 {
		return ChannelRef{ID: s}
	}
	if strings.HasPrefix(s, "@") {
		return ChannelRef{Handle: strings.TrimPrefix(s, "@")}
	}
	if u, err := url.Parse(s); err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https") {
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segs) >= 2 && segs[0] == "channel" {
			return ChannelRef{ID: segs[1]}
		}
		if len(segs) >= 1 && strings.HasPrefix(segs[0], "@") {
			return ChannelRef{Handle: strings.TrimPrefix(segs[0], "@")}
		}
	}
	return ChannelRef{Handle: s}
}

// ResolveChannel turns a raw channel reference into a canonical channel ID.
// Handles cost one channels.list call; literal IDs resolve locally. Callers
// memoize results per run (see live.RunState).
func (c *Client) ResolveChannel(ctx context.Context, raw string) (string, error) {
	ref := ParseChannelRef(raw)
	if ref.ID != "" {
		return ref.ID, nil
	}
	callCtx, cancel := c.opCtx(ctx)
	defer cancel()
	telemetry.CountAPICall("channels.list")
	resp, err := c.svc.Channels.List([]string{"id"}).ForHandle(ref.Handle).Context(callCtx).Do()
	if err != nil {
		return "", wrapAPI("resolve handle "+ref.Handle, err)
	}
	if len(resp.Items) == 0 {
		return "", &NotFoundError{
			Kind: "channel",
			Ref:  "@" + ref.Handle,
			Hint: "try the literal channel ID (" + channelIDPrefix + "...) instead",
		}
	}
	return resp.Items[0].Id, nil
}
