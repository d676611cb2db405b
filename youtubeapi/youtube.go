// Package youtubeapi wraps the YouTube Data API v3 for channel resolution,
// live-broadcast discovery, and playlist maintenance. Read-only lookups can
// run with an API key; playlist mutations require a bearer token obtained via
// delegated authorization (see the auth package).
package youtubeapi

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// Client provides the minimal YouTube Data API surface the service needs.
type Client struct {
	svc *yt.Service

	// Timeout bounds each individual API call when positive. Paginated
	// operations apply it per page, the propagation probe per attempt.
	Timeout time.Duration
}

// opCtx derives the per-call context. The returned cancel must always run.
func (c *Client) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// New builds a Client from raw client options. Used directly by tests to
// point the generated client at a fake endpoint.
func New(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// NewWithAPIKey builds a read-only client authenticated by API key.
func NewWithAPIKey(ctx context.Context, key string) (*Client, error) {
	return New(ctx, option.WithAPIKey(key))
}

// NewWithTokenSource builds a client that sends bearer tokens from ts,
// suitable for playlist mutations.
func NewWithTokenSource(ctx context.Context, ts oauth2.TokenSource) (*Client, error) {
	return New(ctx, option.WithTokenSource(ts))
}
