// Command authorize runs the one-time interactive OAuth setup: it opens the
// authorization-code flow against a loopback callback and writes the granted
// refresh token to the token cache file. Run it once on a machine with a
// browser; the poller then refreshes unattended from the cache.
//
// Environment Variables:
//
//	YT_CLIENT_ID, YT_CLIENT_SECRET: OAuth client credentials (required)
//	TOKEN_CACHE_FILE: cache destination (default .youtube-token.json)
//	TOKEN_CACHE_KEY: optional base64 AES-256 key to encrypt the cache at rest
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/kmscode/livelinks/auth"
	"github.com/kmscode/livelinks/config"
)

func main() {
	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		slog.Error("YT_CLIENT_ID and YT_CLIENT_SECRET are required")
		os.Exit(1)
	}
	// Force the interactive path even when stdin is not a terminal.
	cfg.AuthSetup = true

	mgr, err := auth.NewManager(cfg)
	if err != nil {
		slog.Error("auth setup failed", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	tok, err := mgr.Token(ctx)
	if err != nil {
		slog.Error("authorization failed", slog.Any("err", err))
		os.Exit(1)
	}

	masked := tok
	if len(tok) > 6 {
		masked = "***" + tok[len(tok)-6:]
	}
	fmt.Printf("authorized; access token %s\n", masked)
	cachePath := cfg.TokenCacheFile
	if abs, err := filepath.Abs(cachePath); err == nil {
		cachePath = abs
	}
	fmt.Printf("refresh token cached at %s\n", cachePath)
}
