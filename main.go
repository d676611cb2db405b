// Command livelinks polls YouTube channels for live broadcasts and records
// watch links. It:
//   - Loads configuration and initializes structured logging.
//   - Resolves channel references and discovers live videos on a timer (or
//     once with RUN_ONCE=1).
//   - Appends deduplicated links to the append-only output file.
//   - Optionally mirrors the links into a playlist via delegated auth, with
//     a crash-safe retry queue.
//   - Exposes a minimal HTTP server with /healthz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kmscode/livelinks/auth"
	"github.com/kmscode/livelinks/config"
	"github.com/kmscode/livelinks/live"
	"github.com/kmscode/livelinks/playlist"
	"github.com/kmscode/livelinks/server"
	"github.com/kmscode/livelinks/telemetry"
	"github.com/kmscode/livelinks/youtubeapi"
)

const version = "1.0.0"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("livelinks", version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := buildRunner(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", slog.Any("err", err))
		os.Exit(1)
	}

	if cfg.RunOnce {
		if _, err := runner.RunOnce(ctx); err != nil {
			slog.Error("run failed", slog.Any("err", err))
			os.Exit(1)
		}
		return
	}

	// HTTP server (health/status/metrics); on by default in loop mode.
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		if err := server.Start(ctx, runner, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	runner.StartPollLoop(ctx)
}

// buildRunner wires the discovery client, ledger, and optional playlist
// reconciler from config. Discovery prefers the API key; playlist mutations
// always go through the delegated-auth client.
func buildRunner(ctx context.Context, cfg *config.Config) (*live.Runner, error) {
	var mgr *auth.Manager
	if cfg.HasOAuthCreds() {
		m, err := auth.NewManager(cfg)
		if err != nil {
			return nil, err
		}
		mgr = m
	}

	var readClient *youtubeapi.Client
	var err error
	if cfg.APIKey != "" {
		readClient, err = youtubeapi.NewWithAPIKey(ctx, cfg.APIKey)
	} else {
		readClient, err = youtubeapi.NewWithTokenSource(ctx, mgr.TokenSource(ctx))
	}
	if err != nil {
		return nil, err
	}
	readClient.Timeout = cfg.RequestTimeout

	runner := &live.Runner{
		Cfg: cfg,
		Discoverer: &live.Discoverer{
			API:        readClient,
			UseSearch:  cfg.UseSearch,
			ScanLimit:  cfg.UploadsScanLimit,
			MaxResults: cfg.MaxResults,
			State:      live.NewRunState(),
		},
	}

	if cfg.PlaylistSync {
		if mgr == nil {
			return nil, &config.ConfigurationError{Problems: []string{
				"PLAYLIST_SYNC needs delegated auth: set YT_ACCESS_TOKEN, or YT_CLIENT_ID and YT_CLIENT_SECRET",
			}}
		}
		writeClient, err := youtubeapi.NewWithTokenSource(ctx, mgr.TokenSource(ctx))
		if err != nil {
			return nil, err
		}
		writeClient.Timeout = cfg.RequestTimeout
		runner.Reconciler = &playlist.Reconciler{
			API:           writeClient,
			LedgerPath:    cfg.OutputFile,
			QueuePath:     cfg.QueueFile,
			StatePath:     cfg.SyncStateFile,
			PlaylistID:    cfg.PlaylistID,
			PlaylistTitle: cfg.PlaylistTitle,
		}
	}
	return runner, nil
}
