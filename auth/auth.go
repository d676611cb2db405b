// Package auth obtains bearer tokens for YouTube playlist mutations via
// delegated authorization. Acquisition precedence, cheapest first: an
// externally supplied access token, the in-memory cached token, a
// refresh-token exchange, and finally a one-time interactive
// authorization-code flow through a loopback callback. Only the refresh
// token is persisted (see CacheFile); access tokens live in memory with an
// expiry guard.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/kmscode/livelinks/config"
	"github.com/kmscode/livelinks/crypto"
)

// Scope covers playlist reads and writes on the authorized account.
const Scope = "https://www.googleapis.com/auth/youtube"

// refreshGuard is how much remaining validity triggers a refresh rather than
// reusing the cached access token.
const refreshGuard = 60 * time.Second

// interactiveTimeout bounds how long the one-time setup waits for the user
// to complete the browser flow.
const interactiveTimeout = 5 * time.Minute

// Manager caches and refreshes access tokens per the acquisition precedence.
// Safe for use from the HTTP client's transport goroutines.
type Manager struct {
	cfg      *config.Config
	cache    *CacheFile
	endpoint oauth2.Endpoint

	mu          sync.Mutex
	accessToken string
	expiry      time.Time
}

// NewManager builds a Manager from config. The token cache is encrypted at
// rest when TOKEN_CACHE_KEY is set.
func NewManager(cfg *config.Config) (*Manager, error) {
	cache := &CacheFile{Path: cfg.TokenCacheFile}
	if cfg.TokenCacheKey != "" {
		sealer, err := crypto.NewAESSealer(cfg.TokenCacheKey)
		if err != nil {
			return nil, fmt.Errorf("token cache key: %w", err)
		}
		cache.Sealer = sealer
	}
	return &Manager{cfg: cfg, cache: cache, endpoint: google.Endpoint}, nil
}

// Token returns a valid bearer token, refreshing or running the interactive
// setup as needed.
func (m *Manager) Token(ctx context.Context) (string, error) {
	// (1) Externally supplied short-lived token: pass through, no caching.
	if m.cfg.AccessToken != "" {
		return m.cfg.AccessToken, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// (2) In-memory cached token from a prior refresh this run.
	if m.accessToken != "" && time.Until(m.expiry) > refreshGuard {
		return m.accessToken, nil
	}

	// (3) Refresh-token exchange.
	rt, err := m.refreshToken()
	if err != nil {
		return "", err
	}
	if rt != "" {
		if m.cfg.ClientID == "" || m.cfg.ClientSecret == "" {
			return "", &config.ConfigurationError{Problems: []string{
				"YT_CLIENT_ID and YT_CLIENT_SECRET are required to exchange a refresh token",
			}}
		}
		return m.exchangeRefresh(ctx, rt)
	}

	// (4) One-time interactive authorization, if the environment allows it.
	if m.cfg.ClientID != "" && m.cfg.ClientSecret != "" {
		if m.cfg.AuthSetup || isInteractive() {
			return m.interactiveSetup(ctx)
		}
		return "", &config.ConfigurationError{Problems: []string{
			"no refresh token available and not running interactively; run cmd/authorize once or set AUTH_SETUP=1",
		}}
	}

	return "", &config.ConfigurationError{Problems: []string{
		"playlist sync needs credentials: set YT_ACCESS_TOKEN, or YT_CLIENT_ID and YT_CLIENT_SECRET (optionally with YT_REFRESH_TOKEN)",
	}}
}

// TokenSource adapts the Manager to the oauth2 interface the generated API
// client consumes.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, m: m}
}

type managerTokenSource struct {
	ctx context.Context
	m   *Manager
}

func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.m.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	expiry := s.m.expiry
	s.m.mu.Unlock()
	return &oauth2.Token{AccessToken: tok, Expiry: expiry, TokenType: "Bearer"}, nil
}

// refreshToken returns the refresh token to use: explicit env value first,
// then the token-cache file. Empty means none available.
func (m *Manager) refreshToken() (string, error) {
	if m.cfg.RefreshToken != "" {
		return m.cfg.RefreshToken, nil
	}
	cached, err := m.cache.Load()
	if err != nil {
		return "", err
	}
	if cached == nil {
		return "", nil
	}
	return cached.RefreshToken, nil
}

func (m *Manager) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		Endpoint:     m.endpoint,
		RedirectURL:  redirectURL,
		Scopes:       []string{Scope},
	}
}

// exchangeRefresh trades a refresh token for an access token and caches it.
// Caller holds m.mu.
func (m *Manager) exchangeRefresh(ctx context.Context, rt string) (string, error) {
	conf := m.oauthConfig("")
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: rt}).Token()
	if err != nil {
		return "", fmt.Errorf("refresh token exchange: %w", err)
	}
	m.cacheToken(tok)
	// Providers occasionally rotate the refresh token on exchange.
	if tok.RefreshToken != "" && tok.RefreshToken != rt {
		if err := m.cache.Save(&CachedToken{RefreshToken: tok.RefreshToken, UpdatedAt: time.Now().UTC()}); err != nil {
			slog.Warn("persist rotated refresh token failed", slog.Any("err", err))
		}
	}
	return tok.AccessToken, nil
}

// cacheToken records the access token in memory with expiry
// now + max(refreshGuard, returned TTL). Caller holds m.mu.
func (m *Manager) cacheToken(tok *oauth2.Token) {
	ttl := time.Until(tok.Expiry)
	if ttl < refreshGuard {
		ttl = refreshGuard
	}
	m.accessToken = tok.AccessToken
	m.expiry = time.Now().Add(ttl)
}

// interactiveSetup runs the authorization-code flow against a loopback
// callback, persists the refresh token, and caches the access token.
// Caller holds m.mu.
func (m *Manager) interactiveSetup(ctx context.Context) (string, error) {
	state := uuid.NewString()
	listener, err := newCallbackListener(state)
	if err != nil {
		return "", err
	}
	conf := m.oauthConfig(listener.RedirectURL)
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(os.Stderr, "Authorize this tool by opening:\n\n  %s\n\n", authURL)

	waitCtx, cancel := context.WithTimeout(ctx, interactiveTimeout)
	defer cancel()
	code, err := listener.Wait(waitCtx)
	if err != nil {
		return "", err
	}
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("authorization code exchange: %w", err)
	}
	if tok.RefreshToken != "" {
		if err := m.cache.Save(&CachedToken{RefreshToken: tok.RefreshToken, UpdatedAt: time.Now().UTC()}); err != nil {
			return "", err
		}
		slog.Info("refresh token saved", slog.String("path", m.cache.Path))
	} else {
		slog.Warn("authorization granted no refresh token; setup will repeat next run")
	}
	m.cacheToken(tok)
	return tok.AccessToken, nil
}

// isInteractive reports whether stdin is attached to a terminal.
func isInteractive() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
