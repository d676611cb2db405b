package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kmscode/livelinks/crypto"
)

// CachedToken is the long-lived on-disk record. Access tokens are never
// persisted; only the refresh token survives restarts.
type CachedToken struct {
	RefreshToken string    `json:"refresh_token"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CacheFile reads and writes the token cache. The file is created with
// owner-only permissions; when a Sealer is set the JSON is encrypted at rest.
type CacheFile struct {
	Path   string
	Sealer crypto.Sealer
}

// Load returns the cached token, or nil when the file does not exist.
func (f *CacheFile) Load() (*CachedToken, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read token cache: %w", err)
	}
	if f.Sealer != nil {
		data, err = f.Sealer.Open(data)
		if err != nil {
			return nil, fmt.Errorf("decrypt token cache: %w", err)
		}
	}
	var tok CachedToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token cache: %w", err)
	}
	return &tok, nil
}

// Save writes the token cache with 0600 permissions, creating parent
// directories as needed.
func (f *CacheFile) Save(tok *CachedToken) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token cache: %w", err)
	}
	if f.Sealer != nil {
		data, err = f.Sealer.Seal(data)
		if err != nil {
			return fmt.Errorf("encrypt token cache: %w", err)
		}
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir token cache dir: %w", err)
		}
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return nil
}
