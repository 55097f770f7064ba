package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// maxJWKSBytes bounds the size of a JWKS response body
const maxJWKSBytes = 1 << 20

// KeySetConfig configures where and how often issuer keys are fetched
type KeySetConfig struct {
	// JWKSURL is used as is when set; otherwise it is discovered from Issuer
	JWKSURL   string
	Issuer    string
	Discovery bool

	RefreshInterval    time.Duration
	MinRefreshInterval time.Duration
	HTTPTimeout        time.Duration
	HTTPClient         *http.Client
}

// keySnapshot is never mutated after it is stored
type keySnapshot struct {
	keys      map[string]interface{}
	fetchedAt time.Time
}

// KeySet caches the trusted issuer's public signing keys.
// Readers see either the previous or the next snapshot, never a partial one.
type KeySet struct {
	cfg    KeySetConfig
	client *http.Client
	logger *zap.Logger

	snapshot    atomic.Pointer[keySnapshot]
	lastAttempt atomic.Int64
	group       singleflight.Group

	urlMu       sync.Mutex
	resolvedURL string

	now func() time.Time
}

// NewKeySet creates an empty key set. Keys are loaded on first use or by Run.
func NewKeySet(cfg KeySetConfig, logger *zap.Logger) *KeySet {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Hour
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &KeySet{
		cfg:         cfg,
		client:      client,
		logger:      logger,
		resolvedURL: cfg.JWKSURL,
		now:         time.Now,
	}
}

// Lookup returns the public key for kid, refreshing once on a miss.
// An empty kid matches only when the issuer publishes a single key.
func (ks *KeySet) Lookup(ctx context.Context, kid string) (interface{}, error) {
	snap := ks.snapshot.Load()
	if key, ok := snap.find(kid); ok {
		return key, nil
	}

	if snap != nil && !ks.refreshAllowed() {
		return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
	}

	if err := ks.Refresh(ctx); err != nil {
		return nil, err
	}

	if key, ok := ks.snapshot.Load().find(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
}

// Refresh fetches the JWKS and swaps in a new snapshot.
// Concurrent callers share one fetch; a caller whose ctx ends stops waiting
// without cancelling the fetch for the others.
func (ks *KeySet) Refresh(ctx context.Context) error {
	ch := ks.group.DoChan("jwks", func() (interface{}, error) {
		ks.lastAttempt.Store(ks.now().UnixNano())

		fetchCtx, cancel := context.WithTimeout(context.Background(), ks.cfg.HTTPTimeout)
		defer cancel()

		snap, err := ks.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		ks.snapshot.Store(snap)
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrVerifierUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("%w: %v", ErrVerifierUnavailable, res.Err)
		}
		return nil
	}
}

// Run refreshes the key set on the configured interval until ctx is done
func (ks *KeySet) Run(ctx context.Context) error {
	if err := ks.Refresh(ctx); err != nil && ctx.Err() == nil {
		ks.logger.Warn("initial issuer key fetch failed", zap.Error(err))
	}

	ticker := time.NewTicker(ks.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := ks.Refresh(ctx); err != nil && ctx.Err() == nil {
				ks.logger.Error("issuer key refresh failed", zap.Error(err))
			}
		}
	}
}

// Loaded reports whether at least one snapshot has been fetched
func (ks *KeySet) Loaded() bool {
	return ks.snapshot.Load() != nil
}

// Stats returns cache statistics
func (ks *KeySet) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"loaded":     false,
		"keys_count": 0,
	}
	if snap := ks.snapshot.Load(); snap != nil {
		stats["loaded"] = true
		stats["keys_count"] = len(snap.keys)
		stats["fetched_at"] = snap.fetchedAt
	}
	return stats
}

func (ks *KeySet) refreshAllowed() bool {
	last := ks.lastAttempt.Load()
	if last == 0 {
		return true
	}
	return ks.now().Sub(time.Unix(0, last)) >= ks.cfg.MinRefreshInterval
}

func (ks *KeySet) jwksURL(ctx context.Context) (string, error) {
	ks.urlMu.Lock()
	defer ks.urlMu.Unlock()

	if ks.resolvedURL != "" {
		return ks.resolvedURL, nil
	}
	if !ks.cfg.Discovery {
		return "", errors.New("no JWKS URL configured and discovery is disabled")
	}

	url, err := DiscoverJWKSURL(ctx, ks.cfg.Issuer, ks.client)
	if err != nil {
		return "", err
	}
	ks.logger.Info("discovered issuer JWKS URL", zap.String("issuer", ks.cfg.Issuer), zap.String("jwks_url", url))
	ks.resolvedURL = url
	return url, nil
}

func (ks *KeySet) fetch(ctx context.Context) (*keySnapshot, error) {
	url, err := ks.jwksURL(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ks.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch JWKS: status code %d", resp.StatusCode)
	}

	var document struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&document); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	keys := make(map[string]interface{}, len(document.Keys))
	for _, raw := range document.Keys {
		var jwk jose.JSONWebKey
		if err := jwk.UnmarshalJSON(raw); err != nil {
			ks.logger.Warn("skipping undecodable JWKS entry", zap.Error(err))
			continue
		}
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		public := jwk.Public()
		if !public.Valid() {
			continue
		}
		keys[jwk.KeyID] = public.Key
	}

	if len(keys) == 0 {
		return nil, errors.New("JWKS contains no usable signing keys")
	}

	ks.logger.Debug("issuer keys refreshed", zap.Int("keys", len(keys)))
	return &keySnapshot{keys: keys, fetchedAt: ks.now()}, nil
}

func (s *keySnapshot) find(kid string) (interface{}, bool) {
	if s == nil {
		return nil, false
	}
	if kid == "" {
		if len(s.keys) != 1 {
			return nil, false
		}
		for _, key := range s.keys {
			return key, true
		}
	}
	key, ok := s.keys[kid]
	return key, ok
}
