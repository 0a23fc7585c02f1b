package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// GoogleJWKSURL publishes the keys Google signs ID tokens with.
const GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

type cachedKeySet struct {
	keys    jwk.Set
	expires time.Time
}

// KeySetCache fetches and caches JWKS documents per URL.
type KeySetCache struct {
	client *http.Client
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]cachedKeySet
}

// NewKeySetCache creates a cache holding each key set for ttl.
func NewKeySetCache(client *http.Client, ttl time.Duration) *KeySetCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &KeySetCache{
		client: client,
		ttl:    ttl,
		cache:  make(map[string]cachedKeySet),
	}
}

// Get returns the key set at jwksURL, fetching it when absent or expired.
func (c *KeySetCache) Get(ctx context.Context, jwksURL string) (jwk.Set, error) {
	c.mu.RLock()
	entry, ok := c.cache[jwksURL]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.keys, nil
	}

	keys, err := c.fetch(ctx, jwksURL)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[jwksURL] = cachedKeySet{keys: keys, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return keys, nil
}

func (c *KeySetCache) fetch(ctx context.Context, jwksURL string) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %w", err)
	}

	keys, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}
	return keys, nil
}
