package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/restaurant-finder/internal/database"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const defaultCORSMaxAge = 86400

// CORSReloader wraps rs/cors and periodically reloads the policy from the
// cors_config table. Without a stored row the fallback origins apply.
type CORSReloader struct {
	next     http.Handler
	store    database.CorsConfigStore
	fallback []string
	log      *zap.Logger
	interval time.Duration

	mu      sync.RWMutex
	current http.Handler
}

// NewCORSReloader creates a CORS middleware backed by store. fallbackOrigins is
// the comma-separated CORS_ORIGINS value.
func NewCORSReloader(store database.CorsConfigStore, fallbackOrigins string, log *zap.Logger, reloadInterval time.Duration) *CORSReloader {
	return &CORSReloader{
		store:    store,
		fallback: database.AllowedOriginsSlice(fallbackOrigins),
		log:      log,
		interval: reloadInterval,
	}
}

// Middleware returns a middleware that wraps next with CORS and hot-reload.
func (c *CORSReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		c.next = next
		c.load(context.Background())
		return c
	}
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (c *CORSReloader) Start(ctx context.Context) {
	if c.interval <= 0 {
		return
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.load(ctx)
		}
	}
}

func (c *CORSReloader) options(ctx context.Context) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   c.fallback,
		AllowCredentials: true,
		MaxAge:           defaultCORSMaxAge,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"X-Cache"},
	}

	cfg, err := c.store.Get(ctx)
	switch {
	case err != nil:
		c.log.Warn("failed_to_load_cors_config_using_fallback", zap.Error(err))
	case cfg != nil:
		if origins := database.AllowedOriginsSlice(cfg.AllowedOrigins); len(origins) > 0 {
			opts.AllowedOrigins = origins
		}
		opts.AllowCredentials = cfg.AllowCredentials
		if cfg.MaxAge > 0 {
			opts.MaxAge = cfg.MaxAge
		}
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173"}
	}
	return opts
}

func (c *CORSReloader) load(ctx context.Context) {
	if c.next == nil {
		return
	}
	h := cors.New(c.options(ctx)).Handler(c.next)
	c.mu.Lock()
	c.current = h
	c.mu.Unlock()
}

// ServeHTTP implements http.Handler.
func (c *CORSReloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	c.mu.RLock()
	h := c.current
	c.mu.RUnlock()
	if h != nil {
		h.ServeHTTP(w, req)
		return
	}
	if c.next != nil {
		c.next.ServeHTTP(w, req)
	}
}
