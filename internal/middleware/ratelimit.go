package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/restaurant-finder/internal/database"
	logpkg "github.com/benvon/restaurant-finder/internal/logger"
	"github.com/benvon/restaurant-finder/internal/models"
	"github.com/benvon/restaurant-finder/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// DefaultRate is used when no rate has been stored yet.
const DefaultRate = "5-S"

const redisStorePrefix = "restaurant_finder_limiter"

// RedisConn is the Redis connection shared by the rate limiter and health checks.
type RedisConn struct {
	client *redis.Client
}

// NewRedisConn parses redisURL and verifies the server is reachable.
func NewRedisConn(ctx context.Context, redisURL string) (*RedisConn, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisConn{client: client}, nil
}

// Store returns a limiter store keyed under this service's prefix.
func (c *RedisConn) Store() (limiter.Store, error) {
	store, err := redisstore.NewStoreWithOptions(c.client, limiter.StoreOptions{
		Prefix: redisStorePrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter store: %w", err)
	}
	return store, nil
}

// Ping checks if Redis is reachable
func (c *RedisConn) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisConn) Close() error {
	return c.client.Close()
}

// RateLimitReloader applies a per-client-IP ulule limiter and periodically
// reloads the rate from the ratelimit_config table.
type RateLimitReloader struct {
	next        http.Handler
	store       limiter.Store
	repo        database.RatelimitConfigStore
	defaultRate string
	log         *zap.Logger
	interval    time.Duration

	mu      sync.RWMutex
	current http.Handler
	rate    limiter.Rate
}

// NewRateLimitReloader validates defaultRate and returns a reloader over store.
func NewRateLimitReloader(store limiter.Store, repo database.RatelimitConfigStore, defaultRate string, log *zap.Logger, reloadInterval time.Duration) (*RateLimitReloader, error) {
	if defaultRate == "" {
		defaultRate = DefaultRate
	}
	if _, err := limiter.NewRateFromFormatted(defaultRate); err != nil {
		return nil, fmt.Errorf("invalid default rate %q: %w", defaultRate, err)
	}
	return &RateLimitReloader{
		store:       store,
		repo:        repo,
		defaultRate: defaultRate,
		log:         log,
		interval:    reloadInterval,
	}, nil
}

// Middleware returns a middleware that wraps next with rate limiting and hot-reload.
func (r *RateLimitReloader) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		r.next = next
		r.load(context.Background())
		return r
	}
}

// Start runs the reload loop until ctx is cancelled. Call after Middleware() is applied.
func (r *RateLimitReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.load(ctx)
		}
	}
}

// Rate returns the rate currently enforced.
func (r *RateLimitReloader) Rate() limiter.Rate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}

func (r *RateLimitReloader) configuredRate(ctx context.Context) string {
	cfg, err := r.repo.Get(ctx)
	switch {
	case err != nil:
		r.log.Warn("failed_to_load_ratelimit_config_from_db_using_default",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
		return r.defaultRate
	case cfg != nil && cfg.Rate != "":
		return cfg.Rate
	}

	if err := r.repo.Set(ctx, &models.RatelimitConfig{Rate: r.defaultRate}); err != nil {
		r.log.Error("failed_to_save_default_ratelimit_config",
			zap.Error(err),
			zap.String("default_rate", r.defaultRate),
		)
	}
	return r.defaultRate
}

func (r *RateLimitReloader) load(ctx context.Context) {
	if r.next == nil {
		return
	}

	rateStr := r.configuredRate(ctx)
	rate, err := limiter.NewRateFromFormatted(rateStr)
	if err != nil {
		r.log.Error("failed_to_parse_rate_limit_using_default",
			zap.Error(err),
			zap.String("rate_str", logpkg.SanitizeString(rateStr, logpkg.MaxGeneralStringLength)),
			zap.String("default_rate", r.defaultRate),
		)
		// defaultRate was validated by the constructor.
		rate, _ = limiter.NewRateFromFormatted(r.defaultRate)
	}

	next := r.next
	mw := stdlibmw.NewMiddleware(limiter.New(r.store, rate),
		stdlibmw.WithKeyGetter(request.ClientIP),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, req *http.Request) {
			respondErrorJSON(w, req, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded", r.log)
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, req *http.Request, err error) {
			r.log.Warn("rate_limiter_unavailable_allowing_request", zap.Error(err))
			next.ServeHTTP(w, req)
		}),
	)
	h := mw.Handler(next)

	r.mu.Lock()
	r.current = h
	r.rate = rate
	r.mu.Unlock()
}

// ServeHTTP implements http.Handler.
func (r *RateLimitReloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	h := r.current
	r.mu.RUnlock()
	if h != nil {
		h.ServeHTTP(w, req)
		return
	}
	if r.next != nil {
		r.next.ServeHTTP(w, req)
	}
}
