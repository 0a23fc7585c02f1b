package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benvon/restaurant-finder/internal/config"
	"github.com/benvon/restaurant-finder/internal/database"
	"github.com/benvon/restaurant-finder/internal/handlers"
	"github.com/benvon/restaurant-finder/internal/logger"
	"github.com/benvon/restaurant-finder/internal/metrics"
	"github.com/benvon/restaurant-finder/internal/middleware"
	"github.com/benvon/restaurant-finder/internal/photocache"
	"github.com/benvon/restaurant-finder/internal/queue"
	"github.com/benvon/restaurant-finder/internal/services/auth"
	"github.com/benvon/restaurant-finder/internal/services/favorites"
	"github.com/benvon/restaurant-finder/internal/services/places"
	"github.com/benvon/restaurant-finder/internal/services/restaurants"
	"github.com/benvon/restaurant-finder/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const serviceName = "restaurant-finder-api"

const (
	reloadInterval    = time.Minute
	photoCacheGCEvery = 10 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	openAPIPath := flag.String("openapi", filepath.Join("api", "openapi", "openapi.yaml"), "Path to the OpenAPI document")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		// stderr sync fails on some platforms; nothing to do about it at exit
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("places_language", cfg.PlacesLanguage),
		zap.Bool("refresh_queue_configured", cfg.RabbitMQURL != ""),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	tracerProvider := initTracing(ctx, cfg, zapLogger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx, tracerProvider); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	if cfg.AutoMigrate {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			zapLogger.Fatal("failed_to_run_migrations", zap.Error(err))
		}
		zapLogger.Info("migrations_applied")
	}

	db, err := database.NewWithPool(cfg.DatabaseURL, database.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	redisConn, err := middleware.NewRedisConn(ctx, cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisConn.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// The refresh queue is optional; without it stale rows are simply served.
	var jobQueue *queue.RabbitMQQueue
	if cfg.RabbitMQURL != "" {
		jobQueue, err = connectQueue(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// Repositories
	userRepo := database.NewUserRepository(db)
	restaurantRepo := database.NewRestaurantRepository(db)
	favoriteRepo := database.NewFavoriteRepository(db)
	corsConfigRepo := database.NewCorsConfigRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	// Services
	placesClient := places.NewClient(places.Config{
		APIKey:    cfg.GoogleMapsAPIKey,
		BaseURL:   cfg.PlacesBaseURL,
		V1BaseURL: cfg.PlacesV1BaseURL,
		Language:  cfg.PlacesLanguage,
		Timeout:   cfg.UpstreamTimeout,
	}, zapLogger, places.WithRecorder(collector))

	authOpts := []auth.Option{
		auth.WithBcryptCost(cfg.BcryptCost),
		auth.WithGoogleVerifier(auth.NewGoogleVerifier(auth.NewKeySetCache(nil, time.Hour), auth.GoogleJWKSURL, cfg.GoogleClientID)),
	}
	if cfg.GoogleCodeExchangeEnabled() {
		authOpts = append(authOpts, auth.WithCodeExchanger(
			auth.NewGoogleCodeExchanger(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
		))
	}
	authService := auth.NewService(userRepo, auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL), zapLogger, authOpts...)

	restaurantOpts := []restaurants.Option{
		restaurants.WithObserver(collector),
		restaurants.WithLanguage(cfg.PlacesLanguage),
	}
	if jobQueue != nil {
		restaurantOpts = append(restaurantOpts, restaurants.WithRefreshQueue(jobQueue, cfg.RestaurantRefreshAfter))
	}
	restaurantService := restaurants.NewService(restaurantRepo, favoriteRepo, placesClient, zapLogger, restaurantOpts...)
	favoriteService := favorites.NewService(favoriteRepo, restaurantRepo, zapLogger)

	var photoCache handlers.PhotoCache
	if cache, err := photocache.Open(cfg.PhotoCacheDir, cfg.PhotoCacheTTL, zapLogger); err != nil {
		zapLogger.Warn("photo_cache_disabled", zap.String("dir", cfg.PhotoCacheDir), zap.Error(err))
	} else {
		photoCache = cache
		defer func() {
			if err := cache.Close(); err != nil {
				zapLogger.Warn("failed_to_close_photo_cache", zap.Error(err))
			}
		}()
		go cache.RunGC(ctx, photoCacheGCEvery)
	}

	// Health checks for /healthz?mode=extended
	healthChecker := handlers.NewHealthChecker(zapLogger)
	healthChecker.AddCheck("database", db.PingContext)
	healthChecker.AddCheck("redis", redisConn.Ping)
	if jobQueue != nil {
		healthChecker.AddCheck("queue", jobQueue.HealthCheck)
	}
	if cache, ok := photoCache.(*photocache.Cache); ok {
		healthChecker.AddCheck("photo_cache", cache.HealthCheck)
	}

	// Hot-reloaded CORS and rate limit
	corsReloader := middleware.NewCORSReloader(corsConfigRepo, cfg.CORSOrigins, zapLogger, reloadInterval)
	limiterStore, err := redisConn.Store()
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	rateLimitReloader, err := middleware.NewRateLimitReloader(limiterStore, ratelimitConfigRepo, cfg.RateLimitDefault, zapLogger, reloadInterval)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_reloader", zap.Error(err))
	}
	go corsReloader.Start(ctx)
	go rateLimitReloader.Start(ctx)
	rateLimitMW := rateLimitReloader.Middleware()
	requireAuth := middleware.Auth(authService, zapLogger)

	// Router. Middleware registered first wraps outermost.
	r := mux.NewRouter()
	if tracerProvider != nil {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(corsReloader.Middleware())
	r.Use(middleware.Metrics(collector))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, zapLogger))
	r.Use(middleware.ContentType(zapLogger))
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	healthChecker.RegisterRoutes(r)
	r.Handle("/metrics", metrics.Handler(registry)).Methods(http.MethodGet)

	if openAPIHandler, err := handlers.LoadOpenAPIHandler(*openAPIPath); err != nil {
		zapLogger.Warn("openapi_document_unavailable", zap.String("path", *openAPIPath), zap.Error(err))
	} else {
		openAPIHandler.RegisterRoutes(r)
	}

	api := r.PathPrefix("/api").Subrouter()

	authRouter := api.PathPrefix("/auth").Subrouter()
	authRouter.Use(rateLimitMW)
	handlers.NewAuthHandler(authService, zapLogger).RegisterRoutes(authRouter, requireAuth)

	// Photo grids fan out to many requests at once, so restaurant routes are not rate limited.
	restaurantRouter := api.PathPrefix("/restaurants").Subrouter()
	handlers.NewRestaurantHandler(restaurantService, placesClient, zapLogger).RegisterRoutes(restaurantRouter, requireAuth)

	favoritesRouter := api.PathPrefix("/favorites").Subrouter()
	favoritesRouter.Use(requireAuth)
	favoritesRouter.Use(rateLimitMW)
	handlers.NewFavoriteHandler(favoriteService, zapLogger).RegisterRoutes(favoritesRouter)

	placesRouter := api.PathPrefix("/places").Subrouter()
	placesRouter.Use(rateLimitMW)
	handlers.NewPlacesHandler(placesClient, photoCache, collector, zapLogger).RegisterRoutes(placesRouter)

	// Preflight requests need a matching route for the CORS middleware to run.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		zapLogger.Info("server_listening", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
		return
	}

	zapLogger.Info("server_exited")
}

func initTracing(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) *sdktrace.TracerProvider {
	if !cfg.OTELEnabled {
		return nil
	}
	tp, err := telemetry.InitTracer(ctx, telemetry.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    true,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		return nil
	}
	zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
	return tp
}

// connectQueue retries with exponential backoff; RabbitMQ is often still
// starting when the API container comes up.
func connectQueue(url string, zapLogger *zap.Logger) (*queue.RabbitMQQueue, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q, nil
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}
	return nil, lastErr
}
