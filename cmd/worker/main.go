package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/restaurant-finder/internal/config"
	"github.com/benvon/restaurant-finder/internal/database"
	"github.com/benvon/restaurant-finder/internal/logger"
	"github.com/benvon/restaurant-finder/internal/metrics"
	"github.com/benvon/restaurant-finder/internal/queue"
	"github.com/benvon/restaurant-finder/internal/services/places"
	"github.com/benvon/restaurant-finder/internal/telemetry"
	"github.com/benvon/restaurant-finder/internal/workers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const serviceName = "restaurant-finder-worker"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	metricsAddr := flag.String("metrics-addr", ":9091", "Address for the Prometheus scrape endpoint (empty disables it)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("rabbitmq_url_required")
	}

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTELEnabled {
		tp, err := telemetry.InitTracer(ctx, telemetry.Options{
			ServiceName: serviceName,
			Endpoint:    cfg.OTELEndpoint,
			Insecure:    true,
			SampleRatio: cfg.OTELSampleRatio,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
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

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	if ready, deadLettered, err := jobQueue.Stats(); err == nil {
		zapLogger.Info("connected_to_rabbitmq",
			zap.Int("ready_jobs", ready),
			zap.Int("dead_lettered_jobs", deadLettered),
		)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	collector := metrics.NewCollector(registry)

	placesClient := places.NewClient(places.Config{
		APIKey:    cfg.GoogleMapsAPIKey,
		BaseURL:   cfg.PlacesBaseURL,
		V1BaseURL: cfg.PlacesV1BaseURL,
		Language:  cfg.PlacesLanguage,
		Timeout:   cfg.UpstreamTimeout,
	}, zapLogger, places.WithRecorder(collector))

	refresher := workers.NewRefresher(
		placesClient,
		database.NewRestaurantRepository(db),
		jobQueue,
		collector,
		zapLogger,
	)

	if *metricsAddr != "" {
		metricsSrv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           metrics.Handler(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zapLogger.Error("metrics_server_failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		zapLogger.Info("shutdown_signal_received")
		cancel()
	}()

	zapLogger.Info("worker_started")
	if err := refresher.Run(ctx, jobQueue, cfg.RabbitMQPrefetch); err != nil {
		zapLogger.Error("worker_stopped_with_error", zap.Error(err))
		return
	}
	zapLogger.Info("worker_stopped")
}
