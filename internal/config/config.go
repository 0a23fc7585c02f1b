package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL       string
	AutoMigrate       bool
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	ServerPort  string
	BaseURL     string
	CORSOrigins string
	EnableHSTS  bool

	JWTSecret  string
	JWTIssuer  string
	JWTTTL     time.Duration
	BcryptCost int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	GoogleMapsAPIKey string
	PlacesBaseURL    string
	PlacesV1BaseURL  string
	PlacesLanguage   string
	UpstreamTimeout  time.Duration

	RestaurantRefreshAfter time.Duration
	PhotoCacheDir          string
	PhotoCacheTTL          time.Duration

	RedisURL         string
	RateLimitDefault string
	RabbitMQURL      string
	RabbitMQPrefetch int

	WorkerDebugMode bool
	ServerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
	OTELSampleRatio float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		AutoMigrate:       getEnvBool("AUTO_MIGRATE", true),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		ServerPort:  getEnv("SERVER_PORT", "8080"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173"),
		EnableHSTS:  getEnvBool("ENABLE_HSTS", false),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		JWTIssuer:  getEnv("JWT_ISSUER", "restaurant-finder"),
		JWTTTL:     getEnvDuration("JWT_TTL", 24*time.Hour),
		BcryptCost: getEnvInt("BCRYPT_COST", 12),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "postmessage"),

		GoogleMapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		PlacesBaseURL:    getEnv("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		PlacesV1BaseURL:  getEnv("PLACES_V1_BASE_URL", "https://places.googleapis.com/v1"),
		PlacesLanguage:   getEnv("PLACES_LANGUAGE", "zh-TW"),
		UpstreamTimeout:  getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second),

		RestaurantRefreshAfter: getEnvDuration("RESTAURANT_REFRESH_AFTER", 7*24*time.Hour),
		PhotoCacheDir:          getEnv("PHOTO_CACHE_DIR", "data/photo-cache"),
		PhotoCacheTTL:          getEnvDuration("PHOTO_CACHE_TTL", 7*24*time.Hour),

		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RateLimitDefault: getEnv("RATE_LIMIT_DEFAULT", "5-S"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),

		WorkerDebugMode: getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required for signing session tokens")
	}

	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive, got %s", cfg.JWTTTL)
	}

	return cfg, nil
}

// GoogleCodeExchangeEnabled reports whether the authorization-code Google login is configured.
func (c *Config) GoogleCodeExchangeEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s", "24h") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
