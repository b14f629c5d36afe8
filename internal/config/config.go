// Package config defines the configuration structure for the fleet geospatial
// engine. Configuration is loaded once at process start and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format aborts startup.
package config

import (
	"time"

	"fleetgeo/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the section they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"fleetgeo"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	AWS           AWSConfig
	Tiles         TilesConfig
	Directions    DirectionsConfig
	Tracking      TrackingConfig
	Analytics     AnalyticsConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds trip store connection and pool tuning parameters.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RedisConfig holds the analytics result cache settings. An empty Addr
// disables the cache.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password SecretString  `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_RESULT_TTL" default:"15m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region         string `envconfig:"AWS_REGION" default:"us-east-1"`
	RegionJobQueue string `envconfig:"SQS_REGION_JOBS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// TilesConfig holds tile provider and on-disk cache settings.
type TilesConfig struct {
	ProviderURL    string        `envconfig:"TILE_PROVIDER_URL" default:"https://tile.openstreetmap.org" validate:"required,url"`
	CacheDir       string        `envconfig:"TILE_CACHE_DIR" default:"./tile-cache" validate:"required"`
	UserAgent      string        `envconfig:"TILE_USER_AGENT" default:"FleetGeo-TileCache/1.0"`
	Concurrency    int           `envconfig:"TILE_CONCURRENCY" default:"8" validate:"min=1,max=64"`
	MaxZoom        int           `envconfig:"TILE_MAX_ZOOM" default:"19" validate:"min=0,max=22"`
	MaxRegionTiles int           `envconfig:"TILE_MAX_REGION_TILES" default:"50000" validate:"min=1"`
	RequestTimeout time.Duration `envconfig:"TILE_REQUEST_TIMEOUT" default:"10s"`
}

// DirectionsConfig holds the routing provider credentials.
type DirectionsConfig struct {
	BaseURL string        `envconfig:"DIRECTIONS_BASE_URL" default:"https://maps.googleapis.com/maps/api/directions/json" validate:"required,url"`
	APIKey  SecretString  `envconfig:"DIRECTIONS_API_KEY"`
	Timeout time.Duration `envconfig:"DIRECTIONS_TIMEOUT" default:"10s"`
}

// TrackingConfig holds real-time monitoring defaults.
type TrackingConfig struct {
	DeviationThresholdMeters float64 `envconfig:"DEVIATION_THRESHOLD_METERS" default:"500" validate:"gt=0"`
	DefaultSpeedLimitKmh     float64 `envconfig:"DEFAULT_SPEED_LIMIT_KMH" default:"80" validate:"gt=0"`
}

// AnalyticsConfig holds historical analytics defaults.
type AnalyticsConfig struct {
	HeatmapPrecision int `envconfig:"HEATMAP_PRECISION" default:"4" validate:"min=0,max=8"`
	HistoryDays      int `envconfig:"ANALYTICS_HISTORY_DAYS" default:"90" validate:"min=1"`
	MaxTrips         int `envconfig:"ANALYTICS_MAX_TRIPS" default:"20000" validate:"min=1"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"FleetGeo"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
