// Package main is the entry point for the fleet geospatial API server.
//
// It loads configuration, connects the trip store and the optional result
// cache, builds the tile cache and the real-time monitors, mounts every
// handler on the core chassis, and serves HTTP until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"

	"fleetgeo/internal/analytics"
	"fleetgeo/internal/api/handlers"
	"fleetgeo/internal/cache"
	"fleetgeo/internal/config"
	"fleetgeo/internal/core"
	"fleetgeo/internal/db"
	"fleetgeo/internal/external"
	"fleetgeo/internal/geofence"
	"fleetgeo/internal/queue"
	"fleetgeo/internal/routing"
	"fleetgeo/internal/tilecache"
	"fleetgeo/internal/tracking"
	"fleetgeo/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(secretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("fleetgeo API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting trip store: %w", err)
	}
	srv.Closers = append(srv.Closers, pool.Close)
	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{ProbeName: "database", Fn: pool.Ping})

	deps := dependencies{
		trips:       db.NewTripRepository(pool),
		clients:     external.NewClientRegistry(cfg, logger),
		tileMetrics: tilecache.NoopMetrics{},
	}

	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			srv.Shutdown(ctx)
			return fmt.Errorf("connecting result cache: %w", err)
		}
		srv.Closers = append(srv.Closers, func() { rdb.Close() })
		srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
			ProbeName: "redis",
			Fn:        func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		deps.results = cache.NewRedisResultCache(rdb, cfg.Redis.TTL, logger)
	} else {
		logger.Info("REDIS_ADDR not set; analytics results are not cached")
	}

	if cfg.AWS.RegionJobQueue != "" || cfg.Observability.EnableMetrics {
		awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			srv.Shutdown(ctx)
			return err
		}
		if cfg.AWS.RegionJobQueue != "" {
			deps.jobs = queue.NewRegionJobQueue(sqs.NewFromConfig(awsCfg), cfg.AWS, logger)
		}
		if cfg.Observability.EnableMetrics {
			cw := cloudwatch.NewFromConfig(awsCfg)
			srv.Metrics = core.NewCloudWatchRequestMetrics(cw, cfg.Observability.MetricNamespace, logger)
			deps.tileMetrics = tilecache.NewCloudWatchMetrics(cw, cfg.Observability.MetricNamespace, logger)
		}
	}

	if err := mountHandlers(srv, cfg, deps, logger); err != nil {
		srv.Shutdown(ctx)
		return err
	}
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// dependencies holds the externally backed collaborators of the handlers.
// results and jobs are optional.
type dependencies struct {
	trips       analytics.TripStore
	results     analytics.ResultCache
	clients     *external.ClientRegistry
	jobs        handlers.RegionJobEnqueuer
	tileMetrics tilecache.Metrics
}

// mountHandlers builds the domain services and registers every handler
// under /v1. It also adds the tile cache directory probe.
func mountHandlers(srv *core.Server, cfg *config.Config, deps dependencies, logger *slog.Logger) error {
	clock := types.RealClock{}

	tiles, err := tilecache.NewCache(tilecache.Config{
		Root:           cfg.Tiles.CacheDir,
		MaxZoom:        cfg.Tiles.MaxZoom,
		Concurrency:    cfg.Tiles.Concurrency,
		MaxRegionTiles: cfg.Tiles.MaxRegionTiles,
	}, deps.clients.Tiles, deps.tileMetrics, logger.With("component", "tilecache"))
	if err != nil {
		return fmt.Errorf("creating tile cache: %w", err)
	}
	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
		ProbeName: "tile_cache",
		Fn: func(context.Context) error {
			_, err := os.Stat(cfg.Tiles.CacheDir)
			return err
		},
	})

	analyticsSvc := analytics.NewService(deps.trips, deps.results, analytics.ServiceConfig{
		HistoryDays: cfg.Analytics.HistoryDays,
		MaxTrips:    cfg.Analytics.MaxTrips,
	}, clock, logger.With("component", "analytics"))

	tileHandler := handlers.NewTileHandler(tiles, deps.jobs, srv.Validator, logger)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsSvc, srv.Validator, cfg.Analytics.HeatmapPrecision, logger)
	routeHandler := handlers.NewRouteHandler(routing.NewScorer(deps.clients.Directions, logger), srv.Validator, logger)
	trackingHandler := handlers.NewTrackingHandler(
		tracking.NewMonitor(cfg.Tracking.DefaultSpeedLimitKmh, clock, logger),
		cfg.Tracking.DeviationThresholdMeters,
		srv.Validator,
		logger,
	)
	geofenceHandler := handlers.NewGeofenceHandler(geofence.NewEvaluator(clock, logger), srv.Validator, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { r.Route("/tiles", tileHandler.RegisterRoutes) },
		func(r chi.Router) { r.Route("/analytics", analyticsHandler.RegisterRoutes) },
		func(r chi.Router) { r.Route("/trips", analyticsHandler.RegisterTripRoutes) },
		func(r chi.Router) { r.Route("/routes", routeHandler.RegisterRoutes) },
		func(r chi.Router) { r.Route("/tracking", trackingHandler.RegisterRoutes) },
		func(r chi.Router) { r.Route("/geofences", geofenceHandler.RegisterRoutes) },
	)
	return nil
}

// secretProvider returns nil for local runs, where SSM resolution is
// bypassed, and an SSM provider otherwise.
func secretProvider() config.SecretProvider {
	if os.Getenv("APP_ENV") == "local" {
		return nil
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	return config.NewSSMProvider(region)
}

// loadAWSConfig loads the SDK configuration, pointing it at LocalStack when
// an endpoint override is set.
func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
	return awsCfg, nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			srv.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Releases the pool and the redis client.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
