// Package main is the Lambda entry point for the region download worker.
//
// It consumes RegionJobMessage batches from the region job queue and warms
// the shared tile cache through tilecache.DownloadRegion. Jobs whose region
// finished with failed tiles are re-queued with an incremented RetryCount
// until the retry budget is spent.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/kelseyhightower/envconfig"

	"fleetgeo/internal/config"
	"fleetgeo/internal/external"
	"fleetgeo/internal/queue"
	"fleetgeo/internal/tilecache"
	"fleetgeo/internal/types"
)

// RegionDownloader warms the cache for a region.
type RegionDownloader interface {
	DownloadRegion(ctx context.Context, bounds types.Bounds, zooms []int, opts tilecache.RegionOptions) (*tilecache.RegionSummary, error)
}

// Requeuer puts a job back on the region job queue.
type Requeuer interface {
	Enqueue(ctx context.Context, msg types.RegionJobMessage) (types.RegionJobMessage, error)
}

// workerConfig is the subset of settings the worker needs. The worker has
// no trip store, so it does not go through config.LoadConfig.
type workerConfig struct {
	AWSRegion       string        `envconfig:"AWS_REGION" default:"us-east-1"`
	EndpointURL     string        `envconfig:"AWS_ENDPOINT_URL"`
	QueueURL        string        `envconfig:"SQS_REGION_JOBS"`
	CacheDir        string        `envconfig:"TILE_CACHE_DIR" default:"/mnt/tiles"`
	ProviderURL     string        `envconfig:"TILE_PROVIDER_URL" default:"https://tile.openstreetmap.org"`
	UserAgent       string        `envconfig:"TILE_USER_AGENT" default:"FleetGeo-TileCache/1.0"`
	Concurrency     int           `envconfig:"TILE_CONCURRENCY" default:"8"`
	MaxZoom         int           `envconfig:"TILE_MAX_ZOOM" default:"19"`
	MaxRegionTiles  int           `envconfig:"TILE_MAX_REGION_TILES" default:"50000"`
	RequestTimeout  time.Duration `envconfig:"TILE_REQUEST_TIMEOUT" default:"10s"`
	MetricNamespace string        `envconfig:"METRIC_NAMESPACE" default:"FleetGeo"`
	MaxRetries      int           `envconfig:"REGION_JOB_MAX_RETRIES" default:"3"`
}

// Handler processes SQS batches of region jobs.
type Handler struct {
	regions    RegionDownloader
	requeue    Requeuer
	maxRetries int
	logger     *slog.Logger
}

// Handle processes each record independently and reports the ones that
// should be redelivered. Malformed and invalid jobs are acknowledged.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.Error("failed to process SQS message",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var msg types.RegionJobMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		h.logger.Error("failed to unmarshal region job message",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		return nil
	}

	logger := h.logger.With(
		"job_id", msg.JobID,
		"retry_count", msg.RetryCount,
		"trace_id", msg.TraceID,
	)

	if err := msg.Validate(); err != nil {
		logger.Error("discarding invalid region job", "error", err.Error())
		return nil
	}

	if sent, ok := record.Attributes["SentTimestamp"]; ok {
		if sentAt, err := parseMillisTimestamp(sent); err == nil {
			logger.Info("processing region job", "queue_lag", time.Since(sentAt).String(), "zooms", msg.Zooms)
		}
	}

	ctx = types.WithRequestID(ctx, msg.TraceID)
	summary, err := h.regions.DownloadRegion(ctx, msg.Bounds, msg.Zooms, tilecache.RegionOptions{MaxTiles: msg.MaxTiles})
	if err != nil {
		if isPermanent(err) {
			logger.Error("region job rejected", "error", err.Error())
			return nil
		}
		return fmt.Errorf("download region %s: %w", msg.JobID, err)
	}

	logger.Info("region job finished",
		"total_tiles", summary.TotalTiles,
		"downloaded", summary.Downloaded,
		"cached", summary.Cached,
		"failed", summary.Failed,
		"duration", summary.Duration.String(),
	)

	if summary.Failed == 0 && !summary.Cancelled {
		return nil
	}
	return h.retry(ctx, msg, logger)
}

// retry re-queues msg with RetryCount+1. Cached tiles are skipped on the
// next attempt, so only the failures are fetched again.
func (h *Handler) retry(ctx context.Context, msg types.RegionJobMessage, logger *slog.Logger) error {
	if h.requeue == nil || msg.RetryCount >= h.maxRetries {
		logger.Warn("region job finished with failures; retry budget exhausted",
			"max_retries", h.maxRetries,
		)
		return nil
	}
	msg.RetryCount++
	if _, err := h.requeue.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("requeue region job %s: %w", msg.JobID, err)
	}
	logger.Info("region job re-queued", "next_retry_count", msg.RetryCount)
	return nil
}

// isPermanent reports whether redelivering the job cannot succeed.
func isPermanent(err error) bool {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.HTTPStatus() == http.StatusBadRequest
}

func parseMillisTimestamp(ms string) (time.Time, error) {
	var millis int64
	if _, err := fmt.Sscanf(ms, "%d", &millis); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis), nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Tile Worker Lambda initializing (cold start)")

	if err := config.ResolveSecrets(config.NewSSMProvider(os.Getenv("AWS_REGION"))); err != nil {
		logger.Error("Failed to resolve secrets", "error", err)
		os.Exit(1)
	}

	var cfg workerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logger.Error("Failed to read worker configuration", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}

	source := external.NewTileClient(external.TileClientConfig{
		BaseURL:   cfg.ProviderURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.RequestTimeout,
		Logger:    logger.With("client", "tiles"),
	})
	metrics := tilecache.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.MetricNamespace, logger)

	cache, err := tilecache.NewCache(tilecache.Config{
		Root:           cfg.CacheDir,
		MaxZoom:        cfg.MaxZoom,
		Concurrency:    cfg.Concurrency,
		MaxRegionTiles: cfg.MaxRegionTiles,
	}, source, metrics, logger.With("component", "tilecache"))
	if err != nil {
		logger.Error("Failed to create tile cache", "error", err)
		os.Exit(1)
	}

	handler := &Handler{
		regions:    cache,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
	if cfg.QueueURL != "" {
		handler.requeue = queue.NewRegionJobQueue(sqs.NewFromConfig(awsCfg), config.AWSConfig{
			Region:         cfg.AWSRegion,
			RegionJobQueue: cfg.QueueURL,
			EndpointURL:    cfg.EndpointURL,
		}, logger)
	}

	logger.Info("Tile Worker Lambda initialized",
		"region_job_queue", cfg.QueueURL,
		"cache_dir", cfg.CacheDir,
		"metric_namespace", cfg.MetricNamespace,
		"concurrency", cfg.Concurrency,
		"max_retries", cfg.MaxRetries,
	)

	lambda.Start(handler.Handle)
}
