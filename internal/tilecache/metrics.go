package tilecache

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"fleetgeo/internal/types"
)

// Metrics receives region download outcomes.
type Metrics interface {
	RecordRegion(ctx context.Context, summary *RegionSummary)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordRegion(context.Context, *RegionSummary) {}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ Metrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics publishes region download counters.
//
// Metrics emitted per region:
//   - TilesDownloaded, TilesCached, TilesFailed: Dims {Zoom} for every zoom in the region
//   - RegionDownloadDuration: no dims
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics. An empty namespace uses
// types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordRegion emits one PutMetricData call. Failures are logged only.
func (m *CloudWatchMetrics) RecordRegion(ctx context.Context, summary *RegionSummary) {
	type counts struct{ downloaded, cached, failed int }
	byZoom := make(map[int]*counts)
	var zooms []int
	for _, r := range summary.Results {
		c, ok := byZoom[r.Coord.Zoom]
		if !ok {
			c = &counts{}
			byZoom[r.Coord.Zoom] = c
			zooms = append(zooms, r.Coord.Zoom)
		}
		switch r.Status {
		case TileDownloaded:
			c.downloaded++
		case TileCached:
			c.cached++
		case TileFailed:
			c.failed++
		}
	}

	data := make([]cwtypes.MetricDatum, 0, len(zooms)*3+1)
	for _, z := range zooms {
		c := byZoom[z]
		dims := []cwtypes.Dimension{{Name: aws.String(types.DimZoom), Value: aws.String(strconv.Itoa(z))}}
		data = append(data,
			countDatum(types.MetricTilesDownloaded, c.downloaded, dims),
			countDatum(types.MetricTilesCached, c.cached, dims),
			countDatum(types.MetricTilesFailed, c.failed, dims),
		)
	}
	data = append(data, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRegionDuration),
		Value:      aws.Float64(float64(summary.Duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to record region metrics",
			"error", err.Error(),
			"total_tiles", summary.TotalTiles,
		)
	}
}

func countDatum(name string, v int, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(v)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}
}
