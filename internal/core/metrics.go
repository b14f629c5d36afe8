package core

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"fleetgeo/internal/types"
)

// CloudWatchClient is the subset of the CloudWatch API used for request
// metrics.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRequestMetrics publishes one APILatency datum per request.
type CloudWatchRequestMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchRequestMetrics creates a collector. An empty namespace uses
// types.MetricNamespace.
func NewCloudWatchRequestMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchRequestMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRequestMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordRequest implements MetricsCollector. Publishing failures are logged
// and never affect the response.
func (m *CloudWatchRequestMetrics) RecordRequest(ctx context.Context, method, endpoint string, status int, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{{
			MetricName: aws.String(types.MetricAPILatency),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Value:      aws.Float64(float64(duration.Microseconds()) / 1000),
			Dimensions: []cwtypes.Dimension{
				{Name: aws.String(types.DimEndpoint), Value: aws.String(method + " " + endpoint)},
				{Name: aws.String("Status"), Value: aws.String(strconv.Itoa(status))},
			},
		}},
	}
	if _, err := m.client.PutMetricData(context.WithoutCancel(ctx), input); err != nil {
		m.logger.WarnContext(ctx, "failed to publish request metrics", "endpoint", endpoint, "error", err)
	}
}
