// Package queue provides the SQS producer for asynchronous region download
// jobs consumed by the tile worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"fleetgeo/internal/config"
	"fleetgeo/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// RegionJobQueue enqueues region download jobs.
type RegionJobQueue struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewRegionJobQueue creates a RegionJobQueue for the queue configured in
// awsCfg.RegionJobQueue.
func NewRegionJobQueue(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *RegionJobQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegionJobQueue{
		client:   client,
		queueURL: awsCfg.RegionJobQueue,
		clock:    types.RealClock{},
		logger:   logger,
	}
}

// Enqueue validates msg, fills in the job ID, request time and trace ID
// when absent, and sends it. The completed message is returned so the
// caller can report the job ID.
func (q *RegionJobQueue) Enqueue(ctx context.Context, msg types.RegionJobMessage) (types.RegionJobMessage, error) {
	if msg.JobID == "" {
		msg.JobID = "region_" + uuid.New().String()
	}
	if msg.RequestedAt.IsZero() {
		msg.RequestedAt = q.clock.Now()
	}
	if msg.TraceID == "" {
		msg.TraceID = types.GetRequestID(ctx)
	}
	if err := msg.Validate(); err != nil {
		return msg, err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return msg, fmt.Errorf("queue: failed to marshal RegionJobMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"job_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.JobID),
			},
		},
	}

	if _, err := q.client.SendMessage(ctx, input); err != nil {
		return msg, types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("failed to enqueue region job to %s", q.queueURL), err)
	}

	q.logger.InfoContext(ctx, "region job enqueued",
		"queue_url", q.queueURL,
		"job_id", msg.JobID,
		"trace_id", msg.TraceID,
		"zooms", msg.Zooms,
		"retry_count", msg.RetryCount,
	)
	return msg, nil
}
