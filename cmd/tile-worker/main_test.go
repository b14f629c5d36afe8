package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetgeo/internal/tilecache"
	"fleetgeo/internal/types"
)

type fakeDownloader struct {
	calls   []types.RegionJobMessage
	summary *tilecache.RegionSummary
	err     error
}

func (f *fakeDownloader) DownloadRegion(_ context.Context, bounds types.Bounds, zooms []int, opts tilecache.RegionOptions) (*tilecache.RegionSummary, error) {
	f.calls = append(f.calls, types.RegionJobMessage{Bounds: bounds, Zooms: zooms, MaxTiles: opts.MaxTiles})
	if f.err != nil {
		return nil, f.err
	}
	if f.summary != nil {
		return f.summary, nil
	}
	return &tilecache.RegionSummary{TotalTiles: 4, Downloaded: 4}, nil
}

type fakeRequeuer struct {
	sent []types.RegionJobMessage
	err  error
}

func (f *fakeRequeuer) Enqueue(_ context.Context, msg types.RegionJobMessage) (types.RegionJobMessage, error) {
	if f.err != nil {
		return msg, f.err
	}
	f.sent = append(f.sent, msg)
	return msg, nil
}

func newTestHandler(d RegionDownloader, r Requeuer) *Handler {
	h := &Handler{
		regions:    d,
		maxRetries: 2,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if r != nil {
		h.requeue = r
	}
	return h
}

func jobRecord(t *testing.T, id string, msg types.RegionJobMessage) events.SQSMessage {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return events.SQSMessage{
		MessageId: id,
		Body:      string(body),
		Attributes: map[string]string{
			"SentTimestamp": strconv.FormatInt(time.Now().Add(-2*time.Second).UnixMilli(), 10),
		},
	}
}

func validJob() types.RegionJobMessage {
	return types.RegionJobMessage{
		JobID:    "region_1",
		Bounds:   types.Bounds{North: 40.75, South: 40.70, East: -73.95, West: -74.00},
		Zooms:    []int{12, 13},
		MaxTiles: 500,
		TraceID:  "req_abc",
	}
}

func TestHandle_Success(t *testing.T) {
	d := &fakeDownloader{}
	h := newTestHandler(d, &fakeRequeuer{})

	resp, err := h.Handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{jobRecord(t, "m1", validJob())},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	require.Len(t, d.calls, 1)
	assert.Equal(t, []int{12, 13}, d.calls[0].Zooms)
	assert.Equal(t, 500, d.calls[0].MaxTiles)
}

func TestHandle_MalformedAndInvalidAreAcknowledged(t *testing.T) {
	d := &fakeDownloader{}
	h := newTestHandler(d, nil)

	invalid := validJob()
	invalid.Zooms = []int{30}

	resp, err := h.Handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{
			{MessageId: "bad-json", Body: "{not json"},
			jobRecord(t, "bad-zoom", invalid),
		},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Empty(t, d.calls)
}

func TestHandle_ValidationErrorFromCacheIsAcknowledged(t *testing.T) {
	d := &fakeDownloader{err: types.NewAppError(types.ErrCodeValidationBatchSize, "too many tiles", nil)}
	h := newTestHandler(d, nil)

	resp, err := h.Handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{jobRecord(t, "m1", validJob())},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
}

func TestHandle_UnexpectedErrorIsRedelivered(t *testing.T) {
	d := &fakeDownloader{err: errors.New("disk full")}
	h := newTestHandler(d, nil)

	resp, err := h.Handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{
			jobRecord(t, "m1", validJob()),
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "m1", resp.BatchItemFailures[0].ItemIdentifier)
}

func TestHandle_FailedTilesRequeueWithRetryCount(t *testing.T) {
	d := &fakeDownloader{summary: &tilecache.RegionSummary{TotalTiles: 4, Downloaded: 3, Failed: 1}}
	rq := &fakeRequeuer{}
	h := newTestHandler(d, rq)

	resp, err := h.Handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{jobRecord(t, "m1", validJob())},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	require.Len(t, rq.sent, 1)
	assert.Equal(t, 1, rq.sent[0].RetryCount)
	assert.Equal(t, "region_1", rq.sent[0].JobID)
}

func TestHandle_RetryBudgetExhausted(t *testing.T) {
	d := &fakeDownloader{summary: &tilecache.RegionSummary{TotalTiles: 4, Failed: 4}}
	rq := &fakeRequeuer{}
	h := newTestHandler(d, rq)

	job := validJob()
	job.RetryCount = 2

	resp, err := h.Handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{jobRecord(t, "m1", job)},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Empty(t, rq.sent)
}

func TestHandle_RequeueFailureIsRedelivered(t *testing.T) {
	d := &fakeDownloader{summary: &tilecache.RegionSummary{TotalTiles: 4, Cancelled: true, Skipped: 4}}
	rq := &fakeRequeuer{err: errors.New("sqs down")}
	h := newTestHandler(d, rq)

	resp, err := h.Handle(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{
			jobRecord(t, "m1", validJob()),
			{MessageId: "m2", Body: "garbage"},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "m1", resp.BatchItemFailures[0].ItemIdentifier)
}

func TestParseMillisTimestamp(t *testing.T) {
	ts, err := parseMillisTimestamp("1700000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000000), ts.UnixMilli())

	_, err = parseMillisTimestamp("abc")
	assert.Error(t, err)
}
