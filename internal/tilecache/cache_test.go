package tilecache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetgeo/internal/types"
)

// fakeSource serves deterministic tile bytes and can fail selected tiles.
type fakeSource struct {
	calls atomic.Int32
	fail  map[string]bool
	gate  chan struct{}
}

func (f *fakeSource) FetchTile(ctx context.Context, coord types.TileCoordinate) ([]byte, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.fail[coord.String()] {
		return nil, types.NewAppError(types.ErrCodeUpstreamTileUnavailable, "tile provider returned 404", nil)
	}
	return []byte("png:" + coord.String()), nil
}

type fakeCloudWatch struct {
	mu     sync.Mutex
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T, src TileSource, metrics Metrics) *Cache {
	t.Helper()
	c, err := NewCache(Config{Root: t.TempDir(), MaxZoom: 19, Concurrency: 4}, src, metrics, discardLogger())
	require.NoError(t, err)
	return c
}

func TestFetchTile_MissThenHit(t *testing.T) {
	src := &fakeSource{}
	c := newTestCache(t, src, nil)
	coord := types.TileCoordinate{X: 1, Y: 2, Zoom: 3}

	first, err := c.FetchTile(context.Background(), coord)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, []byte("png:3/1/2"), first.Data)
	assert.Equal(t, filepath.Join(c.root, "3", "1", "2.png"), first.Path)

	onDisk, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, first.Data, onDisk)

	second, err := c.FetchTile(context.Background(), coord)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.True(t, c.Has(coord))
}

func TestFetchTile_UpstreamFailureLeavesNoFile(t *testing.T) {
	coord := types.TileCoordinate{X: 0, Y: 0, Zoom: 1}
	src := &fakeSource{fail: map[string]bool{coord.String(): true}}
	c := newTestCache(t, src, nil)

	_, err := c.FetchTile(context.Background(), coord)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeUpstreamTileUnavailable))
	assert.False(t, c.Has(coord))
}

func TestFetchTile_InvalidCoordinate(t *testing.T) {
	src := &fakeSource{}
	c := newTestCache(t, src, nil)

	_, err := c.FetchTile(context.Background(), types.TileCoordinate{X: 9, Y: 0, Zoom: 2})
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidGeometry))
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestFetchTile_ConcurrentMissesShareOneFetch(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	c := newTestCache(t, src, nil)
	coord := types.TileCoordinate{X: 5, Y: 5, Zoom: 4}

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.FetchTile(context.Background(), coord)
		}()
	}

	// Let the callers pile up behind the first fetch before releasing it.
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.calls.Load())

	entries, err := os.ReadDir(filepath.Dir(c.TilePath(coord)))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestDownloadRegion_PartialFailure(t *testing.T) {
	b := types.Bounds{North: 51.6, South: 51.4, East: 0.0, West: -0.3}
	r, err := BoundsToTileRange(b, 10, 19)
	require.NoError(t, err)
	bad := r.Tiles()[0]

	src := &fakeSource{fail: map[string]bool{bad.String(): true}}
	cw := &fakeCloudWatch{}
	c := newTestCache(t, src, NewCloudWatchMetrics(cw, "", discardLogger()))

	summary, err := c.DownloadRegion(context.Background(), b, []int{10, 10}, RegionOptions{})
	require.NoError(t, err)

	assert.Equal(t, r.Count(), summary.TotalTiles)
	assert.Equal(t, r.Count()-1, summary.Downloaded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	assert.False(t, summary.Cancelled)
	require.Len(t, summary.Results, r.Count())
	assert.Equal(t, TileFailed, summary.Results[0].Status)
	assert.Equal(t, types.ErrCodeUpstreamTileUnavailable, summary.Results[0].ErrorCode)

	require.Len(t, cw.inputs, 1)
	assert.Equal(t, types.MetricNamespace, *cw.inputs[0].Namespace)
	assert.Len(t, cw.inputs[0].MetricData, 4)

	again, err := c.DownloadRegion(context.Background(), b, []int{10}, RegionOptions{})
	require.NoError(t, err)
	assert.Equal(t, r.Count()-1, again.Cached)
	assert.Equal(t, 1, again.Failed)
}

func TestDownloadRegion_MultipleZooms(t *testing.T) {
	b := types.Bounds{North: 10, South: -10, East: 10, West: -10}
	c := newTestCache(t, &fakeSource{}, nil)

	summary, err := c.DownloadRegion(context.Background(), b, []int{2, 0, 1}, RegionOptions{Concurrency: 2})
	require.NoError(t, err)

	want := 0
	for _, z := range []int{0, 1, 2} {
		r, err := BoundsToTileRange(b, z, 19)
		require.NoError(t, err)
		want += r.Count()
	}
	assert.Equal(t, want, summary.TotalTiles)
	assert.Equal(t, want, summary.Downloaded)
	assert.Len(t, summary.Ranges, 3)
}

func TestDownloadRegion_MaxTiles(t *testing.T) {
	src := &fakeSource{}
	c := newTestCache(t, src, nil)

	_, err := c.DownloadRegion(context.Background(), types.Bounds{North: 60, South: 40, East: 20, West: -20}, []int{8}, RegionOptions{MaxTiles: 10})
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationBatchSize))
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestDownloadRegion_CancelledBeforeStart(t *testing.T) {
	src := &fakeSource{}
	c := newTestCache(t, src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := c.DownloadRegion(ctx, types.Bounds{North: 1, South: -1, East: 1, West: -1}, []int{3}, RegionOptions{})
	require.NoError(t, err)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, summary.TotalTiles, summary.Skipped)
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestDownloadRegion_CancelWhileWaitingForSlot(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	c := newTestCache(t, src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		summary *RegionSummary
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		// Four tiles at zoom 1 on a single worker.
		s, err := c.DownloadRegion(ctx, types.Bounds{North: 1, South: -1, East: 1, West: -1}, []int{1}, RegionOptions{Concurrency: 1})
		done <- outcome{s, err}
	}()

	// The first fetch holds the only slot while the loop waits on the next.
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	close(src.gate)

	var got outcome
	select {
	case got = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("DownloadRegion did not return after cancellation")
	}
	require.NoError(t, got.err)

	assert.Equal(t, int32(1), src.calls.Load())
	assert.True(t, got.summary.Cancelled)
	assert.Equal(t, 4, got.summary.TotalTiles)
	assert.Equal(t, 1, got.summary.Downloaded)
	assert.Equal(t, 3, got.summary.Skipped)
}

func TestNewCache_MaxZoomZeroAllowsOnlyWorldTile(t *testing.T) {
	src := &fakeSource{}
	c, err := NewCache(Config{Root: t.TempDir(), MaxZoom: 0}, src, nil, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, c.MaxZoom())

	_, err = c.FetchTile(context.Background(), types.TileCoordinate{X: 0, Y: 0, Zoom: 0})
	require.NoError(t, err)

	_, err = c.FetchTile(context.Background(), types.TileCoordinate{X: 0, Y: 0, Zoom: 1})
	require.Error(t, err)
	assert.Equal(t, int32(1), src.calls.Load())

	clamped, err := NewCache(Config{Root: t.TempDir(), MaxZoom: -1}, src, nil, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, types.MaxTileZoom, clamped.MaxZoom())
}

func TestDownloadRegion_RequiresZoom(t *testing.T) {
	c := newTestCache(t, &fakeSource{}, nil)
	_, err := c.DownloadRegion(context.Background(), types.Bounds{North: 1, South: 0, East: 1, West: 0}, nil, RegionOptions{})
	assert.True(t, types.HasCode(err, types.ErrCodeValidationMissingField))
}

func TestStats(t *testing.T) {
	c := newTestCache(t, &fakeSource{}, nil)
	ctx := context.Background()

	for _, coord := range []types.TileCoordinate{{X: 0, Y: 0, Zoom: 1}, {X: 1, Y: 1, Zoom: 1}, {X: 3, Y: 2, Zoom: 2}} {
		_, err := c.FetchTile(ctx, coord)
		require.NoError(t, err)
	}
	// Leftover temp file and stray file are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(c.root, "1", "0", ".tile-123.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(c.root, "README"), []byte("x"), 0o644))

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tiles)
	assert.Equal(t, 2, stats.ByZoom[1].Tiles)
	assert.Equal(t, 1, stats.ByZoom[2].Tiles)
	assert.Equal(t, int64(len("png:2/3/2")), stats.ByZoom[2].Bytes)
}

func TestCloudWatchMetrics_LogsFailure(t *testing.T) {
	cw := &fakeCloudWatch{err: fmt.Errorf("throttled")}
	m := NewCloudWatchMetrics(cw, "Custom", discardLogger())

	m.RecordRegion(context.Background(), &RegionSummary{
		Results: []TileResult{
			{Coord: types.TileCoordinate{Zoom: 1}, Status: TileDownloaded},
			{Coord: types.TileCoordinate{Zoom: 2}, Status: TileCached},
		},
	})

	require.Len(t, cw.inputs, 1)
	assert.Equal(t, "Custom", *cw.inputs[0].Namespace)
	assert.Len(t, cw.inputs[0].MetricData, 7)
}
