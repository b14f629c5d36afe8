package tilecache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"fleetgeo/internal/types"
)

// TileStatus is the per-tile outcome of a region download.
type TileStatus string

const (
	TileDownloaded TileStatus = "downloaded"
	TileCached     TileStatus = "cached"
	TileFailed     TileStatus = "failed"
	TileSkipped    TileStatus = "skipped"
)

// RegionOptions tunes a single DownloadRegion call. Zero values fall back
// to the cache configuration.
type RegionOptions struct {
	Concurrency int
	MaxTiles    int
}

// TileResult records what happened to one tile.
type TileResult struct {
	Coord     types.TileCoordinate `json:"coord"`
	Status    TileStatus           `json:"status"`
	ErrorCode types.ErrorCode      `json:"error_code,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// RegionSummary aggregates a region download.
type RegionSummary struct {
	TotalTiles int           `json:"total_tiles"`
	Downloaded int           `json:"downloaded"`
	Cached     int           `json:"cached"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Cancelled  bool          `json:"cancelled"`
	Duration   time.Duration `json:"duration_ns"`
	Ranges     []TileRange   `json:"ranges"`
	Results    []TileResult  `json:"results"`
}

// PlanRegion computes the tile ranges for bounds across zooms without
// fetching anything. Duplicate zooms are ignored.
func (c *Cache) PlanRegion(bounds types.Bounds, zooms []int) ([]TileRange, int, error) {
	if len(zooms) == 0 {
		return nil, 0, types.NewAppError(types.ErrCodeValidationMissingField, "at least one zoom level is required", nil)
	}
	uniq := slices.Clone(zooms)
	slices.Sort(uniq)
	uniq = slices.Compact(uniq)

	ranges := make([]TileRange, 0, len(uniq))
	total := 0
	for _, z := range uniq {
		r, err := BoundsToTileRange(bounds, z, c.cfg.MaxZoom)
		if err != nil {
			return nil, 0, err
		}
		ranges = append(ranges, r)
		total += r.Count()
	}
	return ranges, total, nil
}

// DownloadRegion fetches every tile covering bounds at each zoom. Tiles run
// on a bounded worker pool. A failed tile is recorded in the summary and
// never aborts the batch. Once ctx is cancelled no new fetches start; the
// ones already in flight are allowed to finish and the remainder are
// reported as skipped. The only errors returned are validation errors for
// the request itself.
func (c *Cache) DownloadRegion(ctx context.Context, bounds types.Bounds, zooms []int, opts RegionOptions) (*RegionSummary, error) {
	ranges, total, err := c.PlanRegion(bounds, zooms)
	if err != nil {
		return nil, err
	}

	maxTiles := opts.MaxTiles
	if maxTiles <= 0 {
		maxTiles = c.cfg.MaxRegionTiles
	}
	if maxTiles > 0 && total > maxTiles {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationBatchSize,
			fmt.Sprintf("region covers %d tiles, limit is %d", total, maxTiles),
			nil,
			map[string]any{"total_tiles": total, "max_tiles": maxTiles},
		)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = c.cfg.Concurrency
	}

	start := c.clock.Now()
	logger := types.LoggerFromContext(ctx, c.logger)
	logger.InfoContext(ctx, "region download started",
		"total_tiles", total,
		"zooms", len(ranges),
		"concurrency", concurrency,
	)

	results := make([]TileResult, 0, total)
	for _, r := range ranges {
		for _, coord := range r.Tiles() {
			results = append(results, TileResult{Coord: coord, Status: TileSkipped})
		}
	}

	// In-flight fetches outlive caller cancellation.
	fetchCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i := range results {
		if ctx.Err() != nil {
			break
		}
		// Go may block for a free slot, so cancellation is checked again
		// once the slot is held.
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = c.fetchOne(fetchCtx, results[i].Coord)
			return nil
		})
	}
	_ = g.Wait()

	summary := &RegionSummary{
		TotalTiles: total,
		Cancelled:  ctx.Err() != nil,
		Ranges:     ranges,
		Results:    results,
	}
	for _, r := range results {
		switch r.Status {
		case TileDownloaded:
			summary.Downloaded++
		case TileCached:
			summary.Cached++
		case TileFailed:
			summary.Failed++
		case TileSkipped:
			summary.Skipped++
		}
	}
	summary.Duration = c.clock.Now().Sub(start)

	c.metrics.RecordRegion(fetchCtx, summary)
	logger.InfoContext(ctx, "region download finished",
		"total_tiles", summary.TotalTiles,
		"downloaded", summary.Downloaded,
		"cached", summary.Cached,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"cancelled", summary.Cancelled,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary, nil
}

func (c *Cache) fetchOne(ctx context.Context, coord types.TileCoordinate) TileResult {
	res, err := c.FetchTile(ctx, coord)
	if err != nil {
		c.logger.WarnContext(ctx, "tile download failed",
			"tile", coord.String(),
			"error", err,
		)
		out := TileResult{Coord: coord, Status: TileFailed, Error: err.Error()}
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			out.ErrorCode = appErr.Code
		}
		return out
	}
	if res.Cached {
		return TileResult{Coord: coord, Status: TileCached}
	}
	return TileResult{Coord: coord, Status: TileDownloaded}
}
