package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fleetgeo/internal/core"
	"fleetgeo/internal/tilecache"
	"fleetgeo/internal/types"
)

// TileCacheService is the subset of *tilecache.Cache used by the handler.
type TileCacheService interface {
	FetchTile(ctx context.Context, coord types.TileCoordinate) (*tilecache.FetchResult, error)
	PlanRegion(bounds types.Bounds, zooms []int) ([]tilecache.TileRange, int, error)
	DownloadRegion(ctx context.Context, bounds types.Bounds, zooms []int, opts tilecache.RegionOptions) (*tilecache.RegionSummary, error)
	Stats() (tilecache.Stats, error)
}

// RegionJobEnqueuer hands region downloads to the tile worker.
type RegionJobEnqueuer interface {
	Enqueue(ctx context.Context, msg types.RegionJobMessage) (types.RegionJobMessage, error)
}

// TileHandler serves cached tiles and region downloads.
type TileHandler struct {
	cache     TileCacheService
	jobs      RegionJobEnqueuer
	validator *core.Validator
	logger    *slog.Logger
}

// NewTileHandler creates a TileHandler. With a nil jobs enqueuer every
// region download runs synchronously within the request.
func NewTileHandler(cache TileCacheService, jobs RegionJobEnqueuer, val *core.Validator, logger *slog.Logger) *TileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TileHandler{cache: cache, jobs: jobs, validator: val, logger: logger}
}

// RegisterRoutes mounts the tile endpoints.
func (h *TileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{z}/{x}/{y}.png", h.HandleGetTile)
	r.Post("/regions", h.HandleDownloadRegion)
	r.Get("/stats", h.HandleStats)
}

// HandleGetTile handles GET /v1/tiles/{z}/{x}/{y}.png. The X-Tile-Cache
// header reports HIT or MISS.
func (h *TileHandler) HandleGetTile(w http.ResponseWriter, r *http.Request) {
	var coord types.TileCoordinate
	for _, p := range []struct {
		name string
		dst  *int
	}{{"z", &coord.Zoom}, {"x", &coord.X}, {"y", &coord.Y}} {
		v, err := strconv.Atoi(chi.URLParam(r, p.name))
		if err != nil {
			core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidRequest,
				"tile coordinates must be integers", err, map[string]any{"param": p.name}))
			return
		}
		*p.dst = v
	}

	res, err := h.cache.FetchTile(r.Context(), coord)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	status := "MISS"
	if res.Cached {
		status = "HIT"
	}
	w.Header().Set("X-Tile-Cache", status)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	core.Raw(w, http.StatusOK, "image/png", res.Data)
}

// RegionRequest is the body of POST /v1/tiles/regions.
type RegionRequest struct {
	Bounds      types.Bounds `json:"bounds" validate:"required"`
	Zooms       []int        `json:"zooms" validate:"required,min=1,dive,tile_zoom"`
	MaxTiles    int          `json:"max_tiles" validate:"gte=0"`
	Concurrency int          `json:"concurrency" validate:"gte=0,lte=64"`
	Async       bool         `json:"async"`
}

// RegionPlan describes a region without downloading it.
type RegionPlan struct {
	TotalTiles int                   `json:"total_tiles"`
	Ranges     []tilecache.TileRange `json:"ranges"`
}

// regionJobResponse is returned when the download is queued.
type regionJobResponse struct {
	JobID string     `json:"job_id"`
	Plan  RegionPlan `json:"plan"`
}

// HandleDownloadRegion handles POST /v1/tiles/regions. Async requests are
// queued for the tile worker and answered with 202; otherwise the region is
// downloaded in the request and the summary returned. Individual tile
// failures never fail the request.
func (h *TileHandler) HandleDownloadRegion(w http.ResponseWriter, r *http.Request) {
	var req RegionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	ranges, total, err := h.cache.PlanRegion(req.Bounds, req.Zooms)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	plan := RegionPlan{TotalTiles: total, Ranges: ranges}

	if req.Async {
		if h.jobs == nil {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidRequest,
				"asynchronous region downloads are not configured", nil))
			return
		}
		msg, err := h.jobs.Enqueue(r.Context(), types.RegionJobMessage{
			Bounds:   req.Bounds,
			Zooms:    req.Zooms,
			MaxTiles: req.MaxTiles,
		})
		if err != nil {
			core.Error(w, r, err)
			return
		}
		core.Data(w, r, http.StatusAccepted, regionJobResponse{JobID: msg.JobID, Plan: plan}, nil)
		return
	}

	summary, err := h.cache.DownloadRegion(r.Context(), req.Bounds, req.Zooms, tilecache.RegionOptions{
		Concurrency: req.Concurrency,
		MaxTiles:    req.MaxTiles,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, summary, nil)
}

// HandleStats handles GET /v1/tiles/stats.
func (h *TileHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.Stats()
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, stats, nil)
}
