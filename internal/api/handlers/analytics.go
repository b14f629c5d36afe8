package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fleetgeo/internal/analytics"
	"fleetgeo/internal/core"
	"fleetgeo/internal/types"
)

// AnalyticsService is the contract of *analytics.Service used by the handler.
type AnalyticsService interface {
	Heatmap(ctx context.Context, bounds *types.Bounds, from, to time.Time, precision int) ([]types.HeatmapPoint, bool, error)
	PredictTraffic(ctx context.Context, origin, destination types.GeoPoint, target time.Time) (types.TrafficPrediction, error)
	AreaAnalytics(ctx context.Context, bounds types.Bounds, from, to time.Time) (analytics.AreaStats, error)
	RoutePlayback(ctx context.Context, tripID string) (*analytics.Playback, error)
	CorrectETA(ctx context.Context, origin, destination types.GeoPoint, estimatedMinutes float64) (analytics.ETACorrection, error)
}

// AnalyticsHandler exposes the historical analytics reports.
type AnalyticsHandler struct {
	service          AnalyticsService
	validator        *core.Validator
	defaultPrecision int
	clock            types.Clock
	logger           *slog.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler. defaultPrecision is used
// when a heatmap request carries no precision parameter.
func NewAnalyticsHandler(svc AnalyticsService, val *core.Validator, defaultPrecision int, logger *slog.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsHandler{
		service:          svc,
		validator:        val,
		defaultPrecision: defaultPrecision,
		clock:            types.RealClock{},
		logger:           logger,
	}
}

// RegisterRoutes mounts the analytics endpoints.
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/heatmap", h.HandleHeatmap)
	r.Post("/traffic", h.HandlePredictTraffic)
	r.Post("/eta", h.HandleCorrectETA)
	r.Get("/area", h.HandleArea)
}

// RegisterTripRoutes mounts the per-trip endpoints.
func (h *AnalyticsHandler) RegisterTripRoutes(r chi.Router) {
	r.Get("/{id}/playback", h.HandlePlayback)
}

// HandleHeatmap handles GET /v1/analytics/heatmap. Bounds are optional;
// format=geojson returns a FeatureCollection instead of the point list.
func (h *AnalyticsHandler) HandleHeatmap(w http.ResponseWriter, r *http.Request) {
	bounds, err := queryBounds(r, true)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	from, to, err := queryTimeRange(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	precision, err := queryInt(r, "precision", h.defaultPrecision)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	points, truncated, err := h.service.Heatmap(r.Context(), bounds, from, to, precision)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "geojson" {
		body, err := analytics.HeatmapGeoJSON(points).MarshalJSON()
		if err != nil {
			core.Error(w, r, err)
			return
		}
		core.Raw(w, http.StatusOK, "application/geo+json", body)
		return
	}
	core.Data(w, r, http.StatusOK, points, &core.ResponseMeta{Count: len(points), Truncated: truncated})
}

// TrafficRequest is the body of POST /v1/analytics/traffic. A missing
// departure time means now.
type TrafficRequest struct {
	Origin        types.GeoPoint `json:"origin" validate:"required"`
	Destination   types.GeoPoint `json:"destination" validate:"required"`
	DepartureTime *time.Time     `json:"departure_time"`
}

// HandlePredictTraffic handles POST /v1/analytics/traffic.
func (h *AnalyticsHandler) HandlePredictTraffic(w http.ResponseWriter, r *http.Request) {
	var req TrafficRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	target := h.clock.Now()
	if req.DepartureTime != nil {
		target = *req.DepartureTime
	}

	pred, err := h.service.PredictTraffic(r.Context(), req.Origin, req.Destination, target)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, pred, nil)
}

// ETARequest is the body of POST /v1/analytics/eta.
type ETARequest struct {
	Origin           types.GeoPoint `json:"origin" validate:"required"`
	Destination      types.GeoPoint `json:"destination" validate:"required"`
	EstimatedMinutes float64        `json:"estimated_minutes" validate:"gte=0"`
}

// HandleCorrectETA handles POST /v1/analytics/eta.
func (h *AnalyticsHandler) HandleCorrectETA(w http.ResponseWriter, r *http.Request) {
	var req ETARequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	corr, err := h.service.CorrectETA(r.Context(), req.Origin, req.Destination, req.EstimatedMinutes)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, corr, nil)
}

// HandleArea handles GET /v1/analytics/area. Bounds are required.
func (h *AnalyticsHandler) HandleArea(w http.ResponseWriter, r *http.Request) {
	bounds, err := queryBounds(r, false)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	from, to, err := queryTimeRange(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	stats, err := h.service.AreaAnalytics(r.Context(), *bounds, from, to)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, stats, nil)
}

// HandlePlayback handles GET /v1/trips/{id}/playback. format=kml returns a
// KML document for desktop GIS tools.
func (h *AnalyticsHandler) HandlePlayback(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")

	pb, err := h.service.RoutePlayback(r.Context(), tripID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "kml" {
		body, err := analytics.PlaybackKML(pb)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="trip-`+tripID+`.kml"`)
		core.Raw(w, http.StatusOK, "application/vnd.google-earth.kml+xml", body)
		return
	}
	core.Data(w, r, http.StatusOK, pb, &core.ResponseMeta{Count: len(pb.Points)})
}
