package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fleetgeo/internal/core"
	"fleetgeo/internal/tracking"
	"fleetgeo/internal/types"
)

// SpeedEvaluator turns consecutive fixes into speed alerts.
type SpeedEvaluator interface {
	Evaluate(ctx context.Context, vehicleID string, p1, p2 types.TrackPoint, limitKmh float64) (*tracking.SpeedAlert, tracking.SpeedCheck, error)
}

// TrackingHandler exposes the real-time monitoring checks.
type TrackingHandler struct {
	speed              SpeedEvaluator
	deviationThreshold float64
	validator          *core.Validator
	logger             *slog.Logger
}

// NewTrackingHandler creates a TrackingHandler. deviationThreshold applies
// when a deviation request carries no threshold.
func NewTrackingHandler(speed SpeedEvaluator, deviationThreshold float64, val *core.Validator, logger *slog.Logger) *TrackingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackingHandler{speed: speed, deviationThreshold: deviationThreshold, validator: val, logger: logger}
}

// RegisterRoutes mounts the tracking endpoints.
func (h *TrackingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/deviation", h.HandleDeviation)
	r.Post("/speed", h.HandleSpeed)
}

// DeviationRequest is the body of POST /v1/tracking/deviation.
type DeviationRequest struct {
	Current         types.GeoPoint   `json:"current"`
	Route           []types.GeoPoint `json:"route" validate:"required,dive"`
	ThresholdMeters float64          `json:"threshold_meters" validate:"gte=0"`
}

// HandleDeviation handles POST /v1/tracking/deviation.
func (h *TrackingHandler) HandleDeviation(w http.ResponseWriter, r *http.Request) {
	var req DeviationRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	threshold := req.ThresholdMeters
	if threshold == 0 {
		threshold = h.deviationThreshold
	}
	res, err := tracking.CheckDeviation(req.Current, types.PlannedRoute(req.Route), threshold)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if res.IsDeviated {
		h.logger.WarnContext(r.Context(), "route deviation detected",
			"deviation_meters", res.DeviationMeters,
			"segment_index", res.SegmentIndex,
			"severity", string(res.Severity),
		)
	}
	core.Data(w, r, http.StatusOK, res, nil)
}

// SpeedRequest is the body of POST /v1/tracking/speed. A zero limit uses
// the configured default.
type SpeedRequest struct {
	VehicleID string           `json:"vehicle_id" validate:"required"`
	Previous  types.TrackPoint `json:"previous"`
	Current   types.TrackPoint `json:"current"`
	LimitKmh  float64          `json:"limit_kmh" validate:"gte=0"`
}

// speedResponse always carries the check; Alert is set only on a violation.
type speedResponse struct {
	Check tracking.SpeedCheck  `json:"check"`
	Alert *tracking.SpeedAlert `json:"alert,omitempty"`
}

// HandleSpeed handles POST /v1/tracking/speed.
func (h *TrackingHandler) HandleSpeed(w http.ResponseWriter, r *http.Request) {
	var req SpeedRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	for _, p := range []types.TrackPoint{req.Previous, req.Current} {
		if err := p.Point().Validate(); err != nil {
			core.Error(w, r, err)
			return
		}
	}

	alert, check, err := h.speed.Evaluate(r.Context(), req.VehicleID, req.Previous, req.Current, req.LimitKmh)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, speedResponse{Check: check, Alert: alert}, nil)
}
