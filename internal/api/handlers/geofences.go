package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fleetgeo/internal/core"
	"fleetgeo/internal/geofence"
	"fleetgeo/internal/types"
)

// GeofenceChecker evaluates fences against a live position.
type GeofenceChecker interface {
	Check(ctx context.Context, fences []geofence.Geofence, point types.GeoPoint, prev map[string]bool) ([]geofence.Hit, error)
}

// GeofenceHandler exposes stateless geofence evaluation. Fences are
// supplied in the request; persistence lives with the caller.
type GeofenceHandler struct {
	checker   GeofenceChecker
	validator *core.Validator
	logger    *slog.Logger
}

// NewGeofenceHandler creates a GeofenceHandler.
func NewGeofenceHandler(checker GeofenceChecker, val *core.Validator, logger *slog.Logger) *GeofenceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeofenceHandler{checker: checker, validator: val, logger: logger}
}

// RegisterRoutes mounts the geofence endpoints.
func (h *GeofenceHandler) RegisterRoutes(r chi.Router) {
	r.Post("/check", h.HandleCheck)
	r.Post("/geojson", h.HandleGeoJSON)
}

// FenceInput is the wire form of a geofence. Kind selects which geometry
// fields are read.
type FenceInput struct {
	ID            string                `json:"id" validate:"required"`
	Name          string                `json:"name"`
	Kind          string                `json:"kind" validate:"required,oneof=circle polygon"`
	Center        *types.GeoPoint       `json:"center"`
	RadiusMeters  float64               `json:"radius_meters"`
	Vertices      []types.GeoPoint      `json:"vertices"`
	TriggerEvents []types.GeofenceEvent `json:"trigger_events" validate:"dive,geofence_event"`
	Schedule      *geofence.Schedule    `json:"schedule"`
	IsActive      *bool                 `json:"is_active"`
	Stats         geofence.Stats        `json:"stats"`
}

// toGeofence builds and validates the domain fence. Fences are active
// unless is_active is explicitly false.
func (in FenceInput) toGeofence() (geofence.Geofence, error) {
	var (
		shape geofence.Shape
		err   error
	)
	switch in.Kind {
	case "circle":
		if in.Center == nil {
			return geofence.Geofence{}, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
				"circle fence requires a center", nil, map[string]any{"fence_id": in.ID})
		}
		shape, err = geofence.NewCircle(*in.Center, in.RadiusMeters)
	default:
		shape, err = geofence.NewPolygon(in.Vertices)
	}
	if err != nil {
		return geofence.Geofence{}, err
	}

	f := geofence.Geofence{
		ID:            in.ID,
		Name:          in.Name,
		Shape:         shape,
		TriggerEvents: in.TriggerEvents,
		Schedule:      in.Schedule,
		IsActive:      in.IsActive == nil || *in.IsActive,
		Stats:         in.Stats,
	}
	if err := f.Validate(); err != nil {
		return geofence.Geofence{}, err
	}
	return f, nil
}

func (h *GeofenceHandler) decodeFences(inputs []FenceInput) ([]geofence.Geofence, error) {
	fences := make([]geofence.Geofence, 0, len(inputs))
	for _, in := range inputs {
		f, err := in.toGeofence()
		if err != nil {
			return nil, err
		}
		fences = append(fences, f)
	}
	return fences, nil
}

// GeofenceCheckRequest is the body of POST /v1/geofences/check. Previous
// maps fence ID to whether the vehicle was inside at the last fix.
type GeofenceCheckRequest struct {
	Point    types.GeoPoint  `json:"point"`
	Fences   []FenceInput    `json:"fences" validate:"required,min=1,max=500,dive"`
	Previous map[string]bool `json:"previous"`
}

// HandleCheck handles POST /v1/geofences/check.
func (h *GeofenceHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	var req GeofenceCheckRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	fences, err := h.decodeFences(req.Fences)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	hits, err := h.checker.Check(r.Context(), fences, req.Point, req.Previous)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, hits, &core.ResponseMeta{Count: len(hits)})
}

// geoJSONRequest is the body of POST /v1/geofences/geojson.
type geoJSONRequest struct {
	Fences []FenceInput `json:"fences" validate:"required,min=1,max=500,dive"`
}

// HandleGeoJSON handles POST /v1/geofences/geojson, converting fences to a
// FeatureCollection for map display.
func (h *GeofenceHandler) HandleGeoJSON(w http.ResponseWriter, r *http.Request) {
	var req geoJSONRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}
	fences, err := h.decodeFences(req.Fences)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	body, err := geofence.ToGeoJSON(fences).MarshalJSON()
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Raw(w, http.StatusOK, "application/geo+json", body)
}
