package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fleetgeo/internal/core"
	"fleetgeo/internal/routing"
	"fleetgeo/internal/types"
)

// RouteScorer ranks alternative routes by fuel efficiency.
type RouteScorer interface {
	ScoreAlternatives(ctx context.Context, req types.DirectionsRequest) ([]routing.ScoredRoute, error)
}

// RouteHandler exposes route scoring.
type RouteHandler struct {
	scorer    RouteScorer
	validator *core.Validator
	logger    *slog.Logger
}

// NewRouteHandler creates a RouteHandler.
func NewRouteHandler(scorer RouteScorer, val *core.Validator, logger *slog.Logger) *RouteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteHandler{scorer: scorer, validator: val, logger: logger}
}

// RegisterRoutes mounts the route endpoints.
func (h *RouteHandler) RegisterRoutes(r chi.Router) {
	r.Post("/score", h.HandleScore)
}

// HandleScore handles POST /v1/routes/score. Routes are returned best first.
func (h *RouteHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	var req types.DirectionsRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	ranked, err := h.scorer.ScoreAlternatives(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, ranked, &core.ResponseMeta{Count: len(ranked)})
}
