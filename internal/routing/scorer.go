// Package routing ranks candidate routes from the directions provider by
// estimated fuel efficiency.
package routing

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strings"

	"fleetgeo/internal/geomath"
	"fleetgeo/internal/types"
)

// Fuel model constants.
const (
	// OptimalSpeedKmh is the average speed with the lowest consumption.
	OptimalSpeedKmh = 85.0

	speedPenaltyFactor = 0.1
	highwayBonusFactor = 10.0

	// Consumption in litres per 100 km.
	HighwayLitersPer100Km = 7.0
	CityLitersPer100Km    = 10.0
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// DirectionsProvider returns candidate routes between two points.
type DirectionsProvider interface {
	Routes(ctx context.Context, req types.DirectionsRequest) ([]types.RouteSummary, error)
}

// ScoredRoute is a provider route with its fuel score and 1-based rank.
type ScoredRoute struct {
	Rank  int                `json:"rank"`
	Route types.RouteSummary `json:"route"`
	Score types.FuelScore    `json:"score"`
}

// IsHighwayStep reports whether a step instruction describes highway or
// freeway driving.
func IsHighwayStep(instruction string) bool {
	text := strings.ToLower(htmlTag.ReplaceAllString(instruction, " "))
	return strings.Contains(text, "highway") || strings.Contains(text, "freeway")
}

// ClassifySteps sums step distances in km into highway and other driving.
func ClassifySteps(steps []types.RouteStep) (highwayKm, cityKm float64) {
	for _, s := range steps {
		km := s.DistanceMeters / 1000
		if IsHighwayStep(s.Instruction) {
			highwayKm += km
		} else {
			cityKm += km
		}
	}
	return highwayKm, cityKm
}

// routeDistanceKm prefers the provider total and falls back to the length
// of the overview polyline.
func routeDistanceKm(r types.RouteSummary) float64 {
	if r.DistanceMeters > 0 {
		return r.DistanceMeters / 1000
	}
	if r.Polyline == "" {
		return 0
	}
	path, err := geomath.DecodePolyline(r.Polyline)
	if err != nil {
		return 0
	}
	return geomath.PathLengthKm(path)
}

// ScoreRoute computes the fuel score of r. City distance is whatever part
// of the total is not classified as highway, so the two always add up to
// the total.
func ScoreRoute(r types.RouteSummary) types.FuelScore {
	totalKm := routeDistanceKm(r)
	if totalKm <= 0 {
		return types.FuelScore{}
	}

	highwayKm, _ := ClassifySteps(r.Steps)
	highwayKm = math.Min(highwayKm, totalKm)
	cityKm := totalKm - highwayKm

	var speedPenalty float64
	if hours := r.DurationSeconds / 3600; hours > 0 {
		avgSpeed := totalKm / hours
		speedPenalty = math.Abs(avgSpeed-OptimalSpeedKmh) * speedPenaltyFactor
	}
	highwayBonus := highwayKm / totalKm * highwayBonusFactor

	return types.FuelScore{
		TotalDistanceKm: totalKm,
		HighwayKm:       highwayKm,
		CityKm:          cityKm,
		FuelScore:       totalKm + speedPenalty - highwayBonus,
		EstimatedLiters: highwayKm/100*HighwayLitersPer100Km + cityKm/100*CityLitersPer100Km,
	}
}

// RankRoutes scores every route and orders them best first. Equal scores
// keep provider order.
func RankRoutes(routes []types.RouteSummary) []ScoredRoute {
	out := make([]ScoredRoute, len(routes))
	for i, r := range routes {
		out[i] = ScoredRoute{Route: r, Score: ScoreRoute(r)}
	}
	slices.SortStableFunc(out, func(a, b ScoredRoute) int {
		switch {
		case a.Score.FuelScore < b.Score.FuelScore:
			return -1
		case a.Score.FuelScore > b.Score.FuelScore:
			return 1
		}
		return 0
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Scorer fetches alternatives from a directions provider and ranks them.
type Scorer struct {
	provider DirectionsProvider
	logger   *slog.Logger
}

// NewScorer creates a Scorer.
func NewScorer(provider DirectionsProvider, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{provider: provider, logger: logger}
}

// ScoreAlternatives requests alternative routes for req and ranks them.
// A provider failure fails the whole request with
// upstream_directions_unavailable. No routes is an empty result.
func (s *Scorer) ScoreAlternatives(ctx context.Context, req types.DirectionsRequest) ([]ScoredRoute, error) {
	if err := req.Origin.Validate(); err != nil {
		return nil, err
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, err
	}
	for _, wp := range req.Waypoints {
		if err := wp.Validate(); err != nil {
			return nil, err
		}
	}
	req.Alternatives = true

	routes, err := s.provider.Routes(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "directions lookup failed",
			"origin", req.Origin.String(),
			"destination", req.Destination.String(),
			"error", err,
		)
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeUpstreamDirections {
			return nil, appErr
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamDirections, "directions provider failed", err)
	}

	ranked := RankRoutes(routes)
	if len(ranked) > 0 {
		s.logger.InfoContext(ctx, "routes scored",
			"alternatives", len(ranked),
			"best_summary", ranked[0].Route.Summary,
			"best_score", ranked[0].Score.FuelScore,
		)
	}
	return ranked, nil
}
