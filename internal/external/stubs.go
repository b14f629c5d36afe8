package external

import (
	"context"
	"log/slog"

	"fleetgeo/internal/geomath"
	"fleetgeo/internal/types"
)

// stubCitySpeedKmh is the speed the stub assumes when inventing a duration.
const stubCitySpeedKmh = 40.0

// StubDirections answers directions requests without calling a provider:
// it returns a single straight-line route through the waypoints. Used for
// local development when no API key is configured.
type StubDirections struct {
	logger *slog.Logger
}

// NewStubDirections creates a StubDirections.
func NewStubDirections(logger *slog.Logger) *StubDirections {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubDirections{logger: logger}
}

func (s *StubDirections) Routes(ctx context.Context, req types.DirectionsRequest) ([]types.RouteSummary, error) {
	s.logger.InfoContext(ctx, "stub: Routes called",
		"origin", req.Origin.String(),
		"destination", req.Destination.String(),
		"waypoints", len(req.Waypoints),
	)

	path := make([]types.GeoPoint, 0, len(req.Waypoints)+2)
	path = append(path, req.Origin)
	path = append(path, req.Waypoints...)
	path = append(path, req.Destination)

	route := types.RouteSummary{Summary: "stub straight line", Polyline: geomath.EncodePolyline(path)}
	for i := 1; i < len(path); i++ {
		km := geomath.DistanceKm(path[i-1], path[i])
		step := types.RouteStep{
			Instruction:     "Continue straight",
			DistanceMeters:  km * 1000,
			DurationSeconds: km / stubCitySpeedKmh * 3600,
		}
		route.Steps = append(route.Steps, step)
		route.DistanceMeters += step.DistanceMeters
		route.DurationSeconds += step.DurationSeconds
	}
	return []types.RouteSummary{route}, nil
}
