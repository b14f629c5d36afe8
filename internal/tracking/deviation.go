// Package tracking produces real-time alerts from live GPS fixes: route
// deviation and speeding. Absence of a violation is a normal result, never
// an error.
package tracking

import (
	"math"

	"fleetgeo/internal/geomath"
	"fleetgeo/internal/types"
)

// DefaultDeviationThresholdMeters applies when the caller passes a
// non-positive threshold.
const DefaultDeviationThresholdMeters = 500.0

// DeviationResult describes the vehicle's position relative to its route.
type DeviationResult struct {
	IsDeviated      bool           `json:"is_deviated"`
	DeviationMeters float64        `json:"deviation_meters"`
	ThresholdMeters float64        `json:"threshold_meters"`
	NearestPoint    types.GeoPoint `json:"nearest_point"`
	SegmentIndex    int            `json:"segment_index"`
	Severity        types.Severity `json:"severity"`
}

// CheckDeviation finds the point on route nearest to current and flags a
// deviation when it is farther than thresholdMeters. Severity is medium up
// to twice the threshold and high beyond.
func CheckDeviation(current types.GeoPoint, route types.PlannedRoute, thresholdMeters float64) (DeviationResult, error) {
	if err := current.Validate(); err != nil {
		return DeviationResult{}, err
	}
	if len(route) < 2 {
		return DeviationResult{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidGeometry,
			"planned route requires at least 2 waypoints", nil, map[string]any{"waypoints": len(route)})
	}
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultDeviationThresholdMeters
	}

	res := DeviationResult{
		DeviationMeters: math.Inf(1),
		ThresholdMeters: thresholdMeters,
	}
	for i := 0; i < len(route)-1; i++ {
		nearest := geomath.ProjectOntoSegment(current, route[i], route[i+1])
		d := geomath.DistanceMeters(current, nearest)
		if d < res.DeviationMeters {
			res.DeviationMeters = d
			res.NearestPoint = nearest
			res.SegmentIndex = i
		}
	}

	res.IsDeviated = res.DeviationMeters > thresholdMeters
	switch {
	case !res.IsDeviated:
		res.Severity = types.SeverityNone
	case res.DeviationMeters <= 2*thresholdMeters:
		res.Severity = types.SeverityMedium
	default:
		res.Severity = types.SeverityHigh
	}
	return res, nil
}
