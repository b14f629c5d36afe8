package analytics

import (
	"math"

	"fleetgeo/internal/types"
)

const (
	// ETAMatchDegrees is the half-width of the pickup and dropoff boxes.
	ETAMatchDegrees = 0.05
	// MinETASamples is the number of matching trips needed to adjust.
	MinETASamples = 5
	// HighConfidenceETASamples promotes the correction to high confidence.
	HighConfidenceETASamples = 20
)

// ETACorrection is an estimate adjusted by historical bias.
type ETACorrection struct {
	EstimatedMinutes float64          `json:"estimated_minutes"`
	AdjustedMinutes  float64          `json:"adjusted_minutes"`
	BiasMinutes      float64          `json:"bias_minutes"`
	SampleSize       int              `json:"sample_size"`
	Confidence       types.Confidence `json:"confidence"`
	Truncated        bool             `json:"truncated,omitempty"`
}

// CorrectETA adds the mean historical overrun of trips with nearby
// endpoints and recorded pickup and dropoff times to estimatedMinutes.
// With fewer than MinETASamples matches the estimate is returned unchanged
// at low confidence. The adjusted value never goes below zero.
func CorrectETA(trips []types.Trip, origin, destination types.GeoPoint, estimatedMinutes float64) ETACorrection {
	originBox := types.BoundsAround(origin, ETAMatchDegrees)
	destBox := types.BoundsAround(destination, ETAMatchDegrees)

	var n int
	var bias float64
	for _, t := range trips {
		if !originBox.Contains(t.PickupLocation) || !destBox.Contains(t.DropoffLocation) {
			continue
		}
		actual, ok := t.ActualDurationMin()
		if !ok {
			continue
		}
		bias += actual - t.EstimatedDurationMin
		n++
	}

	out := ETACorrection{
		EstimatedMinutes: estimatedMinutes,
		AdjustedMinutes:  estimatedMinutes,
		SampleSize:       n,
		Confidence:       types.ConfidenceLow,
	}
	if n < MinETASamples {
		return out
	}

	out.BiasMinutes = bias / float64(n)
	out.AdjustedMinutes = math.Max(estimatedMinutes+out.BiasMinutes, 0)
	out.Confidence = types.ConfidenceMedium
	if n >= HighConfidenceETASamples {
		out.Confidence = types.ConfidenceHigh
	}
	return out
}
