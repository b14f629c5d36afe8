package analytics

import (
	"math"
	"time"

	"fleetgeo/internal/types"
)

const (
	// TrafficMatchDegrees is the half-width of the pickup and dropoff boxes.
	TrafficMatchDegrees = 0.1
	// TrafficHourWindow is the allowed distance between scheduled hours.
	TrafficHourWindow = 1
	// FullConfidenceSamples is the sample size at which confidence reaches 100%.
	FullConfidenceSamples = 20
)

// PredictTraffic estimates the traffic level for a trip from origin to
// destination at target, based on completed trips with nearby endpoints,
// the same weekday and a scheduled hour within one hour of target's.
// With no matches the prediction is insufficient_data at zero confidence.
//
// The level is the most frequent recorded level among the matches, ties
// going to the lighter level. The delay is the mean overrun of actual over
// estimated duration for matches with recorded times, floored at zero.
func PredictTraffic(trips []types.Trip, origin, destination types.GeoPoint, target time.Time) types.TrafficPrediction {
	originBox := types.BoundsAround(origin, TrafficMatchDegrees)
	destBox := types.BoundsAround(destination, TrafficMatchDegrees)
	targetHour := target.Hour()
	targetDay := target.Weekday()

	counts := make(map[types.TrafficLevel]int, len(types.TrafficLevels))
	var matched, timed int
	var overrun float64

	for _, t := range trips {
		if t.Status != types.TripCompleted {
			continue
		}
		if !originBox.Contains(t.PickupLocation) || !destBox.Contains(t.DropoffLocation) {
			continue
		}
		if t.ScheduledDate.Weekday() != targetDay {
			continue
		}
		h := t.ScheduledHour()
		if h < 0 || absInt(h-targetHour) > TrafficHourWindow {
			continue
		}

		matched++
		if t.TrafficLevel != "" {
			counts[t.TrafficLevel]++
		}
		if actual, ok := t.ActualDurationMin(); ok {
			overrun += actual - t.EstimatedDurationMin
			timed++
		}
	}

	if matched == 0 {
		return types.TrafficPrediction{Prediction: types.PredictionInsufficientData}
	}

	pred := types.TrafficPrediction{
		SampleSize:        matched,
		ConfidencePercent: math.Min(float64(matched)/FullConfidenceSamples*100, 100),
	}

	best := 0
	for _, lvl := range types.TrafficLevels {
		if counts[lvl] > best {
			best = counts[lvl]
			pred.Level = lvl
		}
	}
	if pred.Level == "" {
		// Matching trips exist but none recorded a level.
		pred.Prediction = types.PredictionInsufficientData
		pred.ConfidencePercent = 0
	} else {
		pred.Prediction = string(pred.Level)
	}

	if timed > 0 {
		pred.DelayMinutes = math.Max(overrun/float64(timed), 0)
	}
	return pred
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
