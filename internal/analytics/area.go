package analytics

import (
	"time"

	"fleetgeo/internal/types"
)

// AreaStats summarises completed trips touching a bounding box.
type AreaStats struct {
	Trips          int           `json:"trips"`
	Pickups        int           `json:"pickups"`
	Dropoffs       int           `json:"dropoffs"`
	AvgDistanceKm  float64       `json:"avg_distance_km"`
	AvgRating      *float64      `json:"avg_rating"`
	BusiestHour    *int          `json:"busiest_hour"`
	BusiestWeekday *time.Weekday `json:"busiest_weekday"`
	UniqueDrivers  int           `json:"unique_drivers"`
	Truncated      bool          `json:"truncated,omitempty"`
}

// AreaAnalytics makes a single pass over trips, considering completed
// trips scheduled in [from, to] whose pickup or dropoff lies inside
// bounds. A zero from or to leaves that side open. Busiest hour and
// weekday ties go to the earliest value; both are nil when nothing matched.
func AreaAnalytics(trips []types.Trip, bounds types.Bounds, from, to time.Time) AreaStats {
	var (
		stats       AreaStats
		distanceSum float64
		ratingSum   float64
		ratingCount int
		hourCounts  [24]int
		dayCounts   [7]int
	)
	drivers := make(map[string]struct{})

	for _, t := range trips {
		if t.Status != types.TripCompleted {
			continue
		}
		if !from.IsZero() && t.ScheduledDate.Before(from) {
			continue
		}
		if !to.IsZero() && t.ScheduledDate.After(to) {
			continue
		}
		pickup := bounds.Contains(t.PickupLocation)
		dropoff := bounds.Contains(t.DropoffLocation)
		if !pickup && !dropoff {
			continue
		}

		stats.Trips++
		if pickup {
			stats.Pickups++
		}
		if dropoff {
			stats.Dropoffs++
		}
		distanceSum += t.DistanceKm
		if t.Rating != nil {
			ratingSum += *t.Rating
			ratingCount++
		}
		if h := t.ScheduledHour(); h >= 0 {
			hourCounts[h]++
		}
		dayCounts[t.ScheduledDate.Weekday()]++
		if t.AssignedDriver != "" {
			drivers[t.AssignedDriver] = struct{}{}
		}
	}

	if stats.Trips == 0 {
		return stats
	}

	stats.AvgDistanceKm = distanceSum / float64(stats.Trips)
	stats.UniqueDrivers = len(drivers)
	if ratingCount > 0 {
		avg := ratingSum / float64(ratingCount)
		stats.AvgRating = &avg
	}
	if h, n := argmax(hourCounts[:]); n > 0 {
		stats.BusiestHour = &h
	}
	if d, n := argmax(dayCounts[:]); n > 0 {
		wd := time.Weekday(d)
		stats.BusiestWeekday = &wd
	}
	return stats
}

// argmax returns the first index holding the largest count.
func argmax(counts []int) (idx, count int) {
	for i, c := range counts {
		if c > count {
			idx, count = i, c
		}
	}
	return idx, count
}
