package analytics

import (
	"io"
	"log/slog"
	"time"

	"fleetgeo/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

// monday is 2026-03-02, a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

var (
	testOrigin = types.GeoPoint{Lat: 40.7128, Lng: -74.0060}
	testDest   = types.GeoPoint{Lat: 40.7580, Lng: -73.9855}
)

// completedTrip builds a completed trip between the test endpoints on date
// at hh:mm, estimated at estimate minutes and actually taking actual
// minutes (negative leaves the actual times unset).
func completedTrip(id string, date time.Time, hhmm string, level types.TrafficLevel, estimate, actual float64) types.Trip {
	t := types.Trip{
		ID:                   id,
		PickupLocation:       testOrigin,
		DropoffLocation:      testDest,
		ScheduledDate:        date,
		ScheduledTime:        hhmm,
		Status:               types.TripCompleted,
		EstimatedDurationMin: estimate,
		TrafficLevel:         level,
	}
	if actual >= 0 {
		start := date.Add(8 * time.Hour)
		end := start.Add(time.Duration(actual * float64(time.Minute)))
		t.ActualPickupTime = &start
		t.ActualDropoffTime = &end
	}
	return t
}
