// Package geofence evaluates containment, schedules and trigger statistics
// for circular and polygonal geofences.
package geofence

import (
	"slices"
	"time"

	"fleetgeo/internal/types"
)

// Schedule restricts when a geofence is active. Times are zero-padded
// 24-hour "HH:MM" strings compared lexically, both ends inclusive.
type Schedule struct {
	DaysOfWeek []time.Weekday `json:"days_of_week"`
	StartTime  string         `json:"start_time"`
	EndTime    string         `json:"end_time"`
}

// Validate checks the days are in range and both times are HH:MM.
func (s Schedule) Validate() error {
	for _, d := range s.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidSchedule,
				"day of week must be between 0 and 6", nil, map[string]any{"day": int(d)})
		}
	}
	for _, hhmm := range []string{s.StartTime, s.EndTime} {
		if _, err := time.Parse("15:04", hhmm); err != nil || len(hhmm) != 5 {
			return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidSchedule,
				"schedule times must be HH:MM", err, map[string]any{"time": hhmm})
		}
	}
	return nil
}

// Stats holds the trigger counters of a geofence. Counters only grow.
type Stats struct {
	EnterCount    int64      `json:"enter_count"`
	ExitCount     int64      `json:"exit_count"`
	DwellCount    int64      `json:"dwell_count"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
}

// Geofence is a named region with trigger configuration.
type Geofence struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Shape         Shape                 `json:"-"`
	TriggerEvents []types.GeofenceEvent `json:"trigger_events"`
	Schedule      *Schedule             `json:"schedule,omitempty"`
	IsActive      bool                  `json:"is_active"`
	Stats         Stats                 `json:"stats"`
}

// Validate checks the shape is present and the trigger and schedule
// configuration are well formed.
func (f Geofence) Validate() error {
	if f.Shape == nil {
		return types.NewAppError(types.ErrCodeValidationInvalidGeometry, "geofence has no shape", nil)
	}
	for _, e := range f.TriggerEvents {
		if !e.Valid() {
			return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidEvent,
				"unknown trigger event", nil, map[string]any{"event": string(e)})
		}
	}
	if f.Schedule != nil {
		return f.Schedule.Validate()
	}
	return nil
}

// Triggers reports whether the fence is configured to fire on e.
func (f Geofence) Triggers(e types.GeofenceEvent) bool {
	return slices.Contains(f.TriggerEvents, e)
}

// IsInside reports whether point lies within the fence geometry.
func IsInside(point types.GeoPoint, f Geofence) bool {
	if f.Shape == nil {
		return false
	}
	return f.Shape.Contains(point)
}

// IsActiveNow reports whether the fence is active at now. Without a schedule
// this is just IsActive. The weekday and clock time are taken from now in
// its own location.
func IsActiveNow(f Geofence, now time.Time) bool {
	if !f.IsActive {
		return false
	}
	if f.Schedule == nil {
		return true
	}
	if !slices.Contains(f.Schedule.DaysOfWeek, now.Weekday()) {
		return false
	}
	hhmm := now.Format("15:04")
	return f.Schedule.StartTime <= hhmm && hhmm <= f.Schedule.EndTime
}

// RecordEvent returns f's stats with the counter for event incremented and
// LastTriggered set to now. The fence itself is not modified.
func RecordEvent(f Geofence, event types.GeofenceEvent, now time.Time) (Stats, error) {
	s := f.Stats
	switch event {
	case types.GeofenceEnter:
		s.EnterCount++
	case types.GeofenceExit:
		s.ExitCount++
	case types.GeofenceDwell:
		s.DwellCount++
	default:
		return f.Stats, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidEvent,
			"unknown geofence event", nil, map[string]any{"event": string(event)})
	}
	ts := now
	s.LastTriggered = &ts
	return s, nil
}

// AreaM2 returns the approximate area of the fence.
func AreaM2(f Geofence) float64 {
	if f.Shape == nil {
		return 0
	}
	return f.Shape.AreaM2()
}
