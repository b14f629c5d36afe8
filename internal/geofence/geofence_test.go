package geofence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetgeo/internal/types"
)

func mustCircle(t *testing.T, lat, lng, r float64) Circle {
	t.Helper()
	c, err := NewCircle(types.GeoPoint{Lat: lat, Lng: lng}, r)
	require.NoError(t, err)
	return c
}

func unitSquare(t *testing.T) Polygon {
	t.Helper()
	p, err := NewPolygon([]types.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}, {Lat: 1, Lng: 0}})
	require.NoError(t, err)
	return p
}

func TestIsInside_Circle(t *testing.T) {
	fence := Geofence{Shape: mustCircle(t, 0, 0, 1000)}

	assert.True(t, IsInside(types.GeoPoint{Lat: 0.005, Lng: 0}, fence), "~555 m should be inside")
	assert.False(t, IsInside(types.GeoPoint{Lat: 0.02, Lng: 0}, fence), "~2224 m should be outside")
	assert.True(t, IsInside(types.GeoPoint{Lat: 0, Lng: 0}, fence))
}

func TestIsInside_Polygon(t *testing.T) {
	fence := Geofence{Shape: unitSquare(t)}

	assert.True(t, IsInside(types.GeoPoint{Lat: 0.5, Lng: 0.5}, fence))
	assert.False(t, IsInside(types.GeoPoint{Lat: 2, Lng: 2}, fence))
	assert.False(t, IsInside(types.GeoPoint{Lat: -0.5, Lng: 0.5}, fence))
	assert.False(t, IsInside(types.GeoPoint{Lat: 0.5, Lng: 1.5}, fence))
}

func TestIsInside_ConcavePolygon(t *testing.T) {
	// L-shape: the notch at (0.75, 0.75) is outside.
	l, err := NewPolygon([]types.GeoPoint{
		{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 0.5, Lng: 1},
		{Lat: 0.5, Lng: 0.5}, {Lat: 1, Lng: 0.5}, {Lat: 1, Lng: 0},
	})
	require.NoError(t, err)
	fence := Geofence{Shape: l}

	assert.True(t, IsInside(types.GeoPoint{Lat: 0.25, Lng: 0.75}, fence))
	assert.True(t, IsInside(types.GeoPoint{Lat: 0.75, Lng: 0.25}, fence))
	assert.False(t, IsInside(types.GeoPoint{Lat: 0.75, Lng: 0.75}, fence))
}

func TestIsInside_NoShape(t *testing.T) {
	assert.False(t, IsInside(types.GeoPoint{}, Geofence{}))
}

func TestNewCircle_Rejects(t *testing.T) {
	for _, r := range []float64{0, -5} {
		_, err := NewCircle(types.GeoPoint{}, r)
		assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidGeometry), "radius %v", r)
	}

	_, err := NewCircle(types.GeoPoint{Lat: 95, Lng: 0}, 100)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidGeometry))
}

func TestNewPolygon_Rejects(t *testing.T) {
	_, err := NewPolygon([]types.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}})
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidGeometry))

	// Closed triangle with only two distinct vertices.
	_, err = NewPolygon([]types.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}, {Lat: 0, Lng: 0}})
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidGeometry))

	_, err = NewPolygon([]types.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 200}, {Lat: 1, Lng: 0}})
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidGeometry))
}

func TestNewPolygon_DropsClosingVertex(t *testing.T) {
	p, err := NewPolygon([]types.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}, {Lat: 0, Lng: 0}})
	require.NoError(t, err)
	assert.Len(t, p.Vertices, 3)
}

func TestIsActiveNow(t *testing.T) {
	// 2024-03-04 is a Monday.
	monday0930 := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

	sched := &Schedule{DaysOfWeek: []time.Weekday{time.Monday, time.Tuesday}, StartTime: "08:00", EndTime: "17:00"}

	tests := []struct {
		name  string
		fence Geofence
		now   time.Time
		want  bool
	}{
		{"no schedule active", Geofence{IsActive: true}, monday0930, true},
		{"no schedule inactive", Geofence{IsActive: false}, monday0930, false},
		{"in window", Geofence{IsActive: true, Schedule: sched}, monday0930, true},
		{"window start inclusive", Geofence{IsActive: true, Schedule: sched}, time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), true},
		{"window end inclusive", Geofence{IsActive: true, Schedule: sched}, time.Date(2024, 3, 4, 17, 0, 59, 0, time.UTC), true},
		{"after window", Geofence{IsActive: true, Schedule: sched}, time.Date(2024, 3, 4, 17, 1, 0, 0, time.UTC), false},
		{"wrong weekday", Geofence{IsActive: true, Schedule: sched}, time.Date(2024, 3, 6, 9, 30, 0, 0, time.UTC), false},
		{"scheduled but inactive", Geofence{IsActive: false, Schedule: sched}, monday0930, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsActiveNow(tt.fence, tt.now))
		})
	}
}

func TestScheduleValidate(t *testing.T) {
	assert.NoError(t, Schedule{DaysOfWeek: []time.Weekday{0, 6}, StartTime: "00:00", EndTime: "23:59"}.Validate())

	err := Schedule{DaysOfWeek: []time.Weekday{7}, StartTime: "00:00", EndTime: "01:00"}.Validate()
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidSchedule))

	err = Schedule{StartTime: "8:00", EndTime: "17:00"}.Validate()
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidSchedule))
}

func TestRecordEvent(t *testing.T) {
	now := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	fence := Geofence{Stats: Stats{EnterCount: 2, ExitCount: 1}}

	stats, err := RecordEvent(fence, types.GeofenceEnter, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.EnterCount)
	assert.Equal(t, int64(1), stats.ExitCount)
	require.NotNil(t, stats.LastTriggered)
	assert.Equal(t, now, *stats.LastTriggered)
	assert.Equal(t, int64(2), fence.Stats.EnterCount, "input fence must not be mutated")

	stats, err = RecordEvent(Geofence{}, types.GeofenceDwell, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.DwellCount)

	_, err = RecordEvent(fence, types.GeofenceEvent("loiter"), now)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidEvent))
}

func TestGeofenceValidate(t *testing.T) {
	ok := Geofence{Shape: unitSquare(t), TriggerEvents: []types.GeofenceEvent{types.GeofenceEnter}}
	assert.NoError(t, ok.Validate())

	assert.True(t, types.HasCode(Geofence{}.Validate(), types.ErrCodeValidationInvalidGeometry))

	bad := ok
	bad.TriggerEvents = []types.GeofenceEvent{"teleport"}
	assert.True(t, types.HasCode(bad.Validate(), types.ErrCodeValidationInvalidEvent))
}

func TestAreaM2(t *testing.T) {
	assert.InDelta(t, 3141592.65, AreaM2(Geofence{Shape: mustCircle(t, 0, 0, 1000)}), 0.01)
	assert.InDelta(t, 111000.0*111000.0, AreaM2(Geofence{Shape: unitSquare(t)}), 1)
	assert.Equal(t, 0.0, AreaM2(Geofence{}))
}
