package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetgeo/internal/types"
)

var manhattan = types.Bounds{North: 40.80, South: 40.70, East: -73.93, West: -74.02}

func TestAreaAnalytics(t *testing.T) {
	a := completedTrip("a", monday, "08:15", types.TrafficLight, 20, -1)
	a.DistanceKm = 10
	a.Rating = ptr(4.0)
	a.AssignedDriver = "drv-1"

	b := completedTrip("b", monday.AddDate(0, 0, 1), "08:40", types.TrafficLight, 20, -1)
	b.DistanceKm = 20
	b.Rating = ptr(5.0)
	b.AssignedDriver = "drv-2"
	b.DropoffLocation = types.GeoPoint{Lat: 41.5, Lng: -73}

	c := completedTrip("c", monday.AddDate(0, 0, 7), "17:05", types.TrafficLight, 20, -1)
	c.DistanceKm = 30
	c.AssignedDriver = "drv-1"

	outside := completedTrip("out", monday, "08:00", types.TrafficLight, 20, -1)
	outside.PickupLocation = types.GeoPoint{Lat: 10, Lng: 10}
	outside.DropoffLocation = types.GeoPoint{Lat: 10, Lng: 10}

	tooEarly := completedTrip("early", monday.AddDate(0, -2, 0), "08:00", types.TrafficLight, 20, -1)
	scheduled := completedTrip("sched", monday, "08:00", types.TrafficLight, 20, -1)
	scheduled.Status = types.TripScheduled

	stats := AreaAnalytics([]types.Trip{a, b, c, outside, tooEarly, scheduled}, manhattan,
		monday.AddDate(0, 0, -1), monday.AddDate(0, 0, 14))

	assert.Equal(t, 3, stats.Trips)
	assert.Equal(t, 3, stats.Pickups)
	assert.Equal(t, 2, stats.Dropoffs)
	assert.InDelta(t, 20.0, stats.AvgDistanceKm, 1e-9)
	require.NotNil(t, stats.AvgRating)
	assert.InDelta(t, 4.5, *stats.AvgRating, 1e-9)
	require.NotNil(t, stats.BusiestHour)
	assert.Equal(t, 8, *stats.BusiestHour)
	require.NotNil(t, stats.BusiestWeekday)
	assert.Equal(t, time.Monday, *stats.BusiestWeekday)
	assert.Equal(t, 2, stats.UniqueDrivers)
}

func TestAreaAnalytics_Empty(t *testing.T) {
	stats := AreaAnalytics(nil, manhattan, time.Time{}, time.Time{})

	assert.Zero(t, stats.Trips)
	assert.Zero(t, stats.Pickups)
	assert.Nil(t, stats.AvgRating)
	assert.Nil(t, stats.BusiestHour)
	assert.Nil(t, stats.BusiestWeekday)
}
