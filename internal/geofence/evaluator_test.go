package geofence

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetgeo/internal/types"
)

var mondayMorning = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func newTestEvaluator(buf *bytes.Buffer) *Evaluator {
	return NewEvaluator(types.FixedClock{T: mondayMorning}, slog.New(slog.NewJSONHandler(buf, nil)))
}

func depotFence(t *testing.T) Geofence {
	return Geofence{
		ID:            "depot",
		Name:          "Depot",
		Shape:         mustCircle(t, 0, 0, 1000),
		TriggerEvents: []types.GeofenceEvent{types.GeofenceEnter, types.GeofenceExit},
		IsActive:      true,
	}
}

func TestTransition(t *testing.T) {
	e := newTestEvaluator(&bytes.Buffer{})
	fence := depotFence(t)
	inPt := types.GeoPoint{Lat: 0.001, Lng: 0}
	outPt := types.GeoPoint{Lat: 0.05, Lng: 0}

	event, inside, ok := e.Transition(fence, false, inPt, mondayMorning)
	assert.True(t, ok)
	assert.True(t, inside)
	assert.Equal(t, types.GeofenceEnter, event)

	event, inside, ok = e.Transition(fence, true, outPt, mondayMorning)
	assert.True(t, ok)
	assert.False(t, inside)
	assert.Equal(t, types.GeofenceExit, event)

	_, inside, ok = e.Transition(fence, true, inPt, mondayMorning)
	assert.False(t, ok, "no change in containment")
	assert.True(t, inside)
}

func TestTransition_RespectsTriggersAndSchedule(t *testing.T) {
	e := newTestEvaluator(&bytes.Buffer{})
	inPt := types.GeoPoint{Lat: 0.001, Lng: 0}

	exitOnly := depotFence(t)
	exitOnly.TriggerEvents = []types.GeofenceEvent{types.GeofenceExit}
	_, _, ok := e.Transition(exitOnly, false, inPt, mondayMorning)
	assert.False(t, ok)

	weekend := depotFence(t)
	weekend.Schedule = &Schedule{DaysOfWeek: []time.Weekday{time.Saturday, time.Sunday}, StartTime: "00:00", EndTime: "23:59"}
	_, _, ok = e.Transition(weekend, false, inPt, mondayMorning)
	assert.False(t, ok)
}

func TestCheck(t *testing.T) {
	var buf bytes.Buffer
	e := newTestEvaluator(&buf)

	depot := depotFence(t)
	yard := Geofence{
		ID:            "yard",
		Shape:         unitSquare(t),
		TriggerEvents: []types.GeofenceEvent{types.GeofenceEnter},
		IsActive:      true,
	}

	hits, err := e.Check(context.Background(), []Geofence{depot, yard}, types.GeoPoint{Lat: 0.001, Lng: 0.001}, map[string]bool{"yard": true})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.True(t, hits[0].Inside)
	require.NotNil(t, hits[0].Event)
	assert.Equal(t, types.GeofenceEnter, *hits[0].Event)
	assert.Equal(t, int64(1), hits[0].Stats.EnterCount)
	assert.Equal(t, mondayMorning, *hits[0].Stats.LastTriggered)

	assert.True(t, hits[1].Inside)
	assert.Nil(t, hits[1].Event, "already inside yard")

	assert.Contains(t, buf.String(), `"fence_id":"depot"`)
}

// steppingClock advances by step on every call.
type steppingClock struct {
	t    time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func TestCheck_ReadsClockOnce(t *testing.T) {
	clock := &steppingClock{t: time.Date(2024, 3, 4, 9, 29, 30, 0, time.UTC), step: time.Minute}
	e := NewEvaluator(clock, slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))

	fence := depotFence(t)
	fence.Schedule = &Schedule{DaysOfWeek: []time.Weekday{time.Monday}, StartTime: "09:00", EndTime: "09:29"}

	hits, err := e.Check(context.Background(), []Geofence{fence}, types.GeoPoint{Lat: 0.001, Lng: 0}, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	assert.True(t, hits[0].Active)
	require.NotNil(t, hits[0].Event, "an active fence must fire on entry")
	assert.Equal(t, types.GeofenceEnter, *hits[0].Event)
	assert.Equal(t, time.Date(2024, 3, 4, 9, 29, 30, 0, time.UTC), *hits[0].Stats.LastTriggered)
}

func TestCheck_InvalidPoint(t *testing.T) {
	e := newTestEvaluator(&bytes.Buffer{})
	_, err := e.Check(context.Background(), nil, types.GeoPoint{Lat: 100}, nil)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidLat))
}

func TestToGeoJSON(t *testing.T) {
	fences := []Geofence{depotFence(t), {ID: "yard", Name: "Yard", Shape: unitSquare(t)}, {ID: "empty"}}

	fc := ToGeoJSON(fences)
	require.Len(t, fc.Features, 2)

	raw, err := fc.MarshalJSON()
	require.NoError(t, err)

	var decoded struct {
		Features []struct {
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "Point", decoded.Features[0].Geometry.Type)
	assert.Equal(t, 1000.0, decoded.Features[0].Properties["radius_meters"])
	assert.Equal(t, "Polygon", decoded.Features[1].Geometry.Type)
	assert.JSONEq(t, `[[[0,0],[1,0],[1,1],[0,1],[0,0]]]`, string(decoded.Features[1].Geometry.Coordinates))
}
