package geofence

import (
	"context"
	"log/slog"
	"time"

	"github.com/paulmach/orb/geojson"

	"fleetgeo/internal/types"
)

// Hit describes one fence evaluated against a live position.
type Hit struct {
	FenceID string               `json:"fence_id"`
	Name    string               `json:"name"`
	Inside  bool                 `json:"inside"`
	Active  bool                 `json:"active"`
	Event   *types.GeofenceEvent `json:"event,omitempty"`
	Stats   Stats                `json:"stats"`
}

// Evaluator applies fences to live positions. It holds no per-vehicle state;
// the caller supplies the previous containment for each fence.
type Evaluator struct {
	clock  types.Clock
	logger *slog.Logger
}

// NewEvaluator creates an Evaluator. A nil clock uses the system clock.
func NewEvaluator(clock types.Clock, logger *slog.Logger) *Evaluator {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{clock: clock, logger: logger}
}

// Transition compares the fence's containment of point against prevInside.
// It returns the enter or exit event when containment changed, the fence
// is active at now and configured to trigger on that event. ok is false
// otherwise.
func (e *Evaluator) Transition(f Geofence, prevInside bool, point types.GeoPoint, now time.Time) (event types.GeofenceEvent, inside bool, ok bool) {
	inside = IsInside(point, f)
	if inside == prevInside || !IsActiveNow(f, now) {
		return "", inside, false
	}

	event = types.GeofenceExit
	if inside {
		event = types.GeofenceEnter
	}
	if !f.Triggers(event) {
		return "", inside, false
	}
	return event, inside, true
}

// Check evaluates every fence against point. prev maps fence ID to the last
// known containment; fences missing from prev are treated as previously
// outside. Stats in the returned hits include any event fired here.
func (e *Evaluator) Check(ctx context.Context, fences []Geofence, point types.GeoPoint, prev map[string]bool) ([]Hit, error) {
	if err := point.Validate(); err != nil {
		return nil, err
	}

	now := e.clock.Now()
	hits := make([]Hit, 0, len(fences))
	for _, f := range fences {
		hit := Hit{
			FenceID: f.ID,
			Name:    f.Name,
			Active:  IsActiveNow(f, now),
			Stats:   f.Stats,
		}

		event, inside, fired := e.Transition(f, prev[f.ID], point, now)
		hit.Inside = inside
		if fired {
			stats, err := RecordEvent(f, event, now)
			if err != nil {
				return nil, err
			}
			hit.Event = &event
			hit.Stats = stats
			e.logger.InfoContext(ctx, "geofence triggered",
				"fence_id", f.ID,
				"event", string(event),
				"lat", point.Lat,
				"lng", point.Lng,
			)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// ToGeoJSON exports fences as a FeatureCollection. Circles become Point
// features carrying a radius_meters property.
func ToGeoJSON(fences []Geofence) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range fences {
		if f.Shape == nil {
			continue
		}
		feature := geojson.NewFeature(f.Shape.Geometry())
		feature.ID = f.ID
		feature.Properties["name"] = f.Name
		feature.Properties["kind"] = f.Shape.Kind()
		feature.Properties["is_active"] = f.IsActive
		feature.Properties["area_m2"] = f.Shape.AreaM2()
		if c, ok := f.Shape.(Circle); ok {
			feature.Properties["radius_meters"] = c.RadiusMeters
		}
		events := make([]string, len(f.TriggerEvents))
		for i, ev := range f.TriggerEvents {
			events[i] = string(ev)
		}
		feature.Properties["trigger_events"] = events
		fc.Append(feature)
	}
	return fc
}
