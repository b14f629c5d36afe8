package analytics

import (
	"bytes"
	"fmt"
	"slices"
	"time"

	kml "github.com/twpayne/go-kml"

	"fleetgeo/internal/geomath"
	"fleetgeo/internal/tracking"
	"fleetgeo/internal/types"
)

// PlaybackPoint is a tracked fix annotated with its position in the track.
type PlaybackPoint struct {
	Index int `json:"index"`
	types.TrackPoint
}

// PlaybackSummary aggregates a whole track.
type PlaybackSummary struct {
	Points          int       `json:"points"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	DistanceKm      float64   `json:"distance_km"`
	AvgSpeedKmh     float64   `json:"avg_speed_kmh"`
	MaxSpeedKmh     float64   `json:"max_speed_kmh"`
}

// Playback is the replayable track of one trip.
type Playback struct {
	TripID  string          `json:"trip_id"`
	Points  []PlaybackPoint `json:"points"`
	Summary PlaybackSummary `json:"summary"`
}

// BuildPlayback orders the trip's fixes by time and computes the summary.
// The maximum speed prefers the device-reported speeds and falls back to
// speeds derived between consecutive fixes. A trip without fixes is
// not_found_route_tracking.
func BuildPlayback(trip types.Trip) (*Playback, error) {
	if len(trip.RoutePoints) == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundRouteTracking,
			"trip has no tracked route points", nil, map[string]any{"trip_id": trip.ID})
	}

	pts := slices.Clone(trip.RoutePoints)
	slices.SortStableFunc(pts, func(a, b types.TrackPoint) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	out := &Playback{TripID: trip.ID, Points: make([]PlaybackPoint, len(pts))}
	path := make([]types.GeoPoint, len(pts))
	var reportedMax, derivedMax float64
	for i, p := range pts {
		out.Points[i] = PlaybackPoint{Index: i, TrackPoint: p}
		path[i] = p.Point()
		if p.SpeedKmh != nil && *p.SpeedKmh > reportedMax {
			reportedMax = *p.SpeedKmh
		}
		if i > 0 {
			// Fixes sharing a timestamp yield no speed.
			if s, err := tracking.ComputeSpeed(pts[i-1], p); err == nil && s.SpeedKmh > derivedMax {
				derivedMax = s.SpeedKmh
			}
		}
	}

	first, last := pts[0].Timestamp, pts[len(pts)-1].Timestamp
	sum := PlaybackSummary{
		Points:          len(pts),
		StartedAt:       first,
		EndedAt:         last,
		DurationSeconds: last.Sub(first).Seconds(),
		DistanceKm:      geomath.PathLengthKm(path),
		MaxSpeedKmh:     reportedMax,
	}
	if sum.MaxSpeedKmh == 0 {
		sum.MaxSpeedKmh = derivedMax
	}
	if sum.DurationSeconds > 0 {
		sum.AvgSpeedKmh = sum.DistanceKm / (sum.DurationSeconds / 3600)
	}
	out.Summary = sum
	return out, nil
}

// PlaybackKML renders the track as a KML document with a line for the
// route and a time-stamped placemark per fix.
func PlaybackKML(p *Playback) ([]byte, error) {
	coords := make([]kml.Coordinate, len(p.Points))
	fixes := make([]kml.Element, 0, len(p.Points))
	for i, pt := range p.Points {
		coords[i] = kml.Coordinate{Lon: pt.Lng, Lat: pt.Lat}
		fixes = append(fixes, kml.Placemark(
			kml.Name(fmt.Sprintf("#%d", pt.Index)),
			kml.TimeStamp(kml.When(pt.Timestamp)),
			kml.Point(kml.Coordinates(coords[i])),
		))
	}

	doc := kml.KML(
		kml.Document(
			kml.Name("Trip "+p.TripID),
			kml.Description(fmt.Sprintf("%.2f km in %.0f s, max %.1f km/h",
				p.Summary.DistanceKm, p.Summary.DurationSeconds, p.Summary.MaxSpeedKmh)),
			kml.Placemark(
				kml.Name("Route"),
				kml.LineString(
					kml.Tessellate(true),
					kml.Coordinates(coords...),
				),
			),
			kml.Folder(append([]kml.Element{kml.Name("Fixes")}, fixes...)...),
		),
	)

	var buf bytes.Buffer
	if err := doc.WriteIndent(&buf, "", "  "); err != nil {
		return nil, fmt.Errorf("write playback kml: %w", err)
	}
	return buf.Bytes(), nil
}
