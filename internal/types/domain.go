package types

import (
	"fmt"
	"time"
)

// GeoPoint is a WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// Validate checks the coordinate lies within [-90,90] x [-180,180].
func (p GeoPoint) Validate() error {
	return ValidateLocation(p.Lat, p.Lng)
}

// String renders the point as "lat,lng".
func (p GeoPoint) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// Bounds is an axis-aligned lat/lng bounding box.
type Bounds struct {
	North float64 `json:"north" validate:"latitude"`
	South float64 `json:"south" validate:"latitude"`
	East  float64 `json:"east" validate:"longitude"`
	West  float64 `json:"west" validate:"longitude"`
}

// Validate checks the corners are valid coordinates and North >= South.
// West > East is accepted and treated as a box crossing the antimeridian.
func (b Bounds) Validate() error {
	if err := ValidateLocation(b.North, b.East); err != nil {
		return err
	}
	if err := ValidateLocation(b.South, b.West); err != nil {
		return err
	}
	if b.South > b.North {
		return NewAppError(ErrCodeValidationInvalidGeometry, "bounds south must not exceed north", nil)
	}
	return nil
}

// Contains reports whether p lies inside the box, edges inclusive.
func (b Bounds) Contains(p GeoPoint) bool {
	if p.Lat < b.South || p.Lat > b.North {
		return false
	}
	if b.West <= b.East {
		return p.Lng >= b.West && p.Lng <= b.East
	}
	return p.Lng >= b.West || p.Lng <= b.East
}

// BoundsAround returns the box extending delta degrees around center in
// every direction.
func BoundsAround(center GeoPoint, delta float64) Bounds {
	return Bounds{
		North: center.Lat + delta,
		South: center.Lat - delta,
		East:  center.Lng + delta,
		West:  center.Lng - delta,
	}
}

// TrackPoint is a single recorded GPS fix. Immutable once recorded.
type TrackPoint struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Timestamp  time.Time `json:"timestamp"`
	SpeedKmh   *float64  `json:"speed_kmh,omitempty"`
	HeadingDeg *float64  `json:"heading_deg,omitempty"`
	AccuracyM  *float64  `json:"accuracy_m,omitempty"`
}

// Point returns the fix position.
func (tp TrackPoint) Point() GeoPoint {
	return GeoPoint{Lat: tp.Lat, Lng: tp.Lng}
}

// PlannedRoute is the ordered sequence of waypoints a trip should follow.
type PlannedRoute []GeoPoint

// TileCoordinate addresses a 256x256 slippy-map raster tile.
type TileCoordinate struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Zoom int `json:"zoom"`
}

// Path returns the cache-relative path "{zoom}/{x}/{y}.png".
func (c TileCoordinate) Path() string {
	return fmt.Sprintf("%d/%d/%d.png", c.Zoom, c.X, c.Y)
}

// String renders the coordinate as "z/x/y".
func (c TileCoordinate) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Zoom, c.X, c.Y)
}

// HeatmapPoint is one aggregated grid cell of activity.
type HeatmapPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight float64 `json:"weight"`
}

// TrafficPrediction is the historical traffic estimate for a route and time.
type TrafficPrediction struct {
	Prediction        string       `json:"prediction"`
	Level             TrafficLevel `json:"level,omitempty"`
	DelayMinutes      float64      `json:"delay_minutes"`
	ConfidencePercent float64      `json:"confidence_percent"`
	SampleSize        int          `json:"sample_size"`
	Truncated         bool         `json:"truncated,omitempty"`
}

// FuelScore summarises the fuel efficiency of one candidate route.
// Lower FuelScore ranks better.
type FuelScore struct {
	TotalDistanceKm float64 `json:"total_distance_km"`
	HighwayKm       float64 `json:"highway_km"`
	CityKm          float64 `json:"city_km"`
	FuelScore       float64 `json:"fuel_score"`
	EstimatedLiters float64 `json:"estimated_liters"`
}

// Trip is the subset of a trip-store record consumed by the analytics engine.
type Trip struct {
	ID                   string       `json:"id" db:"id"`
	PickupLocation       GeoPoint     `json:"pickup_location" db:"-"`
	DropoffLocation      GeoPoint     `json:"dropoff_location" db:"-"`
	ScheduledDate        time.Time    `json:"scheduled_date" db:"scheduled_date"`
	ScheduledTime        string       `json:"scheduled_time" db:"scheduled_time"` // "HH:MM"
	Status               TripStatus   `json:"status" db:"status"`
	EstimatedDurationMin float64      `json:"estimated_duration_min" db:"estimated_duration_min"`
	ActualPickupTime     *time.Time   `json:"actual_pickup_time,omitempty" db:"actual_pickup_time"`
	ActualDropoffTime    *time.Time   `json:"actual_dropoff_time,omitempty" db:"actual_dropoff_time"`
	RoutePoints          []TrackPoint `json:"route_points,omitempty" db:"route_points"`
	Rating               *float64     `json:"rating,omitempty" db:"rating"`
	AssignedDriver       string       `json:"assigned_driver,omitempty" db:"assigned_driver"`
	DistanceKm           float64      `json:"distance_km" db:"distance_km"`
	TrafficLevel         TrafficLevel `json:"traffic_level,omitempty" db:"traffic_level"`
}

// ScheduledHour returns the hour component of ScheduledTime, or -1 when it
// cannot be parsed.
func (t Trip) ScheduledHour() int {
	var h, m int
	if _, err := fmt.Sscanf(t.ScheduledTime, "%d:%d", &h, &m); err != nil {
		return -1
	}
	if h < 0 || h > 23 {
		return -1
	}
	return h
}

// ActualDurationMin returns the recorded pickup-to-dropoff duration in
// minutes. ok is false unless both timestamps are present.
func (t Trip) ActualDurationMin() (minutes float64, ok bool) {
	if t.ActualPickupTime == nil || t.ActualDropoffTime == nil {
		return 0, false
	}
	return t.ActualDropoffTime.Sub(*t.ActualPickupTime).Minutes(), true
}
