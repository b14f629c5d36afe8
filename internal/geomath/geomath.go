// Package geomath provides the distance, projection and area primitives used
// by the geofence, tracking and analytics packages. Every function is pure.
package geomath

import (
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"

	"fleetgeo/internal/types"
)

const (
	// EarthRadiusKm is the mean Earth radius used by the Haversine formula.
	EarthRadiusKm = 6371.0

	// MetersPerDegree approximates the length of one degree of arc at the
	// equator.
	MetersPerDegree = 111000.0
)

// ToRadians converts degrees to radians.
func ToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceKm returns the great-circle distance between a and b in kilometres.
func DistanceKm(a, b types.GeoPoint) float64 {
	if a == b {
		return 0
	}

	lat1 := ToRadians(a.Lat)
	lat2 := ToRadians(b.Lat)
	dLat := lat2 - lat1
	dLng := ToRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// DistanceMeters is DistanceKm scaled to metres.
func DistanceMeters(a, b types.GeoPoint) float64 {
	return DistanceKm(a, b) * 1000
}

// ProjectOntoSegment returns the point on segment [start, end] closest to p,
// treating lat/lng as planar coordinates. The projection parameter is
// clamped to [0, 1]. A zero-length segment yields start.
func ProjectOntoSegment(p, start, end types.GeoPoint) types.GeoPoint {
	dx := end.Lng - start.Lng
	dy := end.Lat - start.Lat

	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return start
	}

	t := ((p.Lng-start.Lng)*dx + (p.Lat-start.Lat)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	return types.GeoPoint{
		Lat: start.Lat + t*dy,
		Lng: start.Lng + t*dx,
	}
}

// PolygonAreaM2 applies the shoelace formula to the raw degree coordinates
// and scales by MetersPerDegree squared. Longitude is not corrected for
// latitude, so the result overstates area away from the equator and is only
// meaningful for small polygons. Fewer than 3 vertices yields 0.
func PolygonAreaM2(vertices []types.GeoPoint) float64 {
	n := len(vertices)
	if n < 3 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += vertices[i].Lng*vertices[j].Lat - vertices[j].Lng*vertices[i].Lat
	}

	return math.Abs(sum) / 2 * MetersPerDegree * MetersPerDegree
}

// PathLengthKm sums the Haversine distance along consecutive points.
func PathLengthKm(points []types.GeoPoint) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += DistanceKm(points[i-1], points[i])
	}
	return total
}

// DecodePolyline decodes a Google encoded polyline (precision 5) into
// points, validating every decoded coordinate.
func DecodePolyline(encoded string) ([]types.GeoPoint, error) {
	if encoded == "" {
		return nil, nil
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidGeometry,
			"failed to decode polyline", fmt.Errorf("decode polyline: %w", err))
	}

	points := make([]types.GeoPoint, len(coords))
	for i, c := range coords {
		points[i] = types.GeoPoint{Lat: c[0], Lng: c[1]}
		if err := points[i].Validate(); err != nil {
			return nil, err
		}
	}
	return points, nil
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(points []types.GeoPoint) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lat, p.Lng}
	}
	return string(polyline.EncodeCoords(coords))
}
