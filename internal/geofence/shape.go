package geofence

import (
	"math"

	"github.com/paulmach/orb"

	"fleetgeo/internal/geomath"
	"fleetgeo/internal/types"
)

// Shape is the geometry of a geofence. The only implementations are Circle
// and Polygon, obtained from NewCircle and NewPolygon.
type Shape interface {
	// Contains reports whether p lies inside the shape.
	Contains(p types.GeoPoint) bool
	// AreaM2 returns the approximate area in square metres.
	AreaM2() float64
	// Geometry returns the shape as an orb geometry for GeoJSON export.
	Geometry() orb.Geometry
	// Kind returns "circle" or "polygon".
	Kind() string

	sealed()
}

// Circle is a disc of RadiusMeters around Center.
type Circle struct {
	Center       types.GeoPoint `json:"center"`
	RadiusMeters float64        `json:"radius_meters"`
}

// NewCircle validates and builds a circular shape.
func NewCircle(center types.GeoPoint, radiusMeters float64) (Circle, error) {
	if err := center.Validate(); err != nil {
		return Circle{}, invalidGeometry("circle center is not a valid coordinate", err)
	}
	if radiusMeters <= 0 || math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) {
		return Circle{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidGeometry,
			"circle radius must be positive", nil, map[string]any{"radius_meters": radiusMeters})
	}
	return Circle{Center: center, RadiusMeters: radiusMeters}, nil
}

func (c Circle) Contains(p types.GeoPoint) bool {
	return geomath.DistanceKm(p, c.Center)*1000 <= c.RadiusMeters
}

func (c Circle) AreaM2() float64 {
	return math.Pi * c.RadiusMeters * c.RadiusMeters
}

func (c Circle) Geometry() orb.Geometry {
	return orb.Point{c.Center.Lng, c.Center.Lat}
}

func (Circle) Kind() string { return "circle" }

func (Circle) sealed() {}

// Polygon is a simple polygon given by its vertices in order. The ring is
// implicitly closed; the first vertex need not be repeated.
type Polygon struct {
	Vertices []types.GeoPoint `json:"vertices"`
}

// NewPolygon validates and builds a polygon shape. A trailing vertex equal
// to the first is dropped before counting.
func NewPolygon(vertices []types.GeoPoint) (Polygon, error) {
	vs := append([]types.GeoPoint(nil), vertices...)
	if n := len(vs); n > 1 && vs[0] == vs[n-1] {
		vs = vs[:n-1]
	}
	if len(vs) < 3 {
		return Polygon{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidGeometry,
			"polygon requires at least 3 distinct vertices", nil, map[string]any{"vertices": len(vs)})
	}
	for i, v := range vs {
		if err := v.Validate(); err != nil {
			return Polygon{}, invalidGeometry("polygon vertex is not a valid coordinate", err).
				WithDetails(map[string]any{"index": i})
		}
	}
	return Polygon{Vertices: vs}, nil
}

// Contains uses the even-odd ray casting rule. Points exactly on an edge may
// fall either way.
func (pg Polygon) Contains(p types.GeoPoint) bool {
	vs := pg.Vertices
	if len(vs) < 3 {
		return false
	}

	inside := false
	j := len(vs) - 1
	for i := range vs {
		yi, xi := vs[i].Lat, vs[i].Lng
		yj, xj := vs[j].Lat, vs[j].Lng

		if (yi > p.Lat) != (yj > p.Lat) &&
			p.Lng < (xj-xi)*(p.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

func (pg Polygon) AreaM2() float64 {
	return geomath.PolygonAreaM2(pg.Vertices)
}

func (pg Polygon) Geometry() orb.Geometry {
	ring := make(orb.Ring, 0, len(pg.Vertices)+1)
	for _, v := range pg.Vertices {
		ring = append(ring, orb.Point{v.Lng, v.Lat})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}

func (Polygon) Kind() string { return "polygon" }

func (Polygon) sealed() {}

func invalidGeometry(msg string, cause error) *types.AppError {
	return types.NewAppError(types.ErrCodeValidationInvalidGeometry, msg, cause)
}
