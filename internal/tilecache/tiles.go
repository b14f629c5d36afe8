// Package tilecache maintains an on-disk cache of slippy-map raster tiles
// for offline use. Tiles are addressed in the standard XYZ scheme and
// stored as {root}/{zoom}/{x}/{y}.png.
package tilecache

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"fleetgeo/internal/types"
)

// TileRange is the inclusive rectangle of tiles covering a bounding box at
// one zoom level.
type TileRange struct {
	Zoom int `json:"zoom"`
	MinX int `json:"min_x"`
	MaxX int `json:"max_x"`
	MinY int `json:"min_y"`
	MaxY int `json:"max_y"`
}

// Count returns the number of tiles in the range.
func (r TileRange) Count() int {
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// Tiles enumerates the range row by row.
func (r TileRange) Tiles() []types.TileCoordinate {
	out := make([]types.TileCoordinate, 0, r.Count())
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			out = append(out, types.TileCoordinate{X: x, Y: y, Zoom: r.Zoom})
		}
	}
	return out
}

// ValidateZoom rejects zoom levels outside [0, maxZoom].
func ValidateZoom(zoom, maxZoom int) error {
	if zoom < 0 || zoom > maxZoom {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidZoom,
			fmt.Sprintf("zoom %d outside [0, %d]", zoom, maxZoom),
			nil,
			map[string]any{"zoom": zoom, "max_zoom": maxZoom},
		)
	}
	return nil
}

// ValidateCoordinate checks that coord addresses an existing tile.
func ValidateCoordinate(coord types.TileCoordinate, maxZoom int) error {
	if err := ValidateZoom(coord.Zoom, maxZoom); err != nil {
		return err
	}
	n := 1 << coord.Zoom
	if coord.X < 0 || coord.X >= n || coord.Y < 0 || coord.Y >= n {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidGeometry,
			fmt.Sprintf("tile %s outside the zoom %d grid", coord, coord.Zoom),
			nil,
			map[string]any{"tile": coord.String()},
		)
	}
	return nil
}

func validateMercatorLat(lat float64) error {
	if lat < -types.MaxMercatorLat || lat > types.MaxMercatorLat {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidLat,
			fmt.Sprintf("latitude %.6f outside the Web Mercator limit of ±%.4f", lat, types.MaxMercatorLat),
			nil,
			map[string]any{"lat": lat},
		)
	}
	return nil
}

// LatLngToTile returns the tile containing p at zoom. Latitudes beyond the
// Mercator limit are clamped to the edge row; longitude 180 maps to the
// last column.
func LatLngToTile(p types.GeoPoint, zoom int) types.TileCoordinate {
	n := float64(int(1) << zoom)
	lat := math.Max(-types.MaxMercatorLat, math.Min(types.MaxMercatorLat, p.Lat))
	latRad := lat * math.Pi / 180

	x := math.Floor((p.Lng + 180) / 360 * n)
	y := math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n)

	return types.TileCoordinate{
		X:    clampIndex(x, n),
		Y:    clampIndex(y, n),
		Zoom: zoom,
	}
}

func clampIndex(v, n float64) int {
	if v < 0 {
		return 0
	}
	if v > n-1 {
		return int(n - 1)
	}
	return int(v)
}

// BoundsToTileRange returns the tiles covering b at zoom. The north-west
// corner gives the minimum indices. Bounds crossing the antimeridian are
// rejected.
func BoundsToTileRange(b types.Bounds, zoom, maxZoom int) (TileRange, error) {
	if err := ValidateZoom(zoom, maxZoom); err != nil {
		return TileRange{}, err
	}
	if err := b.Validate(); err != nil {
		return TileRange{}, err
	}
	if err := validateMercatorLat(b.North); err != nil {
		return TileRange{}, err
	}
	if err := validateMercatorLat(b.South); err != nil {
		return TileRange{}, err
	}
	if b.West > b.East {
		return TileRange{}, types.NewAppError(types.ErrCodeValidationInvalidGeometry,
			"bounds crossing the antimeridian must be split into two regions", nil)
	}

	nw := LatLngToTile(types.GeoPoint{Lat: b.North, Lng: b.West}, zoom)
	se := LatLngToTile(types.GeoPoint{Lat: b.South, Lng: b.East}, zoom)
	return TileRange{
		Zoom: zoom,
		MinX: nw.X,
		MaxX: se.X,
		MinY: nw.Y,
		MaxY: se.Y,
	}, nil
}

// TileBound returns the geographic extent of coord.
func TileBound(coord types.TileCoordinate) types.Bounds {
	b := maptile.New(uint32(coord.X), uint32(coord.Y), maptile.Zoom(coord.Zoom)).Bound()
	return boundsFromOrb(b)
}

func boundsFromOrb(b orb.Bound) types.Bounds {
	return types.Bounds{
		North: b.Max.Lat(),
		South: b.Min.Lat(),
		East:  b.Max.Lon(),
		West:  b.Min.Lon(),
	}
}
