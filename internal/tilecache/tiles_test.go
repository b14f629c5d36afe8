package tilecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetgeo/internal/types"
)

func TestLatLngToTile(t *testing.T) {
	tests := []struct {
		name string
		p    types.GeoPoint
		zoom int
		want types.TileCoordinate
	}{
		{"origin z0", types.GeoPoint{Lat: 0, Lng: 0}, 0, types.TileCoordinate{X: 0, Y: 0, Zoom: 0}},
		{"origin z1", types.GeoPoint{Lat: 0, Lng: 0}, 1, types.TileCoordinate{X: 1, Y: 1, Zoom: 1}},
		{"london z10", types.GeoPoint{Lat: 51.5074, Lng: -0.1278}, 10, types.TileCoordinate{X: 511, Y: 340, Zoom: 10}},
		{"antimeridian east edge", types.GeoPoint{Lat: 10, Lng: 180}, 3, types.TileCoordinate{X: 7, Y: 3, Zoom: 3}},
		{"north-west corner", types.GeoPoint{Lat: 85.05, Lng: -180}, 4, types.TileCoordinate{X: 0, Y: 0, Zoom: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LatLngToTile(tt.p, tt.zoom))
		})
	}
}

func TestBoundsToTileRange(t *testing.T) {
	b := types.Bounds{North: 51.6, South: 51.4, East: 0.0, West: -0.3}

	r, err := BoundsToTileRange(b, 10, 19)
	require.NoError(t, err)
	assert.Equal(t, 10, r.Zoom)
	assert.LessOrEqual(t, r.MinX, r.MaxX)
	assert.LessOrEqual(t, r.MinY, r.MaxY)
	assert.Equal(t, len(r.Tiles()), r.Count())

	nw := LatLngToTile(types.GeoPoint{Lat: b.North, Lng: b.West}, 10)
	se := LatLngToTile(types.GeoPoint{Lat: b.South, Lng: b.East}, 10)
	assert.Equal(t, nw.X, r.MinX)
	assert.Equal(t, nw.Y, r.MinY)
	assert.Equal(t, se.X, r.MaxX)
	assert.Equal(t, se.Y, r.MaxY)
}

func TestBoundsToTileRange_WholeWorldZoom1(t *testing.T) {
	b := types.Bounds{North: 85, South: -85, East: 179.9, West: -180}
	r, err := BoundsToTileRange(b, 1, 19)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Count())
}

func TestBoundsToTileRange_Rejects(t *testing.T) {
	tests := []struct {
		name string
		b    types.Bounds
		zoom int
		code types.ErrorCode
	}{
		{"north beyond mercator", types.Bounds{North: 86, South: 0, East: 1, West: 0}, 5, types.ErrCodeValidationInvalidLat},
		{"south beyond mercator", types.Bounds{North: 0, South: -89, East: 1, West: 0}, 5, types.ErrCodeValidationInvalidLat},
		{"zoom too deep", types.Bounds{North: 1, South: 0, East: 1, West: 0}, 20, types.ErrCodeValidationInvalidZoom},
		{"negative zoom", types.Bounds{North: 1, South: 0, East: 1, West: 0}, -1, types.ErrCodeValidationInvalidZoom},
		{"south above north", types.Bounds{North: 0, South: 1, East: 1, West: 0}, 5, types.ErrCodeValidationInvalidGeometry},
		{"antimeridian", types.Bounds{North: 1, South: 0, East: -179, West: 179}, 5, types.ErrCodeValidationInvalidGeometry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BoundsToTileRange(tt.b, tt.zoom, 19)
			require.Error(t, err)
			assert.True(t, types.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestValidateCoordinate(t *testing.T) {
	assert.NoError(t, ValidateCoordinate(types.TileCoordinate{X: 3, Y: 3, Zoom: 2}, 19))
	assert.True(t, types.HasCode(ValidateCoordinate(types.TileCoordinate{X: 4, Y: 0, Zoom: 2}, 19), types.ErrCodeValidationInvalidGeometry))
	assert.True(t, types.HasCode(ValidateCoordinate(types.TileCoordinate{X: 0, Y: -1, Zoom: 2}, 19), types.ErrCodeValidationInvalidGeometry))
	assert.True(t, types.HasCode(ValidateCoordinate(types.TileCoordinate{Zoom: 20}, 19), types.ErrCodeValidationInvalidZoom))
}

func TestTileBound(t *testing.T) {
	world := TileBound(types.TileCoordinate{X: 0, Y: 0, Zoom: 0})
	assert.InDelta(t, -180.0, world.West, 1e-9)
	assert.InDelta(t, 180.0, world.East, 1e-9)
	assert.InDelta(t, types.MaxMercatorLat, world.North, 1e-4)
	assert.InDelta(t, -types.MaxMercatorLat, world.South, 1e-4)

	ne := TileBound(types.TileCoordinate{X: 1, Y: 0, Zoom: 1})
	assert.InDelta(t, 0.0, ne.West, 1e-9)
	assert.InDelta(t, 0.0, ne.South, 1e-9)

	p := types.GeoPoint{Lat: 51.5074, Lng: -0.1278}
	assert.True(t, TileBound(LatLngToTile(p, 12)).Contains(p))
}
