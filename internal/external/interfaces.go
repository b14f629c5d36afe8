package external

import (
	"context"

	"fleetgeo/internal/types"
)

// TileProvider fetches raw raster tiles.
type TileProvider interface {
	FetchTile(ctx context.Context, coord types.TileCoordinate) ([]byte, error)
}

// DirectionsProvider returns candidate routes between two points.
type DirectionsProvider interface {
	Routes(ctx context.Context, req types.DirectionsRequest) ([]types.RouteSummary, error)
}

var (
	_ TileProvider       = (*TileClient)(nil)
	_ DirectionsProvider = (*DirectionsClient)(nil)
	_ DirectionsProvider = (*StubDirections)(nil)
)
