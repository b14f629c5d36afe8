package types

import "fmt"

// Validation constraint constants.
const (
	MinLat = -90.0
	MaxLat = 90.0
	MinLng = -180.0
	MaxLng = 180.0

	// MaxMercatorLat is the latitude limit of the Web Mercator projection.
	MaxMercatorLat = 85.05112878

	// MaxTileZoom is the deepest zoom level accepted by the tile cache.
	MaxTileZoom = 22
)

// ValidateLocation checks that lat and lng lie within WGS84 bounds.
func ValidateLocation(lat, lng float64) error {
	if lat < MinLat || lat > MaxLat {
		return NewAppErrorWithDetails(
			ErrCodeValidationInvalidLat,
			fmt.Sprintf("latitude %.6f outside [%.0f, %.0f]", lat, MinLat, MaxLat),
			nil,
			map[string]any{"lat": lat},
		)
	}
	if lng < MinLng || lng > MaxLng {
		return NewAppErrorWithDetails(
			ErrCodeValidationInvalidLng,
			fmt.Sprintf("longitude %.6f outside [%.0f, %.0f]", lng, MinLng, MaxLng),
			nil,
			map[string]any{"lng": lng},
		)
	}
	return nil
}
