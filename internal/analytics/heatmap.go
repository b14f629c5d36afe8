// Package analytics derives reports from completed trip history: activity
// heatmaps, traffic predictions, area statistics, route playback and ETA
// correction. The functions in this package are pure; Service binds them
// to a trip store.
package analytics

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"fleetgeo/internal/types"
)

// Heatmap weights.
const (
	DefaultHeatmapPrecision = 4

	endpointWeight   = 1.0
	routePointWeight = 0.5
)

type cellKey struct {
	lat, lng int64
}

// Heatmap bins every pickup, dropoff and tracked point to a grid of the
// given decimal precision and sums the weights per cell. Pickups and
// dropoffs weigh 1.0, tracked points 0.5. Cells are returned heaviest
// first; equal weights are ordered by latitude then longitude. A precision
// outside [0, 8] uses DefaultHeatmapPrecision.
func Heatmap(trips []types.Trip, precision int) []types.HeatmapPoint {
	if precision < 0 || precision > 8 {
		precision = DefaultHeatmapPrecision
	}
	scale := math.Pow(10, float64(precision))

	cells := make(map[cellKey]float64)
	add := func(lat, lng, w float64) {
		k := cellKey{lat: int64(math.Round(lat * scale)), lng: int64(math.Round(lng * scale))}
		cells[k] += w
	}
	for _, t := range trips {
		add(t.PickupLocation.Lat, t.PickupLocation.Lng, endpointWeight)
		add(t.DropoffLocation.Lat, t.DropoffLocation.Lng, endpointWeight)
		for _, p := range t.RoutePoints {
			add(p.Lat, p.Lng, routePointWeight)
		}
	}

	out := make([]types.HeatmapPoint, 0, len(cells))
	for k, w := range cells {
		out = append(out, types.HeatmapPoint{
			Lat:    float64(k.lat) / scale,
			Lng:    float64(k.lng) / scale,
			Weight: w,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		if out[i].Lat != out[j].Lat {
			return out[i].Lat < out[j].Lat
		}
		return out[i].Lng < out[j].Lng
	})
	return out
}

// HeatmapGeoJSON exports heatmap cells as GeoJSON points carrying a
// "weight" property.
func HeatmapGeoJSON(points []types.HeatmapPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		f := geojson.NewFeature(orb.Point{p.Lng, p.Lat})
		f.Properties["weight"] = p.Weight
		fc.Append(f)
	}
	return fc
}
