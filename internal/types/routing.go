package types

// DirectionsRequest asks the directions provider for candidate routes.
type DirectionsRequest struct {
	Origin       GeoPoint   `json:"origin" validate:"required"`
	Destination  GeoPoint   `json:"destination" validate:"required"`
	Waypoints    []GeoPoint `json:"waypoints,omitempty" validate:"max=23,dive"`
	Alternatives bool       `json:"alternatives"`
}

// RouteStep is a single manoeuvre of a provider route. Instruction is the
// provider's HTML-formatted text.
type RouteStep struct {
	Instruction     string  `json:"instruction"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// RouteSummary is one candidate route as returned by the directions
// provider, with leg totals already summed.
type RouteSummary struct {
	Summary         string      `json:"summary"`
	DistanceMeters  float64     `json:"distance_meters"`
	DurationSeconds float64     `json:"duration_seconds"`
	Steps           []RouteStep `json:"steps"`
	Polyline        string      `json:"polyline,omitempty"`
}
