package types

// Telemetry metric names for CloudWatch.
const (
	// Metric Names
	MetricTilesDownloaded = "TilesDownloaded"
	MetricTilesCached     = "TilesCached"
	MetricTilesFailed     = "TilesFailed"
	MetricRegionDuration  = "RegionDownloadDuration"
	MetricAPILatency      = "APILatency"

	// Dimension Keys
	DimZoom     = "Zoom"
	DimEndpoint = "Endpoint"

	// Metric Namespace
	MetricNamespace = "FleetGeo"
)
