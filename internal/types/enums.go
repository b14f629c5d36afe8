package types

// TripStatus represents the lifecycle state of a trip in the trip store.
type TripStatus string

const (
	TripScheduled  TripStatus = "scheduled"
	TripInProgress TripStatus = "in_progress"
	TripCompleted  TripStatus = "completed"
	TripCancelled  TripStatus = "cancelled"
)

// TrafficLevel is the observed or predicted congestion level. The declaration
// order is significant: it is the tie-break order for mode selection.
type TrafficLevel string

const (
	TrafficLight    TrafficLevel = "light"
	TrafficModerate TrafficLevel = "moderate"
	TrafficHeavy    TrafficLevel = "heavy"
	TrafficSevere   TrafficLevel = "severe"
)

// TrafficLevels lists every level in tie-break order.
var TrafficLevels = []TrafficLevel{TrafficLight, TrafficModerate, TrafficHeavy, TrafficSevere}

// PredictionInsufficientData marks a traffic prediction with no matching history.
const PredictionInsufficientData = "insufficient_data"

// GeofenceEvent identifies the kind of geofence trigger.
type GeofenceEvent string

const (
	GeofenceEnter GeofenceEvent = "enter"
	GeofenceExit  GeofenceEvent = "exit"
	GeofenceDwell GeofenceEvent = "dwell"
)

// Valid reports whether e is one of the known events.
func (e GeofenceEvent) Valid() bool {
	switch e {
	case GeofenceEnter, GeofenceExit, GeofenceDwell:
		return true
	}
	return false
}

// Severity grades a real-time alert.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Confidence grades an analytics estimate.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)
