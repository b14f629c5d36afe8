package tracking

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fleetgeo/internal/geomath"
	"fleetgeo/internal/types"
)

// SpeedSample is the average speed between two fixes.
type SpeedSample struct {
	SpeedKmh       float64 `json:"speed_kmh"`
	DistanceKm     float64 `json:"distance_km"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// ComputeSpeed derives speed from two consecutive fixes. p2 must be strictly
// later than p1; callers discard duplicate or out-of-order fixes first.
func ComputeSpeed(p1, p2 types.TrackPoint) (SpeedSample, error) {
	elapsed := p2.Timestamp.Sub(p1.Timestamp).Seconds()
	if elapsed <= 0 {
		return SpeedSample{}, types.NewAppErrorWithDetails(types.ErrCodeValidationTimeInterval,
			"second fix must be later than the first", nil,
			map[string]any{"elapsed_seconds": elapsed})
	}

	dist := geomath.DistanceKm(p1.Point(), p2.Point())
	return SpeedSample{
		SpeedKmh:       dist / (elapsed / 3600),
		DistanceKm:     dist,
		ElapsedSeconds: elapsed,
	}, nil
}

// SpeedCheck is the comparison of a speed against a limit.
type SpeedCheck struct {
	Exceeds     bool           `json:"exceeds"`
	SpeedKmh    float64        `json:"speed_kmh"`
	LimitKmh    float64        `json:"limit_kmh"`
	ExcessKmh   float64        `json:"excess_kmh"`
	PercentOver float64        `json:"percent_over"`
	Severity    types.Severity `json:"severity"`
}

// CheckSpeedLimit grades speedKmh against limitKmh by percent over the limit:
// low below 15%, medium below 30%, high below 50%, critical from 50%.
// A non-positive limit never reports a violation.
func CheckSpeedLimit(speedKmh, limitKmh float64) SpeedCheck {
	c := SpeedCheck{SpeedKmh: speedKmh, LimitKmh: limitKmh, Severity: types.SeverityNone}
	if limitKmh <= 0 || speedKmh <= limitKmh {
		return c
	}

	c.Exceeds = true
	c.ExcessKmh = speedKmh - limitKmh
	c.PercentOver = c.ExcessKmh / limitKmh * 100
	switch {
	case c.PercentOver < 15:
		c.Severity = types.SeverityLow
	case c.PercentOver < 30:
		c.Severity = types.SeverityMedium
	case c.PercentOver < 50:
		c.Severity = types.SeverityHigh
	default:
		c.Severity = types.SeverityCritical
	}
	return c
}

// SpeedAlert is emitted when a vehicle exceeds its limit.
type SpeedAlert struct {
	ID         string         `json:"id"`
	VehicleID  string         `json:"vehicle_id"`
	Location   types.GeoPoint `json:"location"`
	Check      SpeedCheck     `json:"check"`
	Sample     SpeedSample    `json:"sample"`
	ObservedAt time.Time      `json:"observed_at"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Monitor turns pairs of fixes into speed alerts.
type Monitor struct {
	defaultLimitKmh float64
	clock           types.Clock
	logger          *slog.Logger
}

// NewMonitor creates a Monitor. defaultLimitKmh is used when Evaluate is
// called with a non-positive limit.
func NewMonitor(defaultLimitKmh float64, clock types.Clock, logger *slog.Logger) *Monitor {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{defaultLimitKmh: defaultLimitKmh, clock: clock, logger: logger}
}

// Evaluate computes the speed between p1 and p2 and returns an alert when it
// exceeds limitKmh. The alert is nil when the vehicle is within the limit.
func (m *Monitor) Evaluate(ctx context.Context, vehicleID string, p1, p2 types.TrackPoint, limitKmh float64) (*SpeedAlert, SpeedCheck, error) {
	sample, err := ComputeSpeed(p1, p2)
	if err != nil {
		return nil, SpeedCheck{}, err
	}
	if limitKmh <= 0 {
		limitKmh = m.defaultLimitKmh
	}

	check := CheckSpeedLimit(sample.SpeedKmh, limitKmh)
	if !check.Exceeds {
		return nil, check, nil
	}

	alert := &SpeedAlert{
		ID:         uuid.NewString(),
		VehicleID:  vehicleID,
		Location:   p2.Point(),
		Check:      check,
		Sample:     sample,
		ObservedAt: p2.Timestamp.UTC(),
		CreatedAt:  m.clock.Now(),
	}
	m.logger.WarnContext(ctx, "speed limit exceeded",
		"alert_id", alert.ID,
		"vehicle_id", vehicleID,
		"speed_kmh", check.SpeedKmh,
		"limit_kmh", check.LimitKmh,
		"severity", string(check.Severity),
	)
	return alert, check, nil
}
