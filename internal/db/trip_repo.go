package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"fleetgeo/internal/analytics"
	"fleetgeo/internal/types"
)

// defaultTripLimit caps history reads when the caller sets no limit.
const defaultTripLimit = 20000

// TripRepository reads trip history from the trips table joined with the
// per-trip route_tracking record. It implements analytics.TripStore.
type TripRepository struct {
	db DBTX
}

var _ analytics.TripStore = (*TripRepository)(nil)

// NewTripRepository creates a new TripRepository backed by the given
// database connection (pool or transaction).
func NewTripRepository(db DBTX) *TripRepository {
	return &TripRepository{db: db}
}

// tripColumns must match the scan order in scanTrip.
const tripColumns = `t.id,
	t.pickup_lat, t.pickup_lng, t.dropoff_lat, t.dropoff_lng,
	t.scheduled_date, t.scheduled_time, t.status,
	COALESCE(t.estimated_duration_min, 0),
	t.actual_pickup_time, t.actual_dropoff_time,
	t.rating, t.assigned_driver,
	COALESCE(t.distance_km, 0), t.traffic_level,
	rt.route_points`

const tripFrom = `FROM trips t
	 LEFT JOIN route_tracking rt ON rt.trip_id = t.id`

// scanTrip scans a single trip row. route_points is a JSONB array of
// track points and may be NULL when the trip was never tracked.
func scanTrip(row pgx.Row) (*types.Trip, error) {
	var (
		t            types.Trip
		status       string
		driver       *string
		trafficLevel *string
		routePoints  []byte
	)
	err := row.Scan(
		&t.ID,
		&t.PickupLocation.Lat,
		&t.PickupLocation.Lng,
		&t.DropoffLocation.Lat,
		&t.DropoffLocation.Lng,
		&t.ScheduledDate,
		&t.ScheduledTime,
		&status,
		&t.EstimatedDurationMin,
		&t.ActualPickupTime,
		&t.ActualDropoffTime,
		&t.Rating,
		&driver,
		&t.DistanceKm,
		&trafficLevel,
		&routePoints,
	)
	if err != nil {
		return nil, err
	}

	t.Status = types.TripStatus(status)
	if driver != nil {
		t.AssignedDriver = *driver
	}
	if trafficLevel != nil {
		t.TrafficLevel = types.TrafficLevel(*trafficLevel)
	}
	if len(routePoints) > 0 {
		if err := json.Unmarshal(routePoints, &t.RoutePoints); err != nil {
			return nil, fmt.Errorf("decode route_points for trip %s: %w", t.ID, err)
		}
	}
	return &t, nil
}

// GetTrip returns a trip with its tracked route. A missing trip is
// not_found_trip.
func (r *TripRepository) GetTrip(ctx context.Context, id string) (*types.Trip, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+tripColumns+`
		 `+tripFrom+`
		 WHERE t.id = $1`,
		id,
	)

	trip, err := scanTrip(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundTrip, "trip not found", nil,
				map[string]any{"trip_id": id})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve trip", err)
	}
	return trip, nil
}

// ListCompletedTrips returns completed trips, newest first, scheduled in
// the filter's date range. Bounds matches a pickup or dropoff inside the
// box; Pickup and Dropoff constrain each endpoint separately.
func (r *TripRepository) ListCompletedTrips(ctx context.Context, filter analytics.TripFilter) ([]types.Trip, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTripLimit
	}

	conditions := []string{fmt.Sprintf("t.status = '%s'", types.TripCompleted)}
	var args []any
	argIdx := 1

	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("t.scheduled_date >= $%d", argIdx))
		args = append(args, filter.From)
		argIdx++
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("t.scheduled_date <= $%d", argIdx))
		args = append(args, filter.To)
		argIdx++
	}
	if b := filter.Bounds; b != nil {
		pickup, pickupArgs, next := boundsCondition("t.pickup_lat", "t.pickup_lng", *b, argIdx)
		dropoff, dropoffArgs, next := boundsCondition("t.dropoff_lat", "t.dropoff_lng", *b, next)
		conditions = append(conditions, fmt.Sprintf("((%s) OR (%s))", pickup, dropoff))
		args = append(args, pickupArgs...)
		args = append(args, dropoffArgs...)
		argIdx = next
	}
	if b := filter.Pickup; b != nil {
		cond, condArgs, next := boundsCondition("t.pickup_lat", "t.pickup_lng", *b, argIdx)
		conditions = append(conditions, "("+cond+")")
		args = append(args, condArgs...)
		argIdx = next
	}
	if b := filter.Dropoff; b != nil {
		cond, condArgs, next := boundsCondition("t.dropoff_lat", "t.dropoff_lng", *b, argIdx)
		conditions = append(conditions, "("+cond+")")
		args = append(args, condArgs...)
		argIdx = next
	}

	query := fmt.Sprintf(
		`SELECT %s
		 %s
		 WHERE %s
		 ORDER BY t.scheduled_date DESC, t.id
		 LIMIT $%d`,
		tripColumns,
		tripFrom,
		strings.Join(conditions, " AND "),
		argIdx,
	)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list completed trips", err)
	}
	defer rows.Close()

	var trips []types.Trip
	for rows.Next() {
		t, scanErr := scanTrip(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan trip row", scanErr)
		}
		trips = append(trips, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating trip rows", err)
	}
	return trips, nil
}

// boundsCondition renders a box test on a lat/lng column pair starting at
// placeholder $argIdx. Boxes crossing the antimeridian test longitude with
// OR.
func boundsCondition(latCol, lngCol string, b types.Bounds, argIdx int) (string, []any, int) {
	lngOp := "AND"
	if b.West > b.East {
		lngOp = "OR"
	}
	cond := fmt.Sprintf("%s BETWEEN $%d AND $%d AND (%s >= $%d %s %s <= $%d)",
		latCol, argIdx, argIdx+1,
		lngCol, argIdx+2, lngOp, lngCol, argIdx+3,
	)
	return cond, []any{b.South, b.North, b.West, b.East}, argIdx + 4
}
