// Package handlers contains the HTTP handlers of the reporting surface. Each
// handler depends on a narrow, locally defined service interface so it can
// be tested with simple mocks.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"fleetgeo/internal/types"
)

// queryFloat parses a required float query parameter.
func queryFloat(r *http.Request, name string, code types.ErrorCode) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			name+" query parameter is required", nil, map[string]any{"param": name})
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, types.NewAppErrorWithDetails(code, name+" must be a valid number", err,
			map[string]any{"param": name, "value": raw})
	}
	return v, nil
}

// queryInt parses an optional integer query parameter, returning def when
// it is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidRequest,
			name+" must be an integer", err, map[string]any{"param": name, "value": raw})
	}
	return v, nil
}

// queryTime parses an optional RFC3339 query parameter. Absent values are
// the zero time.
func queryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidRequest,
			name+" must be a valid RFC3339 timestamp", err, map[string]any{"param": name, "value": raw})
	}
	return t.UTC(), nil
}

// queryTimeRange parses from/to and rejects inverted ranges.
func queryTimeRange(r *http.Request) (from, to time.Time, err error) {
	if from, err = queryTime(r, "from"); err != nil {
		return
	}
	if to, err = queryTime(r, "to"); err != nil {
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		err = types.NewAppError(types.ErrCodeValidationTimeInterval, "to must not be before from", nil)
	}
	return
}

// queryBounds parses north, south, east and west. When optional is true and
// all four are absent, it returns nil.
func queryBounds(r *http.Request, optional bool) (*types.Bounds, error) {
	q := r.URL.Query()
	if optional && q.Get("north") == "" && q.Get("south") == "" && q.Get("east") == "" && q.Get("west") == "" {
		return nil, nil
	}

	var b types.Bounds
	var err error
	if b.North, err = queryFloat(r, "north", types.ErrCodeValidationInvalidLat); err != nil {
		return nil, err
	}
	if b.South, err = queryFloat(r, "south", types.ErrCodeValidationInvalidLat); err != nil {
		return nil, err
	}
	if b.East, err = queryFloat(r, "east", types.ErrCodeValidationInvalidLng); err != nil {
		return nil, err
	}
	if b.West, err = queryFloat(r, "west", types.ErrCodeValidationInvalidLng); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
