package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleetgeo/internal/types"
)

// DirectionsClientConfig configures a DirectionsClient.
type DirectionsClientConfig struct {
	BaseURL   string
	APIKey    types.SecretString
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// DirectionsClient calls a Google Directions compatible JSON endpoint.
type DirectionsClient struct {
	base    *BaseClient
	baseURL string
	apiKey  types.SecretString
	logger  *slog.Logger
}

// Wire format of the directions response. Only the fields the scorer needs
// are decoded.
type directionsResponse struct {
	Status       string           `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Routes       []directionRoute `json:"routes"`
}

type directionRoute struct {
	Summary          string         `json:"summary"`
	Legs             []directionLeg `json:"legs"`
	OverviewPolyline struct {
		Points string `json:"points"`
	} `json:"overview_polyline"`
}

type directionLeg struct {
	Distance valueField      `json:"distance"`
	Duration valueField      `json:"duration"`
	Steps    []directionStep `json:"steps"`
}

type directionStep struct {
	HTMLInstructions string     `json:"html_instructions"`
	Distance         valueField `json:"distance"`
	Duration         valueField `json:"duration"`
}

type valueField struct {
	Value float64 `json:"value"`
	Text  string  `json:"text,omitempty"`
}

// Directions status values that are not failures.
const (
	directionsStatusOK          = "OK"
	directionsStatusZeroResults = "ZERO_RESULTS"
)

// NewDirectionsClient creates a DirectionsClient with its own breaker.
func NewDirectionsClient(cfg DirectionsClientConfig, opts ...BaseClientOption) *DirectionsClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := NewBaseClient(
		NewHTTPClient(timeout),
		"directions",
		RetryPolicy{MaxRetries: 2, MinWait: 500 * time.Millisecond, MaxWait: 5 * time.Second},
		cfg.UserAgent,
		opts...,
	)
	return NewDirectionsClientWithBase(base, cfg)
}

// NewDirectionsClientWithBase creates a DirectionsClient over a
// pre-configured BaseClient.
func NewDirectionsClientWithBase(base *BaseClient, cfg DirectionsClientConfig) *DirectionsClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectionsClient{
		base:    base,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// Routes requests candidate routes. Leg distances and durations are summed
// per route and steps are flattened across legs. A provider status other
// than OK or ZERO_RESULTS is returned as upstream_directions_unavailable
// with the status in the error details.
func (c *DirectionsClient) Routes(ctx context.Context, in types.DirectionsRequest) ([]types.RouteSummary, error) {
	q := url.Values{}
	q.Set("origin", in.Origin.String())
	q.Set("destination", in.Destination.String())
	if len(in.Waypoints) > 0 {
		wps := make([]string, len(in.Waypoints))
		for i, wp := range in.Waypoints {
			wps[i] = wp.String()
		}
		q.Set("waypoints", strings.Join(wps, "|"))
	}
	q.Set("alternatives", fmt.Sprintf("%t", in.Alternatives))
	if !c.apiKey.IsEmpty() {
		q.Set("key", c.apiKey.Unmask())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create directions request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, directionsUnavailable("directions request failed", err, map[string]any{})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "directions provider error",
			"status_code", resp.StatusCode,
			"response_body", string(body),
		)
		return nil, directionsUnavailable(fmt.Sprintf("directions provider returned %d", resp.StatusCode), nil,
			map[string]any{"status_code": resp.StatusCode})
	}

	var payload directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, directionsUnavailable("failed to decode directions response", err, map[string]any{})
	}

	switch payload.Status {
	case directionsStatusOK:
	case directionsStatusZeroResults:
		return []types.RouteSummary{}, nil
	default:
		c.logger.ErrorContext(ctx, "directions provider rejected request",
			"provider_status", payload.Status,
			"error_message", payload.ErrorMessage,
		)
		return nil, directionsUnavailable("directions provider returned "+payload.Status, nil,
			map[string]any{"provider_status": payload.Status, "provider_message": payload.ErrorMessage})
	}

	routes := make([]types.RouteSummary, 0, len(payload.Routes))
	for _, r := range payload.Routes {
		rs := types.RouteSummary{Summary: r.Summary, Polyline: r.OverviewPolyline.Points}
		for _, leg := range r.Legs {
			rs.DistanceMeters += leg.Distance.Value
			rs.DurationSeconds += leg.Duration.Value
			for _, s := range leg.Steps {
				rs.Steps = append(rs.Steps, types.RouteStep{
					Instruction:     s.HTMLInstructions,
					DistanceMeters:  s.Distance.Value,
					DurationSeconds: s.Duration.Value,
				})
			}
		}
		routes = append(routes, rs)
	}
	return routes, nil
}

func directionsUnavailable(msg string, cause error, details map[string]any) *types.AppError {
	var appErr *types.AppError
	if errors.As(cause, &appErr) {
		details["upstream_code"] = string(appErr.Code)
	}
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamDirections, msg, cause, details)
}
