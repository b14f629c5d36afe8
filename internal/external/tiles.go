package external

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fleetgeo/internal/types"
)

// maxTileBytes bounds a single tile response.
const maxTileBytes = 4 << 20

// TileClientConfig configures a TileClient.
type TileClientConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// TileClient fetches raster tiles from an XYZ tile server laid out as
// {base}/{zoom}/{x}/{y}.png.
type TileClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewTileClient creates a TileClient with its own "tiles" circuit breaker.
func NewTileClient(cfg TileClientConfig, opts ...BaseClientOption) *TileClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := NewBaseClient(
		NewHTTPClient(timeout),
		"tiles",
		RetryPolicy{MaxRetries: 2, MinWait: 250 * time.Millisecond, MaxWait: 5 * time.Second},
		cfg.UserAgent,
		opts...,
	)
	return NewTileClientWithBase(base, cfg)
}

// NewTileClientWithBase creates a TileClient over a pre-configured BaseClient.
func NewTileClientWithBase(base *BaseClient, cfg TileClientConfig) *TileClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TileClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// TileURL returns the provider URL for coord.
func (c *TileClient) TileURL(coord types.TileCoordinate) string {
	return fmt.Sprintf("%s/%d/%d/%d.png", c.baseURL, coord.Zoom, coord.X, coord.Y)
}

// FetchTile downloads one tile. Any non-2xx response or transport failure
// is reported as upstream_tile_unavailable.
func (c *TileClient) FetchTile(ctx context.Context, coord types.TileCoordinate) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.TileURL(coord), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create tile request", err)
	}
	req.Header.Set("Accept", "image/png,image/*")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, tileUnavailable(coord, "tile request failed", err, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "tile provider returned non-2xx",
			"tile", coord.String(),
			"status_code", resp.StatusCode,
		)
		return nil, tileUnavailable(coord, fmt.Sprintf("tile provider returned %d", resp.StatusCode), nil, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes+1))
	if err != nil {
		return nil, tileUnavailable(coord, "failed to read tile body", err, resp.StatusCode)
	}
	if len(data) > maxTileBytes {
		return nil, tileUnavailable(coord, "tile exceeds size limit", nil, resp.StatusCode)
	}
	if len(data) == 0 {
		return nil, tileUnavailable(coord, "tile provider returned an empty body", nil, resp.StatusCode)
	}
	return data, nil
}

func tileUnavailable(coord types.TileCoordinate, msg string, cause error, status int) *types.AppError {
	details := map[string]any{"tile": coord.String()}
	if status != 0 {
		details["status_code"] = status
	}
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamTileUnavailable, msg, cause, details)
}
