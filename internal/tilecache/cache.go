package tilecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"fleetgeo/internal/types"
)

// TileSource fetches a tile from the remote provider.
type TileSource interface {
	FetchTile(ctx context.Context, coord types.TileCoordinate) ([]byte, error)
}

// Config configures a Cache. A MaxZoom of 0 restricts the cache to the
// single global tile; values above 22 or below 0 are clamped to 22.
type Config struct {
	Root           string
	MaxZoom        int
	Concurrency    int
	MaxRegionTiles int
}

// FetchResult is the outcome of a single tile lookup.
type FetchResult struct {
	Coord  types.TileCoordinate `json:"coord"`
	Data   []byte               `json:"-"`
	Cached bool                 `json:"cached"`
	Path   string               `json:"path"`
}

// Cache is a read-through tile cache on the local filesystem. It is safe
// for concurrent use; concurrent misses for the same coordinate share one
// upstream fetch and one write.
type Cache struct {
	root    string
	cfg     Config
	source  TileSource
	metrics Metrics
	clock   types.Clock
	logger  *slog.Logger

	flight singleflight.Group
}

// NewCache creates the cache root if needed. metrics may be nil.
func NewCache(cfg Config, source TileSource, metrics Metrics, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if cfg.MaxZoom < 0 || cfg.MaxZoom > types.MaxTileZoom {
		cfg.MaxZoom = types.MaxTileZoom
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create tile cache root %q: %w", cfg.Root, err)
	}
	return &Cache{
		root:    cfg.Root,
		cfg:     cfg,
		source:  source,
		metrics: metrics,
		clock:   types.RealClock{},
		logger:  logger,
	}, nil
}

// MaxZoom returns the deepest zoom level the cache accepts.
func (c *Cache) MaxZoom() int { return c.cfg.MaxZoom }

// TilePath returns the on-disk location of coord.
func (c *Cache) TilePath(coord types.TileCoordinate) string {
	return filepath.Join(c.root, filepath.FromSlash(coord.Path()))
}

// FetchTile returns the cached tile when present and otherwise downloads
// and stores it. Cached reports whether the data came from disk.
func (c *Cache) FetchTile(ctx context.Context, coord types.TileCoordinate) (*FetchResult, error) {
	if err := ValidateCoordinate(coord, c.cfg.MaxZoom); err != nil {
		return nil, err
	}

	path := c.TilePath(coord)
	data, ok, err := readTile(path)
	if err != nil {
		return nil, err
	}
	if ok {
		return &FetchResult{Coord: coord, Data: data, Cached: true, Path: path}, nil
	}

	v, err, _ := c.flight.Do(coord.String(), func() (any, error) {
		// A concurrent caller may have finished the write before this one
		// entered the group.
		if data, ok, err := readTile(path); err != nil {
			return nil, err
		} else if ok {
			return flightResult{data: data, cached: true}, nil
		}
		data, err := c.source.FetchTile(ctx, coord)
		if err != nil {
			return nil, err
		}
		if err := writeAtomic(path, data); err != nil {
			return nil, err
		}
		return flightResult{data: data}, nil
	})
	if err != nil {
		return nil, err
	}
	res := v.(flightResult)
	return &FetchResult{Coord: coord, Data: res.data, Cached: res.cached, Path: path}, nil
}

type flightResult struct {
	data   []byte
	cached bool
}

// Has reports whether coord is on disk.
func (c *Cache) Has(coord types.TileCoordinate) bool {
	_, err := os.Stat(c.TilePath(coord))
	return err == nil
}

func readTile(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	return nil, false, types.NewAppErrorWithDetails(types.ErrCodeInternalCacheIO,
		"failed to read cached tile", err, map[string]any{"path": path})
}

// writeAtomic writes data next to path and renames it into place so that
// readers never observe a partial tile.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cacheIOError("failed to create tile directory", err, path)
	}

	tmp, err := os.CreateTemp(dir, ".tile-*.tmp")
	if err != nil {
		return cacheIOError("failed to create temp tile", err, path)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return cacheIOError("failed to write temp tile", err, path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return cacheIOError("failed to close temp tile", err, path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return cacheIOError("failed to move tile into place", err, path)
	}
	return nil
}

func cacheIOError(msg string, err error, path string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeInternalCacheIO, msg, err, map[string]any{"path": path})
}
