package tilecache

import (
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"fleetgeo/internal/types"
)

// ZoomStats summarises the cached tiles at one zoom level.
type ZoomStats struct {
	Tiles int   `json:"tiles"`
	Bytes int64 `json:"bytes"`
}

// Stats summarises the whole cache.
type Stats struct {
	Tiles  int               `json:"tiles"`
	Bytes  int64             `json:"bytes"`
	ByZoom map[int]ZoomStats `json:"by_zoom"`
}

// Stats walks the cache root. Temp files from in-progress writes and
// anything not laid out as {zoom}/{x}/{y}.png are ignored.
func (c *Cache) Stats() (Stats, error) {
	out := Stats{ByZoom: make(map[int]ZoomStats)}
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".png") || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 3 {
			return nil
		}
		zoom, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		zs := out.ByZoom[zoom]
		zs.Tiles++
		zs.Bytes += info.Size()
		out.ByZoom[zoom] = zs
		out.Tiles++
		out.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return Stats{}, types.NewAppError(types.ErrCodeInternalCacheIO, "failed to walk tile cache", err)
	}
	return out, nil
}
