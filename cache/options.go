package cache

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/eak1mov/go-compactcache/bundle/spec"
	"github.com/eak1mov/go-compactcache/tile"
)

// Progress receives build progress. Implementations must be safe for concurrent use.
type Progress interface {
	// Planned is called once, before any bundle is written.
	Planned(bundles int)
	// Written is called after each bundle file has been stored.
	Written(key spec.Key, tiles int)
}

type noProgress struct{}

func (noProgress) Planned(int)           {}
func (noProgress) Written(spec.Key, int) {}

const MaxZoom = tile.MaxZoom

type config struct {
	Workers   int
	ZoomRange bool
	MinZoom   uint32
	MaxZoom   uint32
	Extents   map[uint32]tile.Range
	Retry     RetryConfig
	Logger    *slog.Logger
	Progress  Progress
}

type Option func(*config)

// WithWorkers sets the number of concurrent workers. The default is the number of CPUs.
func WithWorkers(workers int) Option {
	return func(c *config) { c.Workers = workers }
}

// WithZoomRange restricts the build to zoom levels minZoom..maxZoom inclusive.
// By default every zoom level of the source is built.
func WithZoomRange(minZoom, maxZoom uint32) Option {
	return func(c *config) {
		c.ZoomRange = true
		c.MinZoom = minZoom
		c.MaxZoom = maxZoom
	}
}

// WithExtents declares the tile extent of zoom levels instead of asking the source.
// Every bundle intersecting a declared extent is written, even if it holds no tiles.
func WithExtents(extents ...tile.Range) Option {
	return func(c *config) {
		for _, extent := range extents {
			c.Extents[extent.Z] = extent
		}
	}
}

func WithRetry(retry RetryConfig) Option {
	return func(c *config) { c.Retry = retry }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

func WithProgress(progress Progress) Option {
	return func(c *config) { c.Progress = progress }
}

func newConfig(opts []Option) (config, error) {
	c := config{
		Workers:  runtime.NumCPU(),
		Extents:  make(map[uint32]tile.Range),
		Retry:    DefaultRetryConfig,
		Logger:   slog.New(slog.DiscardHandler),
		Progress: noProgress{},
	}
	for _, opt := range opts {
		opt(&c)
	}

	if c.Workers < 1 {
		return c, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidOptions, c.Workers)
	}
	if c.ZoomRange && (c.MinZoom > c.MaxZoom || c.MaxZoom > MaxZoom) {
		return c, fmt.Errorf("%w: invalid zoom range %d..%d", ErrInvalidOptions, c.MinZoom, c.MaxZoom)
	}
	for _, extent := range c.Extents {
		if extent.Z > MaxZoom || extent.MinX > extent.MaxX || extent.MinY > extent.MaxY {
			return c, fmt.Errorf("%w: empty extent %v", ErrInvalidOptions, extent)
		}
	}
	if c.Retry.MaxAttempts < 1 {
		return c, fmt.Errorf("%w: retry attempts must be positive, got %d", ErrInvalidOptions, c.Retry.MaxAttempts)
	}
	if c.Logger == nil || c.Progress == nil {
		return c, fmt.Errorf("%w: nil logger or progress", ErrInvalidOptions)
	}
	return c, nil
}
