// Package cache builds an Esri Compact Cache V2 tile cache from a tile source.
//
// The tile space of every zoom level is split into bundle-aligned partitions
// (see package partition) which a fixed pool of workers processes
// independently. A bundle belongs to exactly one partition, so every bundle
// file has a single writer and no locking is needed on the output.
package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/eak1mov/go-compactcache/bundle"
	"github.com/eak1mov/go-compactcache/partition"
	"github.com/eak1mov/go-compactcache/tile"
	"github.com/go-git/go-billy/v5"
	"golang.org/x/sync/errgroup"
)

// Build writes the bundles of every selected zoom level of source into fs,
// whose root is the cache layer directory (the one holding the L00, L01, ...
// level directories). Workers write to fs concurrently, so it must be safe for
// concurrent use (osfs is; memfs is not).
//
// The returned Summary covers the bundles written, also when the build fails.
// On failure the error joins the errors of all failed workers; bundles written
// before the failure are complete, and no partially written bundle is left.
func Build(ctx context.Context, source tile.Source, fs billy.Filesystem, opts ...Option) (Summary, error) {
	summary := newSummary()

	config, err := newConfig(opts)
	if err != nil {
		return summary, err
	}
	logger := config.Logger

	extents, err := planExtents(ctx, source, config)
	if err != nil {
		return summary, err
	}
	partitions, err := partition.Plan(extents, config.Workers)
	if err != nil {
		return summary, err
	}

	planned := 0
	for _, p := range partitions {
		planned += len(p.Keys())
	}
	for _, extent := range extents {
		summary.Levels[extent.Z] = LevelSummary{}
	}
	logger.Info("compactcache: build started",
		"levels", len(extents), "partitions", len(partitions), "bundles", planned, "workers", config.Workers)
	config.Progress.Planned(planned)

	writer := bundle.NewWriter(fs, bundle.WithLogger(logger))
	workers := make([]*worker, config.Workers)
	errs := make([]error, config.Workers)

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan partition.Partition)
	g.Go(func() error {
		defer close(queue)
		for _, p := range partitions {
			select {
			case queue <- p:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	for i := range workers {
		workers[i] = &worker{
			id:       i,
			source:   source,
			writer:   writer,
			retry:    config.Retry,
			logger:   logger,
			progress: config.Progress,
			summary:  newSummary(),
		}
		g.Go(func() error {
			errs[i] = workers[i].run(gctx, queue)
			return errs[i]
		})
	}
	g.Wait()

	for _, w := range workers {
		summary.merge(w.summary)
	}
	for _, z := range summary.ZoomLevels() {
		level := summary.Levels[z]
		logger.Info("compactcache: level done",
			"zoom", z, "bundles", level.Bundles, "empty", level.EmptyBundles, "tiles", level.Tiles, "bytes", level.Bytes)
	}

	if err := joinErrors(ctx, errs); err != nil {
		logger.Error("compactcache: build failed", "error", err)
		return summary, err
	}
	logger.Info("compactcache: build done", "bundles", summary.Bundles(), "tiles", summary.Tiles())
	return summary, nil
}

// joinErrors combines worker errors, leaving out the cancellations caused by
// another worker's failure.
func joinErrors(ctx context.Context, errs []error) error {
	failures := make([]error, 0)
	if err := ctx.Err(); err != nil {
		failures = append(failures, err)
	}
	for _, err := range errs {
		if err == nil || errors.Is(err, context.Canceled) || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
			continue
		}
		failures = append(failures, err)
	}
	return errors.Join(failures...)
}

// planExtents resolves the tile extent of every zoom level to build.
func planExtents(ctx context.Context, source tile.Source, config config) ([]tile.Range, error) {
	var levels []uint32
	switch {
	case config.ZoomRange:
		for z := config.MinZoom; z <= config.MaxZoom; z++ {
			levels = append(levels, z)
		}
	case len(config.Extents) > 0:
		for z := range config.Extents {
			levels = append(levels, z)
		}
		slices.Sort(levels)
	default:
		err := config.Retry.do(ctx, config.Logger, "zoom levels", func() error {
			var err error
			levels, err = source.ZoomLevels(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: zoom levels: %w", ErrSourceRead, err)
		}
	}

	extents := make([]tile.Range, 0, len(levels))
	for _, z := range levels {
		if extent, ok := config.Extents[z]; ok {
			extents = append(extents, extent)
			continue
		}

		var extent tile.Range
		var found bool
		err := config.Retry.do(ctx, config.Logger, "extent", func() error {
			var err error
			extent, found, err = source.Extent(ctx, z)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: extent of zoom level %d: %w", ErrSourceRead, z, err)
		}
		if !found {
			config.Logger.Debug("compactcache: zoom level has no tiles", "zoom", z)
			continue
		}
		extents = append(extents, extent)
	}
	return extents, nil
}
