package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eak1mov/go-compactcache/cache"
	"github.com/eak1mov/go-compactcache/mb"
	"github.com/eak1mov/go-compactcache/tile"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/subcommands"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

type buildCmd struct {
	inputFormat string
	inputPath   string
	inputExt    string
	outputPath  string
	service     string
	minZoom     int
	maxZoom     int
	workers     int
	retries     int
	bounds      string
	verbose     bool
}

func (c *buildCmd) Name() string     { return "build" }
func (c *buildCmd) Synopsis() string { return "build compact cache bundles from a tileset" }
func (c *buildCmd) Usage() string {
	return "compactcache build -i <path> -o <dir> [-if <format>] [-service <name>] [-minzoom n] [-maxzoom n] [-bounds minLon,minLat,maxLon,maxLat]\n"
}
func (c *buildCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input path")
	f.StringVar(&c.inputFormat, "if", "", "Input format (mbtiles, xyz)")
	f.StringVar(&c.inputExt, "ext", ".png", "Tile file extension of xyz input")
	f.StringVar(&c.outputPath, "o", "", "Output cache directory")
	f.StringVar(&c.service, "service", "", "Store the cache as <o>/<service>/Layers/_alllayers")
	f.IntVar(&c.minZoom, "minzoom", -1, "Lowest zoom level to build")
	f.IntVar(&c.maxZoom, "maxzoom", -1, "Highest zoom level to build")
	f.IntVar(&c.workers, "workers", 0, "Number of workers (default: number of CPUs)")
	f.IntVar(&c.retries, "retries", cache.DefaultRetryConfig.MaxAttempts, "Attempts per source read")
	f.StringVar(&c.bounds, "bounds", "", "Build only tiles intersecting minLon,minLat,maxLon,maxLat")
	f.BoolVar(&c.verbose, "v", false, "Verbose logging")
}

func (c *buildCmd) layerPath() string {
	if c.service == "" {
		return c.outputPath
	}
	return filepath.Join(c.outputPath, c.service, "Layers", "_alllayers")
}

// zoomRange resolves -minzoom and -maxzoom against the zoom levels of the source.
func (c *buildCmd) zoomRange(ctx context.Context, source tile.Source) (uint32, uint32, error) {
	minZoom, maxZoom := c.minZoom, c.maxZoom
	if minZoom < 0 || maxZoom < 0 {
		levels, err := source.ZoomLevels(ctx)
		if err != nil {
			return 0, 0, err
		}
		if len(levels) == 0 {
			return 0, 0, fmt.Errorf("input has no tiles")
		}
		if minZoom < 0 {
			minZoom = int(levels[0])
		}
		if maxZoom < 0 {
			maxZoom = int(levels[len(levels)-1])
		}
	}
	if minZoom > maxZoom || maxZoom > tile.MaxZoom {
		return 0, 0, fmt.Errorf("invalid zoom range %d..%d", minZoom, maxZoom)
	}
	return uint32(minZoom), uint32(maxZoom), nil
}

// boundsExtents returns the tile extent of bound at every zoom level of minZoom..maxZoom.
func boundsExtents(bound orb.Bound, minZoom, maxZoom uint32) []tile.Range {
	extents := make([]tile.Range, 0, maxZoom-minZoom+1)
	for z := minZoom; z <= maxZoom; z++ {
		topLeft := maptile.At(bound.LeftTop(), maptile.Zoom(z))
		bottomRight := maptile.At(bound.RightBottom(), maptile.Zoom(z))
		last := uint32(1<<z - 1)
		extents = append(extents, tile.Range{
			Z:    z,
			MinX: min(topLeft.X, last),
			MinY: min(topLeft.Y, last),
			MaxX: min(bottomRight.X, last),
			MaxY: min(bottomRight.Y, last),
		})
	}
	return extents
}

func parseBounds(value string) (orb.Bound, error) {
	var minLon, minLat, maxLon, maxLat float64
	if _, err := fmt.Sscanf(value, "%f,%f,%f,%f", &minLon, &minLat, &maxLon, &maxLat); err != nil {
		return orb.Bound{}, fmt.Errorf("invalid bounds %q: %w", value, err)
	}
	if minLon > maxLon || minLat > maxLat {
		return orb.Bound{}, fmt.Errorf("invalid bounds %q: min exceeds max", value)
	}
	return orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *buildCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.inputPath == "" || c.outputPath == "" {
		log.Print("both -i and -o are required")
		return subcommands.ExitUsageError
	}
	logger := newLogger(c.verbose)

	source, closer, err := openSource(c.inputFormat, c.inputPath, c.inputExt)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer closer.Close()

	if reader, ok := source.(*mb.Reader); ok {
		metadata, err := reader.ReadMetadata()
		if err != nil {
			log.Println("failed to read metadata:", err)
			return subcommands.ExitFailure
		}
		logger.Info("compactcache: input metadata",
			"name", metadata["name"], "format", metadata["format"], "bounds", metadata["bounds"])
	}

	minZoom, maxZoom, err := c.zoomRange(ctx, source)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	retry := cache.DefaultRetryConfig
	retry.MaxAttempts = c.retries
	opts := []cache.Option{
		cache.WithZoomRange(minZoom, maxZoom),
		cache.WithRetry(retry),
		cache.WithLogger(logger),
	}
	if c.workers > 0 {
		opts = append(opts, cache.WithWorkers(c.workers))
	}
	if c.bounds != "" {
		bound, err := parseBounds(c.bounds)
		if err != nil {
			log.Println(err)
			return subcommands.ExitUsageError
		}
		opts = append(opts, cache.WithExtents(boundsExtents(bound, minZoom, maxZoom)...))
	}

	layerPath := c.layerPath()
	if err := os.MkdirAll(layerPath, 0755); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	progress := newBarProgress()
	opts = append(opts, cache.WithProgress(progress))
	summary, err := cache.Build(ctx, source, osfs.New(layerPath), opts...)
	progress.Finish()
	fmt.Println()

	for _, z := range summary.ZoomLevels() {
		level := summary.Levels[z]
		fmt.Printf("L%02d: %d bundles (%d empty), %d tiles, %d bytes\n",
			z, level.Bundles, level.EmptyBundles, level.Tiles, level.Bytes)
	}
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
