package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"

	"github.com/eak1mov/go-compactcache/bundle"
	"github.com/eak1mov/go-compactcache/bundle/spec"
	"github.com/eak1mov/go-compactcache/mb"
	"github.com/eak1mov/go-compactcache/tile"
	"github.com/eak1mov/go-compactcache/xyz"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type exportCmd struct {
	inputPath    string
	outputFormat string
	outputPath   string
	outputExt    string
}

func (c *exportCmd) Name() string     { return "export" }
func (c *exportCmd) Synopsis() string { return "export the tiles of a compact cache into a tileset" }
func (c *exportCmd) Usage() string {
	return "compactcache export -i <cache dir> -o <path> [-of <format>]\n"
}
func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input cache directory (holding the L?? level directories)")
	f.StringVar(&c.outputPath, "o", "", "Output path")
	f.StringVar(&c.outputFormat, "of", "", "Output format (mbtiles, xyz)")
	f.StringVar(&c.outputExt, "ext", ".png", "Tile file extension of xyz output")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.inputPath == "" || c.outputPath == "" {
		log.Print("both -i and -o are required")
		return subcommands.ExitUsageError
	}

	var err error
	var writer tile.Writer
	switch deduceFormat(c.outputFormat, c.outputPath) {
	case "mbtiles":
		writer, err = mb.NewWriter(c.outputPath, mb.WithLogger(newLogger(false)))
	case "xyz":
		writer, err = xyz.NewWriter(osfs.New(c.outputPath), xyzPattern+c.outputExt)
	default:
		log.Printf("invalid output format: %q", c.outputFormat)
		return subcommands.ExitFailure
	}
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if closer, ok := writer.(io.Closer); ok {
		defer closer.Close()
	}

	bar := progressbar.NewOptions(-1, progressbar.OptionShowIts(), progressbar.OptionShowCount())
	err = bundle.WalkCache(osfs.New(c.inputPath), func(key spec.Key, r *bundle.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return r.VisitTiles(func(localRow, localCol int, tileData []byte) error {
			bar.Add(1)
			return writer.WriteTile(key.TileID(localRow, localCol), tileData)
		})
	})
	bar.Finish()
	fmt.Println()

	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if err := writer.Finalize(); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
