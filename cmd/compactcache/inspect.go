package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/eak1mov/go-compactcache/bundle"
	"github.com/eak1mov/go-compactcache/bundle/spec"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/subcommands"
)

type inspectCmd struct {
	inputPath  string
	row        int
	col        int
	outputPath string
	list       bool
}

func (c *inspectCmd) Name() string     { return "inspect" }
func (c *inspectCmd) Synopsis() string { return "print bundle header and extract tiles" }
func (c *inspectCmd) Usage() string {
	return "compactcache inspect -i <bundle> [-list] [-row r -col c -o <path>]\n"
}
func (c *inspectCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input bundle path")
	f.BoolVar(&c.list, "list", false, "List present tiles")
	f.IntVar(&c.row, "row", -1, "Tile row to extract, relative to the bundle")
	f.IntVar(&c.col, "col", -1, "Tile column to extract, relative to the bundle")
	f.StringVar(&c.outputPath, "o", "", "Output path of the extracted tile")
}

func printHeader(key spec.Key, keyErr error, r *bundle.Reader) {
	header := r.Header()
	if keyErr == nil {
		fmt.Printf("bundle:         %v (zoom %d, rows %d-%d, cols %d-%d)\n",
			key, key.Z, key.Row, key.Row+spec.BundleSize-1, key.Col, key.Col+spec.BundleSize-1)
	}
	fmt.Printf("version:        %d\n", header.Version)
	fmt.Printf("records:        %d\n", header.NumRecords)
	fmt.Printf("tiles:          %d\n", r.Count())
	fmt.Printf("max tile size:  %d\n", header.MaxRecordSize)
	fmt.Printf("file size:      %d\n", header.FileSize)
}

func (c *inspectCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.inputPath == "" {
		log.Print("-i is required")
		return subcommands.ExitUsageError
	}

	absPath, err := filepath.Abs(c.inputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	levelDir, name := filepath.Split(absPath)
	r, err := bundle.OpenReader(osfs.New(levelDir), name)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer r.Close()

	key, keyErr := spec.ParsePath(filepath.ToSlash(filepath.Join(filepath.Base(levelDir), name)))
	printHeader(key, keyErr, r)

	if c.list {
		err := r.VisitTiles(func(localRow, localCol int, tileData []byte) error {
			entry := r.Entry(localRow, localCol)
			fmt.Printf("row %3d col %3d offset %d length %d\n", localRow, localCol, entry.Offset, len(tileData))
			return nil
		})
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
	}

	if c.row < 0 && c.col < 0 {
		return subcommands.ExitSuccess
	}
	if !spec.ValidLocal(c.row, c.col) || c.outputPath == "" {
		log.Print("-row and -col must be within 0..127, -o is required")
		return subcommands.ExitUsageError
	}
	tileData, err := r.ReadTile(c.row, c.col)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if len(tileData) == 0 {
		log.Printf("no tile at row %d col %d", c.row, c.col)
		return subcommands.ExitFailure
	}
	if err := os.WriteFile(c.outputPath, tileData, 0644); err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
