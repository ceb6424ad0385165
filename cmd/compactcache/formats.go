package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/eak1mov/go-compactcache/mb"
	"github.com/eak1mov/go-compactcache/tile"
	"github.com/eak1mov/go-compactcache/xyz"
	"github.com/go-git/go-billy/v5/osfs"
)

const xyzPattern = "{z}/{x}/{y}"

func deduceFormat(format, filePath string) string {
	if format == "" && strings.HasSuffix(filePath, ".mbtiles") {
		return "mbtiles"
	}
	if format == "" {
		return "xyz"
	}
	return format
}

// openSource opens a tile source. The returned closer must be called after use.
func openSource(format, inputPath, ext string) (tile.Source, io.Closer, error) {
	switch deduceFormat(format, inputPath) {
	case "mbtiles":
		reader, err := mb.NewReader(inputPath)
		return reader, reader, err
	case "xyz":
		reader, err := xyz.NewReader(osfs.New(inputPath), xyzPattern+ext)
		return reader, io.NopCloser(nil), err
	default:
		return nil, nil, fmt.Errorf("invalid input format: %q", format)
	}
}
