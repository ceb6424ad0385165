package xyz

import (
	"path"

	"github.com/eak1mov/go-compactcache/tile"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Writer implements tile.Writer for tiles in XYZ format.
type Writer struct {
	fs     billy.Filesystem
	suffix string
}

// NewWriter creates a Writer storing tiles below the root of fs,
// at paths given by pattern (e.g. "{z}/{x}/{y}.png").
func NewWriter(fs billy.Filesystem, pattern string) (*Writer, error) {
	suffix, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}
	return &Writer{fs: fs, suffix: suffix}, nil
}

func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	filePath := tilePath(tileID, w.suffix)
	if err := w.fs.MkdirAll(path.Dir(filePath), 0755); err != nil {
		return err
	}
	return util.WriteFile(w.fs, filePath, tileData, 0644)
}

func (w *Writer) Finalize() error {
	return nil
}
