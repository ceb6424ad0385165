package xyz

import (
	"cmp"
	"context"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/eak1mov/go-compactcache/tile"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Reader is a tile.Source over tiles in XYZ format.
// Directories and files whose names are not tile coordinates are ignored.
type Reader struct {
	fs     billy.Filesystem
	suffix string
}

// NewReader creates a Reader for tiles below the root of fs,
// at paths given by pattern (e.g. "{z}/{x}/{y}.png").
func NewReader(fs billy.Filesystem, pattern string) (*Reader, error) {
	suffix, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}
	return &Reader{fs: fs, suffix: suffix}, nil
}

func (r *Reader) ReadTile(tileID tile.ID) ([]byte, error) {
	tileData, err := util.ReadFile(r.fs, tilePath(tileID, r.suffix))
	if os.IsNotExist(err) {
		return make([]byte, 0), nil
	}
	if err != nil {
		return nil, err
	}
	return tileData, nil
}

type entry struct {
	value uint32
	size  int64
}

// list returns the numbered entries of dir in ascending order.
func (r *Reader) list(dir string, dirs bool, suffix string) ([]entry, error) {
	infos, err := r.fs.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() != dirs {
			continue
		}
		name, ok := strings.CutSuffix(info.Name(), suffix)
		if !ok {
			continue
		}
		if value, ok := parseNumber(name); ok {
			entries = append(entries, entry{value: value, size: info.Size()})
		}
	}
	slices.SortFunc(entries, func(a, b entry) int {
		return cmp.Compare(a.value, b.value)
	})
	return entries, nil
}

func levelDir(z uint32) string {
	return strconv.FormatUint(uint64(z), 10)
}

func columnDir(z, x uint32) string {
	return path.Join(levelDir(z), strconv.FormatUint(uint64(x), 10))
}

// VisitRange implements tile.RangeVisitor. Tiles are visited by ascending column, then row.
func (r *Reader) VisitRange(ctx context.Context, tileRange tile.Range, visitor func(tile.ID, []byte) error) error {
	columns, err := r.list(levelDir(tileRange.Z), true, "")
	if err != nil {
		return err
	}

	for _, column := range columns {
		if column.value < tileRange.MinX || column.value > tileRange.MaxX {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rows, err := r.list(columnDir(tileRange.Z, column.value), false, r.suffix)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.value < tileRange.MinY || row.value > tileRange.MaxY || row.size == 0 {
				continue
			}
			tileID := tile.ID{X: column.value, Y: row.value, Z: tileRange.Z}
			tileData, err := util.ReadFile(r.fs, tilePath(tileID, r.suffix))
			if err != nil {
				return err
			}
			if len(tileData) == 0 {
				continue
			}
			if err := visitor(tileID, tileData); err != nil {
				return err
			}
		}
	}
	return nil
}

// Extent implements tile.Extenter. It lists the level without reading tile data.
// Names outside the tile grid of z are ignored.
func (r *Reader) Extent(ctx context.Context, z uint32) (tile.Range, bool, error) {
	if z > tile.MaxZoom {
		return tile.Range{}, false, nil
	}
	last := tile.FullRange(z).MaxX
	columns, err := r.list(levelDir(z), true, "")
	if err != nil {
		return tile.Range{}, false, err
	}

	var extent tile.Range
	found := false
	for _, column := range columns {
		if column.value > last {
			continue
		}
		if err := ctx.Err(); err != nil {
			return tile.Range{}, false, err
		}
		rows, err := r.list(columnDir(z, column.value), false, r.suffix)
		if err != nil {
			return tile.Range{}, false, err
		}
		for _, row := range rows {
			if row.size == 0 || row.value > last {
				continue
			}
			cell := tile.Range{Z: z, MinX: column.value, MinY: row.value, MaxX: column.value, MaxY: row.value}
			if found {
				extent = extent.Union(cell)
			} else {
				extent, found = cell, true
			}
		}
	}
	return extent, found, nil
}

// ZoomLevels implements tile.Extenter. Levels are reported by directory;
// a level directory holding no tiles has no Extent.
func (r *Reader) ZoomLevels(_ context.Context) ([]uint32, error) {
	levels, err := r.list("/", true, "")
	if err != nil {
		return nil, err
	}
	result := make([]uint32, 0, len(levels))
	for _, level := range levels {
		if level.value <= tile.MaxZoom {
			result = append(result, level.value)
		}
	}
	return result, nil
}
