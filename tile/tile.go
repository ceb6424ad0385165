// Package tile provides common tile interfaces and types.
package tile

import (
	"context"
	"fmt"
)

// MaxZoom is the deepest zoom level an ID can address.
const MaxZoom = 31

// ID represents tile coordinates in the XYZ scheme (Tiled web map).
// X is the tile column and Y is the tile row, counted from the top.
type ID struct {
	X uint32
	Y uint32
	Z uint32
}

func (t ID) Valid() bool {
	return t.Z <= MaxZoom && t.X < (1<<t.Z) && t.Y < (1<<t.Z)
}

func (t ID) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Range is an inclusive window of rows and columns at a single zoom level.
type Range struct {
	Z    uint32
	MinX uint32
	MinY uint32
	MaxX uint32
	MaxY uint32
}

// FullRange returns the range covering every tile of zoom level z.
func FullRange(z uint32) Range {
	last := uint32(1<<z - 1)
	return Range{Z: z, MaxX: last, MaxY: last}
}

func (r Range) Contains(tileID ID) bool {
	return tileID.Z == r.Z &&
		tileID.X >= r.MinX && tileID.X <= r.MaxX &&
		tileID.Y >= r.MinY && tileID.Y <= r.MaxY
}

// Intersect returns the common part of r and o and whether it is non-empty.
func (r Range) Intersect(o Range) (Range, bool) {
	if r.Z != o.Z {
		return Range{}, false
	}
	result := Range{
		Z:    r.Z,
		MinX: max(r.MinX, o.MinX),
		MinY: max(r.MinY, o.MinY),
		MaxX: min(r.MaxX, o.MaxX),
		MaxY: min(r.MaxY, o.MaxY),
	}
	if result.MinX > result.MaxX || result.MinY > result.MaxY {
		return Range{}, false
	}
	return result, true
}

// Union returns the smallest range covering both r and o. Both must share a zoom level.
func (r Range) Union(o Range) Range {
	return Range{
		Z:    r.Z,
		MinX: min(r.MinX, o.MinX),
		MinY: min(r.MinY, o.MinY),
		MaxX: max(r.MaxX, o.MaxX),
		MaxY: max(r.MaxY, o.MaxY),
	}
}

func (r Range) String() string {
	return fmt.Sprintf("z%d x[%d..%d] y[%d..%d]", r.Z, r.MinX, r.MaxX, r.MinY, r.MaxY)
}

// Writer defines an interface for writing tiles to a tileset.
type Writer interface {
	// WriteTile writes a single tile to the tileset.
	WriteTile(tileID ID, tileData []byte) error

	// Finalize completes the writing process: flushes buffers, writes header and indices.
	// It must be called before closing the Writer.
	Finalize() error
}

type Reader interface {
	// ReadTile reads a single tile from the tileset.
	// It returns the tile data or an error if the tile cannot be read.
	// If the tile does not exist, it returns an empty slice with no error.
	ReadTile(tileID ID) ([]byte, error)
}

type RangeVisitor interface {
	// VisitRange calls the visitor for every non-empty tile inside r.
	// Tiles are visited in non-decreasing column (X) order; the order of rows
	// within one column is implementation-defined.
	// Each call is an independent query, safe to run concurrently with other calls.
	VisitRange(ctx context.Context, r Range, visitor func(ID, []byte) error) error
}

type Extenter interface {
	// Extent returns the smallest range covering all tiles stored at zoom level z.
	// It reports false if the zoom level holds no tiles.
	Extent(ctx context.Context, z uint32) (Range, bool, error)

	// ZoomLevels returns the zoom levels holding at least one tile, in ascending order.
	ZoomLevels(ctx context.Context) ([]uint32, error)
}

// Source is a range-queryable tileset that a tile cache can be built from.
type Source interface {
	RangeVisitor
	Extenter
}
