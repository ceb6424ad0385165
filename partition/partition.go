// Package partition splits the tile space of a cache build into
// bundle-aligned pieces of work.
//
// A Partition spans exactly one bundle row and a contiguous run of bundle
// columns. Sources stream tiles in column order, so a worker reading a
// partition sees every tile of one bundle before any tile of the next, and
// no two partitions share a bundle.
package partition

import (
	"cmp"
	"math/bits"
	"slices"

	"github.com/eak1mov/go-compactcache/bundle/spec"
	"github.com/eak1mov/go-compactcache/tile"
	"github.com/google/hilbert"
)

// PartitionsPerWorker is the number of partitions planned per worker,
// so that workers finishing early can pick up more work.
const PartitionsPerWorker = 4

// Partition is a bundle-aligned window of one zoom level.
// Its bounds fall on the bundle grid except where clipped by the planned extent.
type Partition struct {
	Range tile.Range
}

func (p Partition) Z() uint32 {
	return p.Range.Z
}

// Keys returns the bundles covered by the partition in column order.
func (p Partition) Keys() []spec.Key {
	first, _, _ := spec.ToKey(tile.ID{X: p.Range.MinX, Y: p.Range.MinY, Z: p.Range.Z})
	last, _, _ := spec.ToKey(tile.ID{X: p.Range.MaxX, Y: p.Range.MinY, Z: p.Range.Z})
	keys := make([]spec.Key, 0, (last.Col-first.Col)/spec.BundleSize+1)
	for col := uint64(first.Col); col <= uint64(last.Col); col += spec.BundleSize {
		keys = append(keys, spec.Key{Z: first.Z, Row: first.Row, Col: uint32(col)})
	}
	return keys
}

// BundleRange returns the part of the partition that belongs to bundle key.
func (p Partition) BundleRange(key spec.Key) (tile.Range, bool) {
	return p.Range.Intersect(key.Range())
}

// Plan partitions every extent and returns the partitions in dispatch order:
// higher zoom levels first, then along a Hilbert curve over the bundle grid.
func Plan(extents []tile.Range, workers int) ([]Partition, error) {
	extents = slices.Clone(extents)
	slices.SortStableFunc(extents, func(a, b tile.Range) int {
		return cmp.Compare(b.Z, a.Z)
	})

	partitions := make([]Partition, 0)
	for _, extent := range extents {
		level, err := PlanLevel(extent, workers)
		if err != nil {
			return nil, err
		}
		partitions = append(partitions, level...)
	}
	return partitions, nil
}

// PlanLevel partitions a single zoom level extent for the given number of workers.
// Every bundle intersecting the extent is covered by exactly one partition.
func PlanLevel(extent tile.Range, workers int) ([]Partition, error) {
	if extent.MinX > extent.MaxX || extent.MinY > extent.MaxY {
		return nil, nil
	}

	firstRow := uint64(extent.MinY / spec.BundleSize)
	lastRow := uint64(extent.MaxY / spec.BundleSize)
	firstCol := uint64(extent.MinX / spec.BundleSize)
	lastCol := uint64(extent.MaxX / spec.BundleSize)

	rows := lastRow - firstRow + 1
	cols := lastCol - firstCol + 1
	target := uint64(max(workers, 1) * PartitionsPerWorker)
	width := min(cols, max(1, (rows*cols+target-1)/target))

	partitions := make([]Partition, 0, rows*((cols+width-1)/width))
	for row := firstRow; row <= lastRow; row++ {
		for col := firstCol; col <= lastCol; col += width {
			r := tile.Range{
				Z:    extent.Z,
				MinX: uint32(col * spec.BundleSize),
				MinY: uint32(row * spec.BundleSize),
				MaxX: uint32(min(col+width, lastCol+1)*spec.BundleSize - 1),
				MaxY: uint32((row+1)*spec.BundleSize - 1),
			}
			r, _ = r.Intersect(extent)
			partitions = append(partitions, Partition{Range: r})
		}
	}

	if err := sortHilbert(partitions, max(lastRow, lastCol)+1); err != nil {
		return nil, err
	}
	return partitions, nil
}

func sortHilbert(partitions []Partition, gridSize uint64) error {
	n := 1 << bits.Len64(gridSize-1)
	h, err := hilbert.NewHilbert(n)
	if err != nil {
		return err
	}

	codes := make(map[tile.Range]int, len(partitions))
	for _, p := range partitions {
		code, err := h.MapInverse(int(p.Range.MinX/spec.BundleSize), int(p.Range.MinY/spec.BundleSize))
		if err != nil {
			return err
		}
		codes[p.Range] = code
	}

	slices.SortFunc(partitions, func(a, b Partition) int {
		return cmp.Compare(codes[a.Range], codes[b.Range])
	})
	return nil
}
