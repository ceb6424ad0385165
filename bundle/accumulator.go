// Package bundle builds and reads Esri Compact Cache V2 bundle files.
package bundle

import (
	"errors"
	"fmt"

	"github.com/eak1mov/go-compactcache/bundle/spec"
	"github.com/eak1mov/go-compactcache/tile"
)

var ErrDuplicateSlot = errors.New("compactcache: duplicate bundle slot")

// Accumulator collects the tiles of one bundle before it is encoded.
// It is not safe for concurrent use.
type Accumulator struct {
	key        spec.Key
	slots      [][]byte
	count      int
	dataLength uint64
	maxLength  uint32
}

func NewAccumulator(key spec.Key) *Accumulator {
	return &Accumulator{
		key:   key,
		slots: make([][]byte, spec.SlotCount),
	}
}

func (a *Accumulator) Key() spec.Key {
	return a.key
}

// Insert stores a tile in the slot at localRow, localCol.
// Empty tiles are treated as absent and ignored.
// Inserting into an occupied slot fails with ErrDuplicateSlot.
func (a *Accumulator) Insert(localRow, localCol int, tileData []byte) error {
	if !spec.ValidLocal(localRow, localCol) {
		return fmt.Errorf("%w: slot (%d, %d) outside bundle %v", spec.ErrInvalidCoordinate, localRow, localCol, a.key)
	}
	if len(tileData) == 0 {
		return nil
	}
	if len(tileData) > spec.MaxTileLength {
		return fmt.Errorf("%w: %d bytes at slot (%d, %d) of bundle %v",
			spec.ErrTileTooLarge, len(tileData), localRow, localCol, a.key)
	}

	slot := spec.Slot(localRow, localCol)
	if a.slots[slot] != nil {
		return fmt.Errorf("%w: (%d, %d) of bundle %v", ErrDuplicateSlot, localRow, localCol, a.key)
	}

	a.slots[slot] = tileData
	a.count++
	a.dataLength += spec.SizePrefixLength + uint64(len(tileData))
	a.maxLength = max(a.maxLength, uint32(len(tileData)))
	return nil
}

// Add inserts a tile addressed by its global coordinates.
// The tile must belong to the accumulator's bundle.
func (a *Accumulator) Add(tileID tile.ID, tileData []byte) error {
	key, localRow, localCol := spec.ToKey(tileID)
	if key != a.key {
		return fmt.Errorf("%w: tile %v belongs to bundle %v, not %v", spec.ErrInvalidCoordinate, tileID, key, a.key)
	}
	return a.Insert(localRow, localCol, tileData)
}

func (a *Accumulator) IsEmpty() bool {
	return a.count == 0
}

// Count returns the number of present tiles.
func (a *Accumulator) Count() int {
	return a.count
}

// Tile returns the tile stored at localRow, localCol, or nil if the slot is empty.
func (a *Accumulator) Tile(localRow, localCol int) []byte {
	if !spec.ValidLocal(localRow, localCol) {
		return nil
	}
	return a.slots[spec.Slot(localRow, localCol)]
}

// FileSize returns the length of the encoded bundle.
func (a *Accumulator) FileSize() uint64 {
	return spec.DataOffset + a.dataLength
}
