package spec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	offsetBits = 40
	offsetMask = 1<<offsetBits - 1

	// MaxTileLength is the largest tile an index entry can address.
	MaxTileLength = 1<<(64-offsetBits) - 1
	// MaxFileSize is the largest file offset an index entry can address.
	MaxFileSize = offsetMask
)

var ErrTileTooLarge = errors.New("compactcache: tile too large")

// Entry locates one tile inside a bundle file. The zero Entry marks an empty slot.
type Entry struct {
	Offset uint64 // absolute file offset of the tile data, after its size prefix
	Length uint32
}

func (e Entry) Empty() bool {
	return e.Length == 0
}

func PackEntry(e Entry) uint64 {
	return e.Offset | uint64(e.Length)<<offsetBits
}

func UnpackEntry(value uint64) Entry {
	return Entry{Offset: value & offsetMask, Length: uint32(value >> offsetBits)}
}

// Slot returns the position of a tile in the index, row major.
func Slot(localRow, localCol int) int {
	return localRow*BundleSize + localCol
}

// SlotPosition is the inverse of Slot.
func SlotPosition(slot int) (localRow, localCol int) {
	return slot / BundleSize, slot % BundleSize
}

// ValidLocal reports whether the row and column address a slot inside a bundle.
func ValidLocal(localRow, localCol int) bool {
	return localRow >= 0 && localRow < BundleSize && localCol >= 0 && localCol < BundleSize
}

func SerializeIndex(entries *[SlotCount]Entry) []byte {
	buffer := make([]byte, 0, IndexLength)
	for _, entry := range entries {
		buffer = binary.LittleEndian.AppendUint64(buffer, PackEntry(entry))
	}
	return buffer
}

func DeserializeIndex(data []byte) (*[SlotCount]Entry, error) {
	if len(data) < IndexLength {
		return nil, fmt.Errorf("%w: index truncated to %d bytes", ErrInvalidHeader, len(data))
	}
	var entries [SlotCount]Entry
	for i := range entries {
		entries[i] = UnpackEntry(binary.LittleEndian.Uint64(data[i*EntryLength:]))
	}
	return &entries, nil
}
