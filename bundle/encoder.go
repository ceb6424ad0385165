package bundle

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/eak1mov/go-compactcache/bundle/spec"
)

var ErrBundleTooLarge = errors.New("compactcache: bundle too large")

// Encode serializes the accumulated tiles into the bundle file layout:
// header, index of all slots in row-major order, then every present tile
// prefixed by its uint32 length.
func Encode(a *Accumulator) ([]byte, error) {
	fileSize := a.FileSize()
	if fileSize > spec.MaxFileSize {
		return nil, fmt.Errorf("%w: %v needs %d bytes", ErrBundleTooLarge, a.key, fileSize)
	}

	header := spec.NewHeader()
	header.MaxRecordSize = a.maxLength
	header.FileSize = fileSize

	var entries [spec.SlotCount]spec.Entry
	buffer := make([]byte, spec.DataOffset, fileSize)
	for slot, tileData := range a.slots {
		if tileData == nil {
			continue
		}
		buffer = binary.LittleEndian.AppendUint32(buffer, uint32(len(tileData)))
		entries[slot] = spec.Entry{
			Offset: uint64(len(buffer)),
			Length: uint32(len(tileData)),
		}
		buffer = append(buffer, tileData...)
	}

	copy(buffer, spec.SerializeHeader(&header))
	copy(buffer[spec.HeaderLength:], spec.SerializeIndex(&entries))
	return buffer, nil
}
