// Package spec implements the on-disk layout of Esri Compact Cache V2 bundles.
package spec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// BundleSize is the bundle linear size in tiles.
	BundleSize = 128
	// SlotCount is the number of tiles per bundle.
	SlotCount = BundleSize * BundleSize

	HeaderLength = 64
	EntryLength  = 8
	IndexLength  = SlotCount * EntryLength
	DataOffset   = HeaderLength + IndexLength

	// SizePrefixLength is the length of the uint32 stored in front of every tile.
	SizePrefixLength = 4

	BundleExt = ".bundle"
)

const (
	VersionV2        uint32 = 3
	offsetSize       uint32 = 5
	userHeaderOffset uint64 = 40
	userHeaderSize   uint32 = 20 + IndexLength
)

type Header struct {
	Version          uint32
	NumRecords       uint32
	MaxRecordSize    uint32
	OffsetSize       uint32
	SlackSpace       uint64
	FileSize         uint64
	UserHeaderOffset uint64
	UserHeaderSize   uint32
	Legacy1          uint32
	Legacy2          uint32
	Legacy3          uint32
	Legacy4          uint32
	IndexSize        uint32
}

// NewHeader returns the header of a bundle with no tiles.
func NewHeader() Header {
	return Header{
		Version:          VersionV2,
		NumRecords:       SlotCount,
		MaxRecordSize:    0,
		OffsetSize:       offsetSize,
		SlackSpace:       0,
		FileSize:         DataOffset,
		UserHeaderOffset: userHeaderOffset,
		UserHeaderSize:   userHeaderSize,
		Legacy1:          3,
		Legacy2:          16,
		Legacy3:          SlotCount,
		Legacy4:          offsetSize,
		IndexSize:        IndexLength,
	}
}

var ErrInvalidHeader = errors.New("compactcache: invalid bundle header")
var ErrInvalidVersion = errors.New("compactcache: unsupported bundle version")

func SerializeHeader(header *Header) []byte {
	var buffer bytes.Buffer
	writer := bufio.NewWriter(&buffer)
	binary.Write(writer, binary.LittleEndian, header)
	writer.Flush()
	return buffer.Bytes()
}

func DeserializeHeader(buffer []byte) (*Header, error) {
	header := Header{}
	reader := bytes.NewReader(buffer)
	err := binary.Read(reader, binary.LittleEndian, &header)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if header.Version != VersionV2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, header.Version)
	}
	if header.NumRecords != SlotCount || header.IndexSize != IndexLength || header.OffsetSize != offsetSize {
		return nil, fmt.Errorf("%w: unexpected geometry (records=%d, index=%d, offset=%d)",
			ErrInvalidHeader, header.NumRecords, header.IndexSize, header.OffsetSize)
	}
	return &header, nil
}
