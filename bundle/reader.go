package bundle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/eak1mov/go-compactcache/bundle/spec"
	"github.com/go-git/go-billy/v5"
)

// Reader decodes a bundle file.
type Reader struct {
	file   io.ReaderAt
	closer func() error
	header *spec.Header
	index  *[spec.SlotCount]spec.Entry
	count  int
}

// NewReader reads and validates the header and index of a bundle of the given size.
func NewReader(file io.ReaderAt, size int64) (*Reader, error) {
	headerData := make([]byte, spec.DataOffset)
	if _, err := file.ReadAt(headerData, 0); err != nil {
		return nil, fmt.Errorf("%w: %w", spec.ErrInvalidHeader, err)
	}
	header, err := spec.DeserializeHeader(headerData[:spec.HeaderLength])
	if err != nil {
		return nil, err
	}
	if header.FileSize != uint64(size) {
		return nil, fmt.Errorf("%w: header declares %d bytes, file has %d", spec.ErrInvalidHeader, header.FileSize, size)
	}
	index, err := spec.DeserializeIndex(headerData[spec.HeaderLength:])
	if err != nil {
		return nil, err
	}

	count := 0
	for slot, entry := range index {
		if entry.Empty() {
			continue
		}
		if entry.Offset < spec.DataOffset+spec.SizePrefixLength || entry.Offset+uint64(entry.Length) > header.FileSize {
			return nil, fmt.Errorf("%w: slot %d points outside the data section", spec.ErrInvalidHeader, slot)
		}
		count++
	}

	return &Reader{
		file:   file,
		closer: func() error { return nil },
		header: header,
		index:  index,
		count:  count,
	}, nil
}

func NewBytesReader(data []byte) (*Reader, error) {
	return NewReader(bytes.NewReader(data), int64(len(data)))
}

// OpenReader opens the bundle at filePath on fs.
// The returned Reader must be closed after use.
func OpenReader(fs billy.Filesystem, filePath string) (*Reader, error) {
	info, err := fs.Stat(filePath)
	if err != nil {
		return nil, err
	}
	file, err := fs.Open(filePath)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(file, info.Size())
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file.Close
	return r, nil
}

func (r *Reader) Close() error {
	return r.closer()
}

func (r *Reader) Header() spec.Header {
	return *r.header
}

// Count returns the number of present tiles.
func (r *Reader) Count() int {
	return r.count
}

func (r *Reader) Entry(localRow, localCol int) spec.Entry {
	if !spec.ValidLocal(localRow, localCol) {
		return spec.Entry{}
	}
	return r.index[spec.Slot(localRow, localCol)]
}

// ReadTile returns the tile at localRow, localCol, or an empty slice if the slot is empty.
func (r *Reader) ReadTile(localRow, localCol int) ([]byte, error) {
	entry := r.Entry(localRow, localCol)
	if entry.Empty() {
		return make([]byte, 0), nil
	}
	return r.readEntry(entry)
}

func (r *Reader) readEntry(entry spec.Entry) ([]byte, error) {
	buffer := make([]byte, spec.SizePrefixLength+uint64(entry.Length))
	if _, err := r.file.ReadAt(buffer, int64(entry.Offset-spec.SizePrefixLength)); err != nil {
		return nil, err
	}
	if prefix := binary.LittleEndian.Uint32(buffer); prefix != entry.Length {
		return nil, fmt.Errorf("%w: size prefix %d does not match index length %d", spec.ErrInvalidHeader, prefix, entry.Length)
	}
	return buffer[spec.SizePrefixLength:], nil
}

// VisitTiles calls the visitor for every present tile in slot order.
func (r *Reader) VisitTiles(visitor func(localRow, localCol int, tileData []byte) error) error {
	for slot, entry := range r.index {
		if entry.Empty() {
			continue
		}
		tileData, err := r.readEntry(entry)
		if err != nil {
			return err
		}
		localRow, localCol := spec.SlotPosition(slot)
		if err := visitor(localRow, localCol, tileData); err != nil {
			return err
		}
	}
	return nil
}
