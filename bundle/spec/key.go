package spec

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/eak1mov/go-compactcache/tile"
)

// Key identifies one bundle: the zoom level and the row and column of its top-left tile.
type Key struct {
	Z   uint32
	Row uint32
	Col uint32
}

var ErrInvalidCoordinate = errors.New("compactcache: invalid tile coordinate")
var ErrInvalidName = errors.New("compactcache: invalid bundle file name")

// ToKey maps a tile to its bundle and to its row and column inside that bundle.
func ToKey(tileID tile.ID) (key Key, localRow, localCol int) {
	key = Key{
		Z:   tileID.Z,
		Row: tileID.Y / BundleSize * BundleSize,
		Col: tileID.X / BundleSize * BundleSize,
	}
	return key, int(tileID.Y - key.Row), int(tileID.X - key.Col)
}

// TileID is the inverse of ToKey.
func (k Key) TileID(localRow, localCol int) tile.ID {
	return tile.ID{X: k.Col + uint32(localCol), Y: k.Row + uint32(localRow), Z: k.Z}
}

// Range returns the tiles covered by the bundle.
func (k Key) Range() tile.Range {
	return tile.Range{
		Z:    k.Z,
		MinX: k.Col,
		MinY: k.Row,
		MaxX: k.Col + BundleSize - 1,
		MaxY: k.Row + BundleSize - 1,
	}
}

func (k Key) String() string {
	return k.Path()
}

// LevelDir returns the name of the directory holding the bundles of zoom level z.
func LevelDir(z uint32) string {
	return fmt.Sprintf("L%02d", z)
}

// FileName returns the bundle file name, e.g. "R0080C0000.bundle".
func (k Key) FileName() string {
	return fmt.Sprintf("R%04xC%04x%s", k.Row, k.Col, BundleExt)
}

// Path returns the bundle path relative to the cache root, e.g. "L01/R0000C0000.bundle".
func (k Key) Path() string {
	return path.Join(LevelDir(k.Z), k.FileName())
}

// ParsePath recovers a bundle key from a path produced by Key.Path.
func ParsePath(filePath string) (Key, error) {
	var key Key
	dir, name := path.Split(path.Clean(filePath))
	if _, err := fmt.Sscanf(path.Base(dir), "L%d", &key.Z); err != nil {
		return Key{}, fmt.Errorf("%w: %q: %w", ErrInvalidName, filePath, err)
	}
	name, err := trimExt(name)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidName, filePath)
	}
	rowHex, colHex, found := strings.Cut(strings.TrimPrefix(name, "R"), "C")
	if !found || !strings.HasPrefix(name, "R") {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidName, filePath)
	}
	row, err := strconv.ParseUint(rowHex, 16, 32)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q: %w", ErrInvalidName, filePath, err)
	}
	col, err := strconv.ParseUint(colHex, 16, 32)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q: %w", ErrInvalidName, filePath, err)
	}
	key.Row, key.Col = uint32(row), uint32(col)
	if key.Row%BundleSize != 0 || key.Col%BundleSize != 0 {
		return Key{}, fmt.Errorf("%w: %q is not aligned to the bundle grid", ErrInvalidName, filePath)
	}
	return key, nil
}

func trimExt(name string) (string, error) {
	trimmed, found := strings.CutSuffix(name, BundleExt)
	if !found || trimmed == "" {
		return "", ErrInvalidName
	}
	return trimmed, nil
}
