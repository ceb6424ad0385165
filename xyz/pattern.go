// Package xyz reads and writes tilesets stored as a directory tree of
// individual files, one per tile, laid out as "{z}/{x}/{y}.ext".
package xyz

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/eak1mov/go-compactcache/tile"
)

var ErrInvalidPattern = errors.New("compactcache: invalid file pattern")

const layout = "{z}/{x}/{y}"

// parsePattern checks that pattern is of the form "{z}/{x}/{y}.ext" and returns its suffix.
func parsePattern(pattern string) (string, error) {
	suffix, ok := strings.CutPrefix(pattern, layout)
	if !ok {
		return "", fmt.Errorf("%w: %q does not start with %q", ErrInvalidPattern, pattern, layout)
	}
	if strings.ContainsAny(suffix, "/{}") {
		return "", fmt.Errorf("%w: unexpected suffix %q", ErrInvalidPattern, suffix)
	}
	return suffix, nil
}

func tilePath(tileID tile.ID, suffix string) string {
	return path.Join(
		strconv.FormatUint(uint64(tileID.Z), 10),
		strconv.FormatUint(uint64(tileID.X), 10),
		strconv.FormatUint(uint64(tileID.Y), 10)+suffix,
	)
}

// parseNumber parses a decimal path element, rejecting signs and leading zeros.
func parseNumber(name string) (uint32, bool) {
	if name == "" || (len(name) > 1 && name[0] == '0') {
		return 0, false
	}
	value, err := strconv.ParseUint(name, 10, 32)
	return uint32(value), err == nil
}
