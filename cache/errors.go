package cache

import (
	"errors"

	"github.com/eak1mov/go-compactcache/bundle"
	"github.com/eak1mov/go-compactcache/bundle/spec"
)

var (
	ErrSourceRead     = errors.New("compactcache: source read failed")
	ErrEncodeWrite    = errors.New("compactcache: bundle write failed")
	ErrSourceOrder    = errors.New("compactcache: source is not in column order")
	ErrInvalidOptions = errors.New("compactcache: invalid options")

	ErrDuplicateSlot     = bundle.ErrDuplicateSlot
	ErrInvalidCoordinate = spec.ErrInvalidCoordinate
)
