package cache

import (
	"maps"
	"slices"

	"github.com/eak1mov/go-compactcache/bundle/spec"
)

// LevelSummary describes the bundles written for one zoom level.
type LevelSummary struct {
	Bundles      int
	EmptyBundles int
	Tiles        int
	Bytes        int64
}

// Summary describes the outcome of a build.
type Summary struct {
	Levels map[uint32]LevelSummary
}

func newSummary() Summary {
	return Summary{Levels: make(map[uint32]LevelSummary)}
}

func (s Summary) Bundles() int {
	total := 0
	for _, level := range s.Levels {
		total += level.Bundles
	}
	return total
}

func (s Summary) Tiles() int {
	total := 0
	for _, level := range s.Levels {
		total += level.Tiles
	}
	return total
}

// ZoomLevels returns the built zoom levels in ascending order.
func (s Summary) ZoomLevels() []uint32 {
	return slices.Sorted(maps.Keys(s.Levels))
}

func (s *Summary) addBundle(key spec.Key, tiles int, bytes int) {
	level := s.Levels[key.Z]
	level.Bundles++
	if tiles == 0 {
		level.EmptyBundles++
	}
	level.Tiles += tiles
	level.Bytes += int64(bytes)
	s.Levels[key.Z] = level
}

func (s *Summary) merge(o Summary) {
	for z, other := range o.Levels {
		level := s.Levels[z]
		level.Bundles += other.Bundles
		level.EmptyBundles += other.EmptyBundles
		level.Tiles += other.Tiles
		level.Bytes += other.Bytes
		s.Levels[z] = level
	}
}
