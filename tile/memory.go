package tile

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
)

// MemorySource is a Source backed by a map of tiles.
// It is safe for concurrent use.
type MemorySource struct {
	mu    sync.RWMutex
	tiles map[ID][]byte
}

func NewMemorySource(tiles map[ID][]byte) *MemorySource {
	s := &MemorySource{tiles: make(map[ID][]byte, len(tiles))}
	for tileID, tileData := range tiles {
		s.tiles[tileID] = tileData
	}
	return s
}

func (s *MemorySource) WriteTile(tileID ID, tileData []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles[tileID] = tileData
	return nil
}

func (s *MemorySource) Finalize() error {
	return nil
}

func (s *MemorySource) ReadTile(tileID ID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tileData, ok := s.tiles[tileID]; ok {
		return tileData, nil
	}
	return make([]byte, 0), nil
}

func (s *MemorySource) VisitRange(ctx context.Context, r Range, visitor func(ID, []byte) error) error {
	s.mu.RLock()
	tileIDs := make([]ID, 0)
	for tileID, tileData := range s.tiles {
		if r.Contains(tileID) && len(tileData) > 0 {
			tileIDs = append(tileIDs, tileID)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(tileIDs, func(a, b ID) int {
		return cmp.Or(cmp.Compare(a.X, b.X), cmp.Compare(a.Y, b.Y))
	})

	for _, tileID := range tileIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		tileData, err := s.ReadTile(tileID)
		if err != nil {
			return err
		}
		if err := visitor(tileID, tileData); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemorySource) Extent(_ context.Context, z uint32) (Range, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result Range
	found := false
	for tileID, tileData := range s.tiles {
		if tileID.Z != z || len(tileData) == 0 {
			continue
		}
		r := Range{Z: z, MinX: tileID.X, MinY: tileID.Y, MaxX: tileID.X, MaxY: tileID.Y}
		if found {
			result = result.Union(r)
		} else {
			result, found = r, true
		}
	}
	return result, found, nil
}

func (s *MemorySource) ZoomLevels(_ context.Context) ([]uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	levels := make(map[uint32]struct{})
	for tileID, tileData := range s.tiles {
		if len(tileData) > 0 {
			levels[tileID.Z] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(levels)), nil
}
