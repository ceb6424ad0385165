package cache_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/eak1mov/go-compactcache/bundle"
	"github.com/eak1mov/go-compactcache/bundle/spec"
	"github.com/eak1mov/go-compactcache/cache"
	"github.com/eak1mov/go-compactcache/tile"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"
)

// newCacheFS returns an empty cache root. Workers write bundles concurrently,
// so the filesystem must be safe for concurrent use, which memfs is not.
func newCacheFS(t *testing.T) billy.Filesystem {
	t.Helper()
	return osfs.New(t.TempDir())
}

// readFiles returns every file below the root of fs, keyed by its path.
func readFiles(t *testing.T, fs billy.Filesystem) map[string][]byte {
	t.Helper()
	files := make(map[string][]byte)
	var walk func(dir string)
	walk = func(dir string) {
		infos, err := fs.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir(%q) failed: %v", dir, err)
		}
		for _, info := range infos {
			filePath := path.Join(dir, info.Name())
			if info.IsDir() {
				walk(filePath)
				continue
			}
			data, err := util.ReadFile(fs, filePath)
			if err != nil {
				t.Fatalf("ReadFile(%q) failed: %v", filePath, err)
			}
			files[strings.TrimPrefix(filePath, "/")] = data
		}
	}
	walk("/")
	return files
}

func bundleCounts(t *testing.T, files map[string][]byte) map[string]int {
	t.Helper()
	counts := make(map[string]int)
	for filePath, data := range files {
		reader, err := bundle.NewBytesReader(data)
		if err != nil {
			t.Fatalf("NewBytesReader(%q) failed: %v", filePath, err)
		}
		counts[filePath] = reader.Count()
	}
	return counts
}

func randomTiles(seed uint64) map[tile.ID][]byte {
	rng := rand.New(rand.NewPCG(seed, seed))
	tiles := make(map[tile.ID][]byte)
	for _, z := range []uint32{3, 8, 9} {
		count := min(int(1)<<(2*z)/3, 4000)
		for range count {
			tileID := tile.ID{X: rng.Uint32N(1 << z), Y: rng.Uint32N(1 << z), Z: z}
			tiles[tileID] = fmt.Appendf(nil, "%v:%d", tileID, rng.IntN(1<<20))
		}
	}
	return tiles
}

func TestBuildExample(t *testing.T) {
	source := tile.NewMemorySource(map[tile.ID][]byte{
		{Z: 1, Y: 0, X: 0}:   []byte("tile-0-0"),
		{Z: 1, Y: 0, X: 1}:   []byte("tile-0-1"),
		{Z: 1, Y: 200, X: 5}: []byte("tile-200-5"),
	})
	fs := newCacheFS(t)

	summary, err := cache.Build(context.Background(), source, fs, cache.WithWorkers(2))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := map[string]int{
		"L01/R0000C0000.bundle": 2,
		"L01/R0080C0000.bundle": 1,
	}
	if diff := cmp.Diff(want, bundleCounts(t, readFiles(t, fs))); diff != "" {
		t.Errorf("bundles mismatch (-want+got):\n%v", diff)
	}

	wantSummary := map[uint32]cache.LevelSummary{1: {Bundles: 2, Tiles: 3, Bytes: summary.Levels[1].Bytes}}
	if diff := cmp.Diff(wantSummary, summary.Levels); diff != "" {
		t.Errorf("summary mismatch (-want+got):\n%v", diff)
	}
	if got, want := summary.Tiles(), 3; got != want {
		t.Errorf("Tiles() = %v, want = %v", got, want)
	}

	reader, err := bundle.OpenReader(fs, "L01/R0080C0000.bundle")
	if err != nil {
		t.Fatalf("OpenReader failed: %v", err)
	}
	defer reader.Close()
	tileData, err := reader.ReadTile(200-128, 5)
	if err != nil {
		t.Fatalf("ReadTile failed: %v", err)
	}
	if got, want := string(tileData), "tile-200-5"; got != want {
		t.Errorf("ReadTile = %q, want = %q", got, want)
	}
}

func TestBuildEmptyRegion(t *testing.T) {
	source := tile.NewMemorySource(map[tile.ID][]byte{
		{Z: 1, Y: 0, X: 0}:   []byte("tile-0-0"),
		{Z: 1, Y: 0, X: 1}:   []byte("tile-0-1"),
		{Z: 1, Y: 200, X: 5}: []byte("tile-200-5"),
	})
	fs := newCacheFS(t)

	extent := tile.Range{Z: 1, MinX: 0, MinY: 0, MaxX: 300, MaxY: 200}
	summary, err := cache.Build(context.Background(), source, fs, cache.WithExtents(extent))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := map[string]int{
		"L01/R0000C0000.bundle": 2,
		"L01/R0000C0080.bundle": 0,
		"L01/R0000C0100.bundle": 0,
		"L01/R0080C0000.bundle": 1,
		"L01/R0080C0080.bundle": 0,
		"L01/R0080C0100.bundle": 0,
	}
	files := readFiles(t, fs)
	if diff := cmp.Diff(want, bundleCounts(t, files)); diff != "" {
		t.Errorf("bundles mismatch (-want+got):\n%v", diff)
	}
	if got, want := len(files["L01/R0080C0100.bundle"]), spec.DataOffset; got != want {
		t.Errorf("empty bundle has %d bytes, want %d", got, want)
	}
	if got, want := summary.Levels[1].EmptyBundles, 4; got != want {
		t.Errorf("EmptyBundles = %v, want = %v", got, want)
	}
}

func TestBuildWorkersDeterministic(t *testing.T) {
	tiles := randomTiles(7)

	var reference map[string][]byte
	for _, workers := range []int{1, 2, 8} {
		fs := newCacheFS(t)
		summary, err := cache.Build(context.Background(), tile.NewMemorySource(tiles), fs, cache.WithWorkers(workers))
		if err != nil {
			t.Fatalf("Build(workers=%d) failed: %v", workers, err)
		}
		if got, want := summary.Tiles(), len(tiles); got != want {
			t.Errorf("Build(workers=%d) wrote %d tiles, want %d", workers, got, want)
		}

		files := readFiles(t, fs)
		if reference == nil {
			reference = files
			continue
		}
		if !cmp.Equal(reference, files) {
			t.Errorf("Build(workers=%d) output differs from Build(workers=1)", workers)
		}
	}

	decoded := make(map[tile.ID][]byte)
	for filePath, data := range reference {
		key, err := spec.ParsePath(filePath)
		if err != nil {
			t.Fatalf("ParsePath failed: %v", err)
		}
		reader, err := bundle.NewBytesReader(data)
		if err != nil {
			t.Fatalf("NewBytesReader(%q) failed: %v", filePath, err)
		}
		err = reader.VisitTiles(func(localRow, localCol int, tileData []byte) error {
			decoded[key.TileID(localRow, localCol)] = tileData
			return nil
		})
		if err != nil {
			t.Fatalf("VisitTiles failed: %v", err)
		}
	}
	if diff := cmp.Diff(tiles, decoded); diff != "" {
		t.Errorf("decoded cache mismatch (-want+got):\n%v", diff)
	}
}

func TestBuildZoomRange(t *testing.T) {
	tiles := randomTiles(11)
	fs := newCacheFS(t)

	summary, err := cache.Build(context.Background(), tile.NewMemorySource(tiles), fs, cache.WithZoomRange(0, 8))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if diff := cmp.Diff([]uint32{3, 8}, summary.ZoomLevels()); diff != "" {
		t.Errorf("ZoomLevels mismatch (-want+got):\n%v", diff)
	}
	for filePath := range readFiles(t, fs) {
		if strings.HasPrefix(filePath, "L09/") {
			t.Errorf("bundle %q written outside of the zoom range", filePath)
		}
	}
}

type countingProgress struct {
	mu      sync.Mutex
	planned int
	written map[spec.Key]int
	tiles   int
}

func (p *countingProgress) Planned(bundles int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.planned = bundles
}

func (p *countingProgress) Written(key spec.Key, tiles int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written[key]++
	p.tiles += tiles
}

func TestBuildProgress(t *testing.T) {
	tiles := randomTiles(3)
	progress := &countingProgress{written: make(map[spec.Key]int)}

	summary, err := cache.Build(context.Background(), tile.NewMemorySource(tiles), newCacheFS(t),
		cache.WithWorkers(4), cache.WithProgress(progress))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got, want := progress.planned, summary.Bundles(); got != want {
		t.Errorf("Planned(%v), want %v", got, want)
	}
	if got, want := len(progress.written), summary.Bundles(); got != want {
		t.Errorf("Written called for %v bundles, want %v", got, want)
	}
	if got, want := progress.tiles, len(tiles); got != want {
		t.Errorf("Written reported %v tiles, want %v", got, want)
	}
	for key, calls := range progress.written {
		if calls != 1 {
			t.Errorf("bundle %v reported %d times", key, calls)
		}
	}
}

func TestBuildInvalidOptions(t *testing.T) {
	source := tile.NewMemorySource(nil)
	for name, opt := range map[string]cache.Option{
		"workers":    cache.WithWorkers(0),
		"zoom range": cache.WithZoomRange(5, 4),
		"max zoom":   cache.WithZoomRange(0, 40),
		"extent":     cache.WithExtents(tile.Range{Z: 3, MinX: 4, MaxX: 3}),
		"retry":      cache.WithRetry(cache.RetryConfig{}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := cache.Build(context.Background(), source, newCacheFS(t), opt)
			if !errors.Is(err, cache.ErrInvalidOptions) {
				t.Errorf("Build = %v, want %v", err, cache.ErrInvalidOptions)
			}
		})
	}
}

func TestBuildEmptySource(t *testing.T) {
	fs := newCacheFS(t)
	summary, err := cache.Build(context.Background(), tile.NewMemorySource(nil), fs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if summary.Bundles() != 0 || len(readFiles(t, fs)) != 0 {
		t.Errorf("empty source produced %d bundles", summary.Bundles())
	}
}
