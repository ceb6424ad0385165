package xyz_test

import (
	"context"
	"errors"
	"maps"
	"testing"

	"github.com/eak1mov/go-compactcache/tile"
	"github.com/eak1mov/go-compactcache/xyz"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"
)

var testTiles = map[tile.ID][]byte{
	{X: 0, Y: 0, Z: 0}:     []byte("tile000"),
	{X: 1, Y: 1, Z: 1}:     []byte("tile111"),
	{X: 0, Y: 0, Z: 6}:     []byte("tile006"),
	{X: 6, Y: 6, Z: 6}:     []byte("tile666"),
	{X: 10, Y: 2, Z: 6}:    []byte("tile-6-10-2"),
	{X: 10, Y: 40, Z: 6}:   []byte("tile-6-10-40"),
	{X: 9, Y: 63, Z: 6}:    []byte("tile-6-9-63"),
	{X: 100, Y: 100, Z: 8}: []byte("tile-8-100-100"),
}

func writeTiles(t *testing.T, fs billy.Filesystem) *xyz.Reader {
	t.Helper()
	writer, err := xyz.NewWriter(fs, "{z}/{x}/{y}.png")
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	for tileID, tileData := range testTiles {
		if err := writer.WriteTile(tileID, tileData); err != nil {
			t.Errorf("WriteTile(%v) failed: %v", tileID, err)
		}
	}
	if err := writer.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	reader, err := xyz.NewReader(fs, "{z}/{x}/{y}.png")
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	return reader
}

func TestWriterReader(t *testing.T) {
	for name, fs := range map[string]billy.Filesystem{
		"memfs": memfs.New(),
		"osfs":  osfs.New(t.TempDir()),
	} {
		t.Run(name, func(t *testing.T) {
			reader := writeTiles(t, fs)

			levels, err := reader.ZoomLevels(context.Background())
			if err != nil {
				t.Fatalf("ZoomLevels failed: %v", err)
			}
			got := make(map[tile.ID][]byte)
			for _, z := range levels {
				maps.Insert(got, tile.IterRange(context.Background(), reader, tile.FullRange(z)))
			}
			if diff := cmp.Diff(testTiles, got); diff != "" {
				t.Errorf("VisitRange mismatch (-want+got):\n%v", diff)
			}

			for tileID, tileData := range testTiles {
				data, err := reader.ReadTile(tileID)
				if err != nil {
					t.Errorf("ReadTile(%v) failed: %v", tileID, err)
					continue
				}
				if !cmp.Equal(data, tileData) {
					t.Errorf("ReadTile data mismatch for %v", tileID)
				}
			}

			tileData, err := reader.ReadTile(tile.ID{X: 9, Y: 9, Z: 9})
			if err != nil {
				t.Errorf("ReadTile(missing tile) failed: %v", err)
			}
			if len(tileData) != 0 {
				t.Errorf("ReadTile(missing tile) expected empty tile, got: %v bytes", len(tileData))
			}
		})
	}
}

func TestVisitRange(t *testing.T) {
	fs := memfs.New()
	reader := writeTiles(t, fs)
	if err := util.WriteFile(fs, "6/3/notes.txt", []byte("ignored"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := util.WriteFile(fs, "6/7/7.png", nil, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	var got []tile.ID
	r := tile.Range{Z: 6, MinX: 1, MinY: 0, MaxX: 63, MaxY: 50}
	err := reader.VisitRange(context.Background(), r, func(tileID tile.ID, _ []byte) error {
		got = append(got, tileID)
		return nil
	})
	if err != nil {
		t.Fatalf("VisitRange failed: %v", err)
	}
	want := []tile.ID{{X: 6, Y: 6, Z: 6}, {X: 10, Y: 2, Z: 6}, {X: 10, Y: 40, Z: 6}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("VisitRange mismatch (-want+got):\n%v", diff)
	}

	extent, found, err := reader.Extent(context.Background(), 6)
	if err != nil || !found {
		t.Fatalf("Extent = %v, %v, %v", extent, found, err)
	}
	if want := (tile.Range{Z: 6, MinX: 0, MinY: 0, MaxX: 10, MaxY: 63}); extent != want {
		t.Errorf("Extent = %v, want %v", extent, want)
	}
	if _, found, _ := reader.Extent(context.Background(), 5); found {
		t.Errorf("Extent(missing level) found tiles")
	}
}

func TestInvalidPattern(t *testing.T) {
	for _, pattern := range []string{"{x}/{y}/{z}.png", "tiles/{z}/{x}/{y}.png", "{z}/{x}/{y}/tile.png"} {
		if _, err := xyz.NewReader(memfs.New(), pattern); !errors.Is(err, xyz.ErrInvalidPattern) {
			t.Errorf("NewReader(%q) = %v, want %v", pattern, err, xyz.ErrInvalidPattern)
		}
	}
}

func TestExtentOutsideGrid(t *testing.T) {
	fs := memfs.New()
	reader := writeTiles(t, fs)
	for _, filePath := range []string{"1/5/0.png", "1/0/9.png"} {
		if err := util.WriteFile(fs, filePath, []byte("stray"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	extent, found, err := reader.Extent(context.Background(), 1)
	if err != nil {
		t.Fatalf("Extent failed: %v", err)
	}
	if want := (tile.Range{Z: 1, MinX: 1, MinY: 1, MaxX: 1, MaxY: 1}); !found || extent != want {
		t.Errorf("Extent = %v, %v, want %v, true", extent, found, want)
	}
}
