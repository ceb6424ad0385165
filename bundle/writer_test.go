package bundle_test

import (
	"errors"
	"os"
	"testing"

	"github.com/eak1mov/go-compactcache/bundle"
	"github.com/eak1mov/go-compactcache/bundle/spec"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"
)

func TestWriterReader(t *testing.T) {
	for name, fs := range map[string]billy.Filesystem{
		"memfs": memfs.New(),
		"osfs":  osfs.New(t.TempDir()),
	} {
		t.Run(name, func(t *testing.T) {
			key := spec.Key{Z: 1, Row: 128}
			acc := bundle.NewAccumulator(key)
			if err := acc.Insert(72, 5, []byte("tile-200-5")); err != nil {
				t.Fatal(err)
			}

			writer := bundle.NewWriter(fs)
			n, err := writer.WriteBundle(acc)
			if err != nil {
				t.Fatalf("WriteBundle failed: %v", err)
			}
			if got, want := uint64(n), acc.FileSize(); got != want {
				t.Errorf("WriteBundle wrote %v bytes, want %v", got, want)
			}

			infos, err := fs.ReadDir("L01")
			if err != nil {
				t.Fatalf("ReadDir failed: %v", err)
			}
			var names []string
			for _, info := range infos {
				names = append(names, info.Name())
			}
			if diff := cmp.Diff([]string{"R0080C0000.bundle"}, names); diff != "" {
				t.Errorf("level directory mismatch (-want+got):\n%v", diff)
			}

			reader, err := bundle.OpenReader(fs, key.Path())
			if err != nil {
				t.Fatalf("OpenReader failed: %v", err)
			}
			defer reader.Close()

			if got, want := reader.Count(), 1; got != want {
				t.Errorf("Count() = %v, want = %v", got, want)
			}
			tileData, err := reader.ReadTile(72, 5)
			if err != nil {
				t.Fatalf("ReadTile failed: %v", err)
			}
			if got, want := string(tileData), "tile-200-5"; got != want {
				t.Errorf("ReadTile = %q, want = %q", got, want)
			}
		})
	}
}

var errDiskFull = errors.New("disk full")

type failingFS struct {
	billy.Filesystem
}

func (fs failingFS) TempFile(dir, prefix string) (billy.File, error) {
	file, err := fs.Filesystem.TempFile(dir, prefix)
	if err != nil {
		return nil, err
	}
	return failingFile{file}, nil
}

type failingFile struct {
	billy.File
}

func (f failingFile) Write(p []byte) (int, error) {
	n, _ := f.File.Write(p[:len(p)/2])
	return n, errDiskFull
}

func TestWriterFailureLeavesNoFile(t *testing.T) {
	fs := failingFS{memfs.New()}
	acc := bundle.NewAccumulator(spec.Key{Z: 3})
	if err := acc.Insert(1, 2, []byte("data")); err != nil {
		t.Fatal(err)
	}

	_, err := bundle.NewWriter(fs).WriteBundle(acc)
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("WriteBundle = %v, want %v", err, errDiskFull)
	}

	infos, err := fs.ReadDir("L03")
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("failed write left %d files behind", len(infos))
	}
	if _, err := util.ReadFile(fs, acc.Key().Path()); !os.IsNotExist(err) {
		t.Errorf("bundle visible after failed write: %v", err)
	}
}
