package bundle

import (
	"errors"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/eak1mov/go-compactcache/bundle/spec"
	"github.com/go-git/go-billy/v5"
)

// WalkCache opens every bundle below the cache root of fs, level by level,
// and calls fn with its key and reader. The reader is closed after fn returns.
// Files that are not named like bundles are skipped.
func WalkCache(fs billy.Filesystem, fn func(key spec.Key, r *Reader) error) error {
	levels, err := fs.ReadDir("/")
	if err != nil {
		return err
	}

	paths := make([]string, 0)
	for _, level := range levels {
		if !level.IsDir() || !strings.HasPrefix(level.Name(), "L") {
			continue
		}
		files, err := fs.ReadDir(level.Name())
		if err != nil {
			return err
		}
		for _, file := range files {
			if !file.IsDir() && !strings.HasPrefix(file.Name(), ".") && strings.HasSuffix(file.Name(), spec.BundleExt) {
				paths = append(paths, path.Join(level.Name(), file.Name()))
			}
		}
	}
	slices.Sort(paths)

	for _, filePath := range paths {
		key, err := spec.ParsePath(filePath)
		if errors.Is(err, spec.ErrInvalidName) {
			continue
		}
		if err := walkBundle(fs, filePath, key, fn); err != nil {
			return err
		}
	}
	return nil
}

func walkBundle(fs billy.Filesystem, filePath string, key spec.Key, fn func(spec.Key, *Reader) error) error {
	r, err := OpenReader(fs, filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return errors.Join(fn(key, r), r.Close())
}
