package bundle

import (
	"errors"
	"log/slog"

	"github.com/eak1mov/go-compactcache/bundle/spec"
	"github.com/go-git/go-billy/v5"
)

// Writer stores encoded bundles below the cache root of a filesystem,
// one directory per zoom level.
//
// A bundle becomes visible under its final name only once it has been
// written completely: data goes to a temporary file in the level directory
// which is then renamed. A failed write leaves no file behind.
type Writer struct {
	fs     billy.Filesystem
	logger *slog.Logger
}

type writerConfig struct {
	Logger *slog.Logger
}

type WriterOption func(*writerConfig)

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

func NewWriter(fs billy.Filesystem, opts ...WriterOption) *Writer {
	config := writerConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Writer{fs: fs, logger: config.Logger}
}

// WriteBundle encodes the accumulator and stores it. It returns the number of bytes written.
func (w *Writer) WriteBundle(a *Accumulator) (int, error) {
	data, err := Encode(a)
	if err != nil {
		return 0, err
	}
	if err := w.writeFile(a.Key(), data); err != nil {
		return 0, err
	}
	w.logger.Debug("compactcache: bundle written", "bundle", a.Key().Path(), "tiles", a.Count(), "bytes", len(data))
	return len(data), nil
}

func (w *Writer) writeFile(key spec.Key, data []byte) (err error) {
	dirPath := spec.LevelDir(key.Z)
	if err := w.fs.MkdirAll(dirPath, 0755); err != nil {
		return err
	}

	file, err := w.fs.TempFile(dirPath, "."+key.FileName()+"-")
	if err != nil {
		return err
	}
	tempPath := file.Name()
	defer func() {
		if err != nil {
			err = errors.Join(err, w.fs.Remove(tempPath))
		}
	}()

	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	return w.fs.Rename(tempPath, key.Path())
}
