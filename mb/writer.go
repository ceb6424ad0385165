package mb

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/eak1mov/go-compactcache/tile"
)

// Writer implements tile.Writer for a new MBTiles file.
// Tiles are inserted in a single transaction which Finalize commits.
type Writer struct {
	db     *sql.DB
	tx     *sql.Tx
	stmt   *sql.Stmt
	logger *slog.Logger
	tiles  int
}

type writerConfig struct {
	Metadata map[string]string
	Logger   *slog.Logger
}

type WriterOption func(*writerConfig)

func WithMetadata(metadata map[string]string) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// NewWriter creates the MBTiles schema in a new file at filePath.
func NewWriter(filePath string, opts ...WriterOption) (_ *Writer, err error) {
	config := writerConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	uri, err := databaseURI(filePath, "rwc")
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	_, err = db.Exec(`
		CREATE TABLE metadata (name TEXT, value TEXT);
		CREATE TABLE tiles (
			zoom_level INTEGER,
			tile_column INTEGER,
			tile_row INTEGER,
			tile_data BLOB
		);
	`)
	if err != nil {
		return nil, err
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for name, value := range config.Metadata {
		if _, err = tx.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", name, value); err != nil {
			return nil, err
		}
	}

	stmt, err := tx.Prepare("INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}

	return &Writer{db: db, tx: tx, stmt: stmt, logger: config.Logger}, nil
}

// Close releases the database. Tiles written without Finalize are discarded.
func (w *Writer) Close() error {
	var errs []error
	if w.tx != nil {
		errs = append(errs, w.stmt.Close(), w.tx.Rollback())
	}
	return errors.Join(append(errs, w.db.Close())...)
}

func (w *Writer) WriteTile(tileID tile.ID, tileData []byte) error {
	if w.tx == nil {
		return errors.New("mb: write after finalize")
	}
	if _, err := w.stmt.Exec(tileID.Z, tileID.X, flipRow(tileID.Z, tileID.Y), tileData); err != nil {
		return err
	}
	w.tiles++
	return nil
}

// Finalize commits the written tiles and indexes them.
func (w *Writer) Finalize() error {
	if w.tx == nil {
		return nil
	}
	tx := w.tx
	w.tx = nil

	if err := errors.Join(w.stmt.Close(), tx.Commit()); err != nil {
		return err
	}
	w.logger.Debug("compactcache: creating mbtiles index", "tiles", w.tiles)
	_, err := w.db.Exec("CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row)")
	return err
}
