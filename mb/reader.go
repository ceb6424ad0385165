// Package mb reads and writes tilesets in MBTiles format.
//
// MBTiles stores rows in the TMS scheme (counted from the bottom); the
// package converts them to tile.ID rows counted from the top.
//
// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before using this package.
package mb

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/eak1mov/go-compactcache/tile"
)

// Reader is a tile.Source over an MBTiles file.
// It is safe for concurrent use; every range query runs on its own connection.
type Reader struct {
	db       *sql.DB
	tileStmt *sql.Stmt
}

// databaseURI returns the sqlite URI of filePath opened with the given mode.
// The path is escaped, so names holding '?' or '#' are kept intact.
func databaseURI(filePath, mode string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", err
	}
	uriPath := filepath.ToSlash(absPath)
	if !strings.HasPrefix(uriPath, "/") {
		uriPath = "/" + uriPath
	}
	uri := url.URL{Scheme: "file", Path: uriPath, RawQuery: "mode=" + mode}
	return uri.String(), nil
}

// NewReader opens the MBTiles file at filePath read-only.
//
// The returned Reader must be closed after use to release database resources.
func NewReader(filePath string) (*Reader, error) {
	uri, err := databaseURI(filePath, "ro")
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, err
	}

	tileStmt, err := db.Prepare("SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Reader{db: db, tileStmt: tileStmt}, nil
}

func (r *Reader) Close() error {
	return errors.Join(r.tileStmt.Close(), r.db.Close())
}

func (r *Reader) ReadMetadata() (map[string]string, error) {
	metadata := make(map[string]string)

	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		metadata[name] = value
	}
	return metadata, rows.Err()
}

func flipRow(z, y uint32) uint32 {
	return uint32(1<<z-1) - y
}

func (r *Reader) ReadTile(tileID tile.ID) ([]byte, error) {
	if !tileID.Valid() {
		return make([]byte, 0), nil
	}
	var tileData []byte
	err := r.tileStmt.QueryRow(tileID.Z, tileID.X, flipRow(tileID.Z, tileID.Y)).Scan(&tileData)
	if errors.Is(err, sql.ErrNoRows) {
		return make([]byte, 0), nil
	}
	return tileData, err
}

// VisitRange implements tile.RangeVisitor. Tiles are visited by ascending column.
func (r *Reader) VisitRange(ctx context.Context, tileRange tile.Range, visitor func(tile.ID, []byte) error) error {
	full := tile.FullRange(tileRange.Z)
	tileRange, ok := tileRange.Intersect(full)
	if !ok {
		return nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT tile_column, tile_row, tile_data FROM tiles
		WHERE zoom_level = ? AND tile_column BETWEEN ? AND ? AND tile_row BETWEEN ? AND ?
		ORDER BY tile_column`,
		tileRange.Z, tileRange.MinX, tileRange.MaxX,
		flipRow(tileRange.Z, tileRange.MaxY), flipRow(tileRange.Z, tileRange.MinY))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var x, y uint32
		var tileData []byte
		if err := rows.Scan(&x, &y, &tileData); err != nil {
			return err
		}
		if len(tileData) == 0 {
			continue
		}

		tileID := tile.ID{X: x, Y: flipRow(tileRange.Z, y), Z: tileRange.Z}
		if !tileID.Valid() {
			continue
		}
		if err := visitor(tileID, tileData); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Extent implements tile.Extenter. Rows outside the tile grid of z are ignored.
func (r *Reader) Extent(ctx context.Context, z uint32) (tile.Range, bool, error) {
	if z > tile.MaxZoom {
		return tile.Range{}, false, nil
	}
	last := tile.FullRange(z).MaxX
	var minX, minY, maxX, maxY sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MIN(tile_column), MIN(tile_row), MAX(tile_column), MAX(tile_row)
		FROM tiles WHERE zoom_level = ? AND length(tile_data) > 0
		AND tile_column BETWEEN 0 AND ? AND tile_row BETWEEN 0 AND ?`,
		z, last, last).Scan(&minX, &minY, &maxX, &maxY)
	if err != nil {
		return tile.Range{}, false, err
	}
	if !minX.Valid {
		return tile.Range{}, false, nil
	}

	return tile.Range{
		Z:    z,
		MinX: uint32(minX.Int64),
		MinY: flipRow(z, uint32(maxY.Int64)),
		MaxX: uint32(maxX.Int64),
		MaxY: flipRow(z, uint32(minY.Int64)),
	}, true, nil
}

// ZoomLevels implements tile.Extenter.
func (r *Reader) ZoomLevels(ctx context.Context) ([]uint32, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT zoom_level FROM tiles WHERE zoom_level BETWEEN 0 AND ? ORDER BY zoom_level", tile.MaxZoom)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := make([]uint32, 0)
	for rows.Next() {
		var z uint32
		if err := rows.Scan(&z); err != nil {
			return nil, err
		}
		levels = append(levels, z)
	}
	return levels, rows.Err()
}
