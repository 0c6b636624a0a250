// Package archivedb keeps a sqlite index of every media file the mirror has
// downloaded. The archive tree stays the source of truth for whether a file
// exists; the index answers questions across identities without walking it.
package archivedb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"feedmirror/pkg/archivedb/migrations"
)

// Download is one indexed media file
type Download struct {
	Entry        string `db:"entry"`
	Identity     string `db:"identity"`
	PostID       string `db:"post_id"`
	Ordinal      int    `db:"ordinal"`
	Path         string `db:"path"`
	DownloadedAt int64  `db:"downloaded_at"`
}

// IdentityCount is the number of indexed downloads for one identity
type IdentityCount struct {
	Identity string `db:"identity"`
	Count    int    `db:"count"`
	LastAt   int64  `db:"last_at"`
}

// EntryKey is the primary key of a media file in the index
func EntryKey(identity, postID string, ordinal int) string {
	return fmt.Sprintf("%s/%s_%d", identity, postID, ordinal)
}

// DB is the download index
type DB struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (creating if needed) the index at path and migrates it
func Open(ctx context.Context, path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating index directory: %w", err)
		}
	}

	dbx, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening index: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY between them
	dbx.SetMaxOpenConns(1)

	if err := dbx.PingContext(ctx); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("error connecting to index: %w", err)
	}
	if err := migrations.Run(dbx); err != nil {
		dbx.Close()
		return nil, err
	}

	return &DB{db: dbx, now: time.Now}, nil
}

// Close releases the underlying database
func (d *DB) Close() error {
	return d.db.Close()
}

// Record upserts a downloaded media file. A zero DownloadedAt is stamped with the current time.
func (d *DB) Record(ctx context.Context, dl Download) error {
	if dl.Entry == "" {
		dl.Entry = EntryKey(dl.Identity, dl.PostID, dl.Ordinal)
	}
	if dl.DownloadedAt == 0 {
		dl.DownloadedAt = d.now().Unix()
	}

	query, args, err := sq.Replace("downloads").
		Columns("entry", "identity", "post_id", "ordinal", "path", "downloaded_at").
		Values(dl.Entry, dl.Identity, dl.PostID, dl.Ordinal, dl.Path, dl.DownloadedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %s", err)
	}

	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error recording download %s: %w", dl.Entry, err)
	}
	return nil
}

// Exists reports whether entry has been indexed
func (d *DB) Exists(ctx context.Context, entry string) (bool, error) {
	query, args, err := sq.Select("COUNT(*)").From("downloads").Where(sq.Eq{"entry": entry}).ToSql()
	if err != nil {
		return false, fmt.Errorf("error constructing sql: %s", err)
	}

	var count int
	if err := d.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("error looking up %s: %w", entry, err)
	}
	return count > 0, nil
}

// Downloads lists the indexed files of identity, newest first. A limit of 0 returns all of them.
func (d *DB) Downloads(ctx context.Context, identity string, limit uint64) ([]Download, error) {
	b := sq.Select("*").From("downloads").
		Where(sq.Eq{"identity": identity}).
		OrderBy("downloaded_at DESC", "entry")
	if limit > 0 {
		b = b.Limit(limit)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var out []Download
	if err := d.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("error listing downloads: %w", err)
	}
	return out, nil
}

// Stats returns per-identity download counts ordered by identity
func (d *DB) Stats(ctx context.Context) ([]IdentityCount, error) {
	query, args, err := sq.Select("identity", "COUNT(*) AS count", "MAX(downloaded_at) AS last_at").
		From("downloads").
		GroupBy("identity").
		OrderBy("identity").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var out []IdentityCount
	if err := d.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("error computing stats: %w", err)
	}
	return out, nil
}
