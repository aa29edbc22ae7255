// Package manifest keeps a SQLite ledger of every archive the pipeline has written.
package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS archives (
    path        TEXT PRIMARY KEY,
    source      TEXT NOT NULL,
    symbol      TEXT NOT NULL,
    asset_class TEXT NOT NULL,
    resolution  TEXT NOT NULL,
    kind        TEXT NOT NULL,
    rows        INTEGER NOT NULL,
    sha256      TEXT NOT NULL,
    first_ms    INTEGER,
    last_ms     INTEGER,
    run_id      TEXT,
    written_ms  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archives_source_symbol ON archives(source, symbol);
`

// Entry is one written archive or document.
type Entry struct {
	Path       string
	Source     string
	Symbol     string
	AssetClass string
	Resolution string
	Kind       string
	Rows       int
	SHA256     string
	First      time.Time
	Last       time.Time
	RunID      string
	WrittenAt  time.Time
}

// Store wraps the SQL handle.
type Store struct {
	DB *sql.DB
}

// Open opens (and creates if needed) the ledger at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("manifest path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create manifest directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply manifest schema: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close releases the underlying DB handle.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func toMs(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMs(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

// Record upserts e keyed by path. Rewriting an archive replaces its row.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.WrittenAt.IsZero() {
		e.WrittenAt = time.Now()
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO archives (
			path, source, symbol, asset_class, resolution, kind, rows, sha256, first_ms, last_ms, run_id, written_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			source = excluded.source,
			symbol = excluded.symbol,
			asset_class = excluded.asset_class,
			resolution = excluded.resolution,
			kind = excluded.kind,
			rows = excluded.rows,
			sha256 = excluded.sha256,
			first_ms = excluded.first_ms,
			last_ms = excluded.last_ms,
			run_id = excluded.run_id,
			written_ms = excluded.written_ms
	`,
		e.Path, e.Source, e.Symbol, e.AssetClass, e.Resolution, e.Kind, e.Rows, e.SHA256,
		toMs(e.First), toMs(e.Last), e.RunID, e.WrittenAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Path, err)
	}
	return nil
}

const selectColumns = `path, source, symbol, asset_class, resolution, kind, rows, sha256, first_ms, last_ms, run_id, written_ms`

func scanEntry(sc interface{ Scan(...any) error }) (Entry, error) {
	var (
		e           Entry
		first, last sql.NullInt64
		runID       sql.NullString
		writtenMs   int64
	)
	if err := sc.Scan(&e.Path, &e.Source, &e.Symbol, &e.AssetClass, &e.Resolution, &e.Kind, &e.Rows, &e.SHA256, &first, &last, &runID, &writtenMs); err != nil {
		return Entry{}, err
	}
	e.First, e.Last = fromMs(first), fromMs(last)
	e.RunID = runID.String
	e.WrittenAt = time.UnixMilli(writtenMs).UTC()
	return e, nil
}

// Get returns the entry for path; ok is false when none exists.
func (s *Store) Get(ctx context.Context, path string) (Entry, bool, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM archives WHERE path = ?`, path)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get %s: %w", path, err)
	}
	return e, true, nil
}

// List returns entries for source ordered by path; an empty source lists everything.
func (s *Store) List(ctx context.Context, source string) ([]Entry, error) {
	q := `SELECT ` + selectColumns + ` FROM archives`
	var args []any
	if source != "" {
		q += ` WHERE source = ?`
		args = append(args, source)
	}
	q += ` ORDER BY path`
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list manifest: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manifest row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastWritten returns the latest last-record time across a source's archives for
// symbol at resolution. It is zero when nothing was recorded.
func (s *Store) LastWritten(ctx context.Context, source, symbol, resolution string) (time.Time, error) {
	var v sql.NullInt64
	err := s.DB.QueryRowContext(ctx, `SELECT MAX(last_ms) FROM archives WHERE source = ? AND symbol = ? AND resolution = ?`,
		source, symbol, resolution).Scan(&v)
	if err != nil {
		return time.Time{}, fmt.Errorf("last written %s/%s/%s: %w", source, symbol, resolution, err)
	}
	return fromMs(v), nil
}
