package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-pcg/classify"
	"github.com/RyanBlaney/sonido-pcg/features"
	"github.com/RyanBlaney/sonido-pcg/logging"
	"github.com/vmihailenco/msgpack/v5"

	_ "modernc.org/sqlite"
)

// SQLiteIndex stores case records in a SQLite table, one row per case.
// Feature snapshots are kept msgpack-encoded in a BLOB column.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

// OpenSQLiteIndex opens (or creates) the database at path and runs
// migrations.
func OpenSQLiteIndex(ctx context.Context, path string) (*SQLiteIndex, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)

	idx := &SQLiteIndex{db: db, path: path}
	if err := idx.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.Debug("sqlite index opened", logging.Fields{"path": path})
	return idx, nil
}

func (s *SQLiteIndex) migrate(ctx context.Context) error {
	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA synchronous = FULL`,
	} {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS cases (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	age INTEGER NOT NULL CHECK(age >= 0 AND age <= 120),
	gender TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	created_at_unix_ms INTEGER NOT NULL,
	blob_key TEXT NOT NULL,
	source_key TEXT NOT NULL DEFAULT '',
	sample_rate INTEGER NOT NULL,
	num_samples INTEGER NOT NULL CHECK(num_samples >= 0),
	label TEXT NOT NULL DEFAULT '',
	features BLOB
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run sqlite migrations: %w", err)
	}
	return nil
}

// Load returns every case in insertion order.
func (s *SQLiteIndex) Load(ctx context.Context) ([]PatientCase, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, age, gender, notes, created_at_unix_ms, blob_key, source_key,
       sample_rate, num_samples, label, features
FROM cases ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var out []PatientCase
	for rows.Next() {
		var (
			c        PatientCase
			gender   string
			label    string
			created  int64
			featBlob []byte
		)
		if err := rows.Scan(&c.ID, &c.Metadata.Name, &c.Metadata.Age, &gender, &c.Metadata.Notes,
			&created, &c.BlobKey, &c.SourceKey, &c.SampleRate, &c.NumSamples, &label, &featBlob); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		c.Metadata.Gender = Gender(gender)
		c.Label = classify.Label(label)
		c.CreatedAt = time.UnixMilli(created).UTC()
		if len(featBlob) > 0 {
			var snap features.Snapshot
			if err := msgpack.Unmarshal(featBlob, &snap); err != nil {
				return nil, fmt.Errorf("decode features of case %s: %w", c.ID, err)
			}
			c.Features = &snap
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

// Append inserts one row inside a transaction.
func (s *SQLiteIndex) Append(ctx context.Context, c PatientCase) error {
	var featBlob []byte
	if c.Features != nil {
		b, err := msgpack.Marshal(c.Features)
		if err != nil {
			return fmt.Errorf("encode features: %w", err)
		}
		featBlob = b
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO cases (id, name, age, gender, notes, created_at_unix_ms, blob_key, source_key,
                   sample_rate, num_samples, label, features)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Metadata.Name, c.Metadata.Age, string(c.Metadata.Gender), c.Metadata.Notes,
		c.CreatedAt.UnixMilli(), c.BlobKey, c.SourceKey, c.SampleRate, c.NumSamples, string(c.Label), featBlob)
	if err != nil {
		return fmt.Errorf("insert case %s: %w", c.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit case %s: %w", c.ID, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteIndex) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ Index = (*SQLiteIndex)(nil)
