package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLite stores every layer in its own table keyed by record key.
type SQLite struct {
	db   *sql.DB
	opts Options
}

var _ Sink = (*SQLite)(nil)

func OpenSQLite(ctx context.Context, path string, opts Options) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, opts: opts}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	for _, layer := range Layers {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  key TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  written_at TEXT NOT NULL
)`, s.opts.table(layer))
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return errors.Wrapf(err, "creating table %s", s.opts.table(layer))
		}
	}
	return nil
}

func (s *SQLite) Write(ctx context.Context, layer Layer, key string, v interface{}) error {
	if !layer.valid() {
		return errors.Errorf("unknown layer %q", layer)
	}
	blob, err := encode(v)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (key, payload, written_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, written_at = excluded.written_at`, s.opts.table(layer))
	_, err = s.db.ExecContext(ctx, query, key, string(blob), time.Now().UTC().Format(time.RFC3339Nano))
	return errors.Wrapf(err, "writing %s record", layer)
}

// DB exposes the database handle.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Flush is a no-op, every Write is committed before it returns.
func (s *SQLite) Flush(ctx context.Context) error { return nil }

func (s *SQLite) Close() error {
	return s.db.Close()
}
