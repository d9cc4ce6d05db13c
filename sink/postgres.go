package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// DBTX is the subset of pgx used by the Postgres sink, satisfied by pools,
// connections and transactions alike.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// Postgres stores every layer in its own JSONB table keyed by record key.
type Postgres struct {
	db    DBTX
	opts  Options
	close func()
}

var _ Sink = (*Postgres)(nil)

func OpenPostgres(ctx context.Context, dsn string, opts Options) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	s := NewPostgres(pool, opts)
	s.close = pool.Close
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgres(db DBTX, opts Options) *Postgres {
	return &Postgres{db: db, opts: opts}
}

// Migrate creates the layer tables when missing.
func (s *Postgres) Migrate(ctx context.Context) error {
	for _, layer := range Layers {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  key TEXT PRIMARY KEY,
  payload JSONB NOT NULL,
  written_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.opts.table(layer))
		if _, err := s.db.Exec(ctx, ddl); err != nil {
			return errors.Wrapf(err, "creating table %s", s.opts.table(layer))
		}
	}
	return nil
}

func (s *Postgres) Write(ctx context.Context, layer Layer, key string, v interface{}) error {
	if !layer.valid() {
		return errors.Errorf("unknown layer %q", layer)
	}
	blob, err := encode(v)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (key, payload) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, written_at = now()`, s.opts.table(layer))
	_, err = s.db.Exec(ctx, query, key, string(blob))
	return errors.Wrapf(err, "writing %s record", layer)
}

func (s *Postgres) Flush(ctx context.Context) error { return nil }

func (s *Postgres) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
