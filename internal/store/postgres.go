package store

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/schema"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on a shared Postgres database. Fields are
// a JSONB document per record.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres connects a pool and pings the server.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	seq        BIGSERIAL UNIQUE,
	id         TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	revision   BIGINT NOT NULL DEFAULT 1,
	fields     JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection);
CREATE INDEX IF NOT EXISTS idx_records_fields ON records USING GIN (fields jsonb_path_ops);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRecord(ctx context.Context, c schema.Collection, fields map[string]any) (string, error) {
	if err := checkCollection(c); err != nil {
		return "", err
	}
	if err := checkFieldKeys(fields); err != nil {
		return "", err
	}
	doc, err := json.Marshal(withoutNils(fields))
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal fields")
	}

	id := uuid.New().String()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO records (id, collection, revision, fields) VALUES ($1, $2, 1, $3::jsonb)`,
		id, string(c), string(doc),
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert %s record", c)
	}
	return id, nil
}

func (s *PostgresStore) UpdateRecord(ctx context.Context, id string, revision int64, fields map[string]any) (int64, error) {
	if err := checkFieldKeys(fields); err != nil {
		return 0, err
	}

	cleared := []string{}
	for k, v := range fields {
		if v == nil {
			cleared = append(cleared, k)
		}
	}
	doc, err := json.Marshal(withoutNils(fields))
	if err != nil {
		return 0, eris.Wrap(err, "postgres: marshal patch")
	}

	var next int64
	err = s.pool.QueryRow(ctx,
		`UPDATE records SET fields = (fields - $2::text[]) || $1::jsonb, revision = revision + 1, updated_at = now()
		 WHERE id = $3 AND revision = $4 RETURNING revision`,
		string(doc), cleared, id, revision,
	).Scan(&next)
	if err == nil {
		return next, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(err, "postgres: update record %s", id)
	}

	var current int64
	err = s.pool.QueryRow(ctx, `SELECT revision FROM records WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(model.ErrNotFound, "postgres: record %s", id)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: read revision %s", id)
	}
	return 0, eris.Wrapf(model.ErrStaleWrite, "postgres: record %s at revision %d, write based on %d", id, current, revision)
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	var rec Record
	var collection string
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, collection, revision, fields FROM records WHERE id = $1`, id,
	).Scan(&rec.ID, &collection, &rec.Revision, &doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "postgres: record %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", id)
	}
	rec.Collection = schema.Collection(collection)
	if err := json.Unmarshal(doc, &rec.Fields); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal fields")
	}
	return &rec, nil
}

func (s *PostgresStore) QueryRecords(ctx context.Context, c schema.Collection, filter Filter) ([]Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	if err := checkFieldKeys(filter); err != nil {
		return nil, err
	}
	contains := make(map[string]any, len(filter))
	maps.Copy(contains, filter)
	doc, err := json.Marshal(contains)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal filter")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, collection, revision, fields FROM records
		 WHERE collection = $1 AND fields @> $2::jsonb ORDER BY seq`,
		string(c), string(doc),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s", c)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var collection string
		var fields []byte
		if err := rows.Scan(&rec.ID, &collection, &rec.Revision, &fields); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", c)
		}
		rec.Collection = schema.Collection(collection)
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal fields")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: query iterate")
}
