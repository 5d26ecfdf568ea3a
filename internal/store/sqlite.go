package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/schema"
)

// SQLiteStore implements Store using modernc.org/sqlite. Fields are stored
// as a JSON document per record.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	revision   INTEGER NOT NULL DEFAULT 1,
	fields     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, c schema.Collection, fields map[string]any) (string, error) {
	if err := checkCollection(c); err != nil {
		return "", err
	}
	if err := checkFieldKeys(fields); err != nil {
		return "", err
	}
	doc, err := json.Marshal(withoutNils(fields))
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal fields")
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, collection, revision, fields, created_at, updated_at) VALUES (?, ?, 1, ?, ?, ?)`,
		id, string(c), string(doc), now, now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert %s record", c)
	}
	return id, nil
}

func (s *SQLiteStore) UpdateRecord(ctx context.Context, id string, revision int64, fields map[string]any) (int64, error) {
	if err := checkFieldKeys(fields); err != nil {
		return 0, err
	}
	// json_patch follows RFC 7396: null removes a key.
	patch, err := json.Marshal(fields)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: marshal patch")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET fields = json_patch(fields, ?), revision = revision + 1, updated_at = ?
		 WHERE id = ? AND revision = ?`,
		string(patch), time.Now().UTC(), id, revision,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: update record %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 1 {
		return revision + 1, nil
	}

	var current int64
	err = s.db.QueryRowContext(ctx, `SELECT revision FROM records WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, eris.Wrapf(model.ErrNotFound, "sqlite: record %s", id)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: read revision %s", id)
	}
	return 0, eris.Wrapf(model.ErrStaleWrite, "sqlite: record %s at revision %d, write based on %d", id, current, revision)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, collection, revision, fields FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "sqlite: record %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) QueryRecords(ctx context.Context, c schema.Collection, filter Filter) ([]Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	if err := checkFieldKeys(filter); err != nil {
		return nil, err
	}

	query := `SELECT id, collection, revision, fields FROM records WHERE collection = ?`
	args := []any{string(c)}
	for k, v := range filter {
		query += ` AND json_extract(fields, ?) = ?`
		args = append(args, "$."+k, v)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s", c)
	}
	defer rows.Close() //nolint:errcheck

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", c)
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: query iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*Record, error) {
	var rec Record
	var collection, doc string
	if err := row.Scan(&rec.ID, &collection, &rec.Revision, &doc); err != nil {
		return nil, err
	}
	rec.Collection = schema.Collection(collection)
	if err := json.Unmarshal([]byte(doc), &rec.Fields); err != nil {
		return nil, eris.Wrap(err, "unmarshal fields")
	}
	return &rec, nil
}
