package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/cognicore/geolm/pkg/geolm/internalerr"
)

// SQLiteSource stores corpus records in a SQLite database.
type SQLiteSource struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens a SQLite database with WAL mode enabled, creating the
// schema if needed.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteSource{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT UNIQUE NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	split TEXT NOT NULL,
	counts TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_split ON records(split);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRecord(ctx context.Context, db execer, r Record) (Record, error) {
	if err := r.normalize(); err != nil {
		return Record{}, err
	}

	res, err := db.ExecContext(ctx, `
INSERT INTO records (id, label, split, counts)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING`,
		r.ID, r.Label, string(r.Split), r.Counts)
	if err != nil {
		return Record{}, fmt.Errorf("insert record %q: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, err
	}
	if n == 0 {
		return Record{}, fmt.Errorf("%w: record %q", internalerr.ErrDuplicate, r.ID)
	}
	return r, nil
}

// Insert stores one record, assigning an id when it has none.
func (s *SQLiteSource) Insert(ctx context.Context, r Record) (Record, error) {
	return insertRecord(ctx, s.db, r)
}

// InsertAll stores records in one transaction. Records whose id is already
// present are skipped; the number stored is returned.
func (s *SQLiteSource) InsertAll(ctx context.Context, records []Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stored := 0
	for _, r := range records {
		if _, err := insertRecord(ctx, tx, r); err != nil {
			if errors.Is(err, internalerr.ErrDuplicate) {
				s.logger.Warn("skipping duplicate record", zap.String("id", r.ID))
				continue
			}
			return 0, err
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return stored, nil
}

// Records returns every record in insertion order.
func (s *SQLiteSource) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label, split, counts FROM records ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var split string
		if err := rows.Scan(&r.ID, &r.Label, &split, &r.Counts); err != nil {
			return nil, err
		}
		r.Split = Split(split)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of stored records.
func (s *SQLiteSource) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n)
	return n, err
}
