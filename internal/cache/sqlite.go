package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteBackend stores cache entries in a local SQLite file.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	return &SQLiteBackend{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	id         TEXT PRIMARY KEY,
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	payload    BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL,
	UNIQUE(namespace, key)
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`

func (s *SQLiteBackend) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "cache: migrate")
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}

func (s *SQLiteBackend) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM cache_entries
		 WHERE namespace = ? AND key = ? AND expires_at > datetime('now')`,
		namespace, key,
	)
	var payload []byte
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: get entry")
	}
	return payload, nil
}

func (s *SQLiteBackend) Put(ctx context.Context, namespace, key string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (id, namespace, key, payload, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET
			payload    = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		uuid.New().String(), namespace, key, payload, now, now.Add(ttl),
	)
	return eris.Wrap(err, "cache: put entry")
}

func (s *SQLiteBackend) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "cache: purge expired")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "cache: rows affected")
}

func (s *SQLiteBackend) Stats(ctx context.Context) ([]NamespaceStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT namespace,
			SUM(CASE WHEN expires_at >  datetime('now') THEN 1 ELSE 0 END),
			SUM(CASE WHEN expires_at <= datetime('now') THEN 1 ELSE 0 END)
		 FROM cache_entries GROUP BY namespace ORDER BY namespace`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "cache: stats")
	}
	defer rows.Close()

	var stats []NamespaceStats
	for rows.Next() {
		var ns NamespaceStats
		if err := rows.Scan(&ns.Namespace, &ns.Live, &ns.Expired); err != nil {
			return nil, eris.Wrap(err, "cache: scan stats")
		}
		stats = append(stats, ns)
	}
	return stats, eris.Wrap(rows.Err(), "cache: stats iterate")
}
