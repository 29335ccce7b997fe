package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/event-scout/internal/db"
	"github.com/sells-group/event-scout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO runs (id, request, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
	"update_run_status": `UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_run":      `UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, request, status, result, created_at, updated_at FROM runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	request    JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	fingerprint TEXT NOT NULL,
	title       TEXT NOT NULL,
	event_date  TEXT,
	venue       TEXT,
	score       INTEGER NOT NULL DEFAULT 0,
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (run_id, fingerprint)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
CREATE INDEX IF NOT EXISTS idx_events_fingerprint ON events(fingerprint);
CREATE INDEX IF NOT EXISTS idx_events_score ON events(score DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

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

func (s *PostgresStore) CreateRun(ctx context.Context, req model.DiscoveryRequest) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal request")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, request, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, reqJSON, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Request:   req,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(terminalStatus(result)), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var reqJSON []byte
	var resultNull *[]byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, request, status, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &reqJSON, &r.Status, &resultNull, &r.CreatedAt, &r.UpdatedAt)
	if errNoRows(err) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(reqJSON, &r.Request); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal request")
	}
	if resultNull != nil {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(*resultNull, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, request, status, result, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var reqJSON []byte
		var resultNull *[]byte

		if err := rows.Scan(&r.ID, &reqJSON, &r.Status, &resultNull, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(reqJSON, &r.Request); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal request")
		}
		if resultNull != nil {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal(*resultNull, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveEvents bulk-upserts the curated events for a run, keyed on the
// dedupe fingerprint so a re-run refreshes scores instead of duplicating
// rows.
func (s *PostgresStore) SaveEvents(ctx context.Context, runID string, events []model.ScoredEvent) error {
	if len(events) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal event %s", e.Title)
		}
		rows = append(rows, []any{
			uuid.New().String(), runID, e.Fingerprint(),
			e.Title, e.Date, e.Venue, e.Score, payload, now,
		})
	}

	_, err := db.Upsert{
		Table:   "events",
		Columns: []string{"id", "run_id", "fingerprint", "title", "event_date", "venue", "score", "payload", "created_at"},
		Keys:    []string{"run_id", "fingerprint"},
		Update:  []string{"title", "event_date", "venue", "score", "payload"},
	}.Apply(ctx, s.pool, rows)
	if err != nil {
		return eris.Wrapf(err, "postgres: save events for run %s", runID)
	}
	return nil
}

// errNoRows reports whether err is the pgx no-rows sentinel.
func errNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
