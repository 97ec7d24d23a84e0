package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobledger/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type DB struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "open pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

func (db *DB) Healthy(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

const schema = `
	CREATE TABLE IF NOT EXISTS saga_events (
		id         TEXT PRIMARY KEY,
		saga_id    TEXT NOT NULL,
		timestamp  TIMESTAMPTZ NOT NULL DEFAULT now(),
		source     TEXT NOT NULL DEFAULT '',
		job        TEXT NOT NULL DEFAULT '',
		category   TEXT NOT NULL DEFAULT '',
		action     TEXT NOT NULL DEFAULT '',
		message    TEXT NOT NULL DEFAULT '',
		metadata   JSONB NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_saga_saga_id ON saga_events(saga_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_saga_job ON saga_events(job, timestamp DESC);

	CREATE TABLE IF NOT EXISTS executions (
		id          TEXT PRIMARY KEY,
		job         TEXT NOT NULL,
		image       TEXT NOT NULL,
		command     TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		error_kind  TEXT NOT NULL DEFAULT '',
		message     TEXT NOT NULL DEFAULT '',
		exit_code   INTEGER NOT NULL DEFAULT 0,
		output      TEXT NOT NULL DEFAULT '',
		duration_ms BIGINT NOT NULL DEFAULT 0,
		sequence    BIGINT NOT NULL DEFAULT 0,
		saga_id     TEXT NOT NULL DEFAULT '',
		archive_key TEXT NOT NULL DEFAULT '',
		started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		finished_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_executions_job ON executions(job, started_at DESC);
`

func Migrate(ctx context.Context, db *DB) error {
	_, err := db.Pool.Exec(ctx, schema)
	return errors.Wrap(err, "migrate")
}

const executionColumns = `id, job, image, command, status, error_kind, message, exit_code,
	output, duration_ms, sequence, saga_id, archive_key, started_at, finished_at`

func (db *DB) InsertExecution(ctx context.Context, e *model.Execution) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO executions (`+executionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.Job, e.Image, e.Command, string(e.Status), e.ErrorKind, e.Message, e.ExitCode,
		e.Output, e.DurationMs, int64(e.Sequence), e.SagaID, e.ArchiveKey, e.StartedAt, e.FinishedAt,
	)
	return errors.Wrapf(err, "insert execution %s", e.ID)
}

// ListExecutions returns executions newest first, filtered by job when job
// is non-empty.
func (db *DB) ListExecutions(ctx context.Context, job string, limit int) ([]model.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows pgx.Rows
		err  error
	)
	if job != "" {
		rows, err = db.Pool.Query(ctx,
			`SELECT `+executionColumns+` FROM executions WHERE job = $1 ORDER BY started_at DESC LIMIT $2`, job, limit)
	} else {
		rows, err = db.Pool.Query(ctx,
			`SELECT `+executionColumns+` FROM executions ORDER BY started_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, errors.Wrap(err, "list executions")
	}
	defer rows.Close()

	execs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Execution, error) {
		return scanExecution(row)
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan executions")
	}
	return execs, nil
}

func (db *DB) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+executionColumns+` FROM executions WHERE id = $1`, id)
	e, err := scanExecution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get execution %s", id)
	}
	return &e, nil
}

func scanExecution(row pgx.Row) (model.Execution, error) {
	var e model.Execution
	var status string
	var seq int64
	err := row.Scan(&e.ID, &e.Job, &e.Image, &e.Command, &status, &e.ErrorKind, &e.Message, &e.ExitCode,
		&e.Output, &e.DurationMs, &seq, &e.SagaID, &e.ArchiveKey, &e.StartedAt, &e.FinishedAt)
	e.Status = model.ExecStatus(status)
	e.Sequence = uint64(seq)
	return e, err
}
