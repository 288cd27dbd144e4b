package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/tanmaysk001/Browser-Agent/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	sqlCreateRuns = `
        CREATE TABLE IF NOT EXISTS agent_runs (
            run_id     TEXT PRIMARY KEY,
            task       TEXT NOT NULL,
            output     TEXT NOT NULL,
            memory     TEXT NOT NULL,
            iterations INTEGER NOT NULL,
            completed  BOOLEAN NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );
    `
	sqlCreateNotes = `
        CREATE TABLE IF NOT EXISTS agent_notes (
            run_id     TEXT NOT NULL REFERENCES agent_runs (run_id) ON DELETE CASCADE,
            task       TEXT NOT NULL,
            note       TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );
    `
	sqlInsertRun = `
        INSERT INTO agent_runs (run_id, task, output, memory, iterations, completed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (run_id) DO UPDATE SET
            output = EXCLUDED.output,
            memory = EXCLUDED.memory,
            iterations = EXCLUDED.iterations,
            completed = EXCLUDED.completed;
    `
	sqlInsertNote = `
        INSERT INTO agent_notes (run_id, task, note, created_at)
        VALUES ($1, $2, $3, $4);
    `
	sqlRecallNotes = `
        SELECT note
        FROM agent_notes
        ORDER BY (task = $1) DESC, created_at DESC
        LIMIT $2;
    `
)

// Store is the PostgreSQL implementation of schemas.MemoryStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.MemoryStore = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// EnsureSchema creates the memory tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{sqlCreateRuns, sqlCreateNotes} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create memory schema: %w", err)
		}
	}
	return nil
}

// Remember stores the run and the note derived from it in one transaction.
func (s *Store) Remember(ctx context.Context, rec schemas.RunRecord) error {
	createdAt := createdAtOf(rec)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed, which is expected.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlInsertRun,
		rec.RunID, rec.Task, rec.Output, rec.Memory, rec.Iterations, rec.Completed, createdAt,
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rec.RunID, err)
	}
	if _, err := tx.Exec(ctx, sqlInsertNote, rec.RunID, rec.Task, Note(rec), createdAt); err != nil {
		return fmt.Errorf("failed to insert note for run %s: %w", rec.RunID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Run stored in long-term memory.", zap.String("run_id", rec.RunID))
	return nil
}

// Recall returns up to limit notes, those from the same task first, newest first.
func (s *Store) Recall(ctx context.Context, task string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, sqlRecallNotes, task, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []string
	for rows.Next() {
		var note string
		if err := rows.Scan(&note); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return notes, nil
}

// Close is a no-op; the pool belongs to whoever created it.
func (s *Store) Close() {}
