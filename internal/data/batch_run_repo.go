package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/target/mmk-items-api/internal/core"
	"github.com/target/mmk-items-api/internal/data/pgxutil"
	"github.com/target/mmk-items-api/internal/domain/model"
	apperrors "github.com/target/mmk-items-api/internal/errors"
)

// Advisory lock keys for reaper operations, used with two-arg pg_try_advisory_xact_lock.
const (
	advisoryLockReaperMajor          = 1000
	advisoryLockReaperDeleteBatchRun = 1
)

const defaultBatchRunListLimit = 20

// BatchRunRepo persists batch run summaries.
type BatchRunRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var (
	_ core.BatchRunRepository = (*BatchRunRepo)(nil)
	_ core.ReaperRepository   = (*BatchRunRepo)(nil)
)

// NewBatchRunRepo creates a new BatchRunRepo with real time provider.
func NewBatchRunRepo(db *sql.DB) *BatchRunRepo {
	return &BatchRunRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewBatchRunRepoWithTimeProvider creates a new BatchRunRepo with a custom time provider.
func NewBatchRunRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *BatchRunRepo {
	return &BatchRunRepo{DB: db, timeProvider: tp}
}

// Create inserts a finished run summary.
func (r *BatchRunRepo) Create(ctx context.Context, summary *model.BatchRunSummary) error {
	if summary == nil {
		return errors.New("batch run summary is required")
	}
	if !summary.Status.Valid() {
		return fmt.Errorf("invalid batch run status: %q", summary.Status)
	}
	failures := summary.Failures
	if failures == nil {
		failures = []model.BatchFailure{}
	}

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, batchRunInsertQuery,
			summary.ID,
			summary.Status,
			summary.Total,
			summary.Succeeded,
			summary.Failed,
			failures,
			summary.Error,
			summary.StartedAt.UTC(),
			summary.FinishedAt.UTC(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create batch run: %w", apperrors.MapDBError(err))
	}
	return nil
}

// GetByID retrieves a run summary by ID.
func (r *BatchRunRepo) GetByID(ctx context.Context, id string) (*model.BatchRunSummary, error) {
	if !validID(id) {
		return nil, ErrBatchRunNotFound
	}
	out, err := pgxutil.QueryOne[model.BatchRunSummary](ctx, r.DB, batchRunGetByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchRunNotFound
		}
		return nil, fmt.Errorf("failed to get batch run by ID: %w", err)
	}
	return &out, nil
}

// List returns recent run summaries, newest first, optionally filtered by status.
func (r *BatchRunRepo) List(ctx context.Context, opts model.BatchRunListOptions) ([]*model.BatchRunSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultBatchRunListLimit
	}
	offset := max(opts.Offset, 0)

	var status *string
	if opts.Status != nil {
		if !opts.Status.Valid() {
			return nil, fmt.Errorf("invalid batch run status: %q", *opts.Status)
		}
		s := string(*opts.Status)
		status = &s
	}

	runs, err := pgxutil.QueryAll[model.BatchRunSummary](ctx, r.DB, batchRunListQuery, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch runs: %w", err)
	}
	return runs, nil
}

// DeleteOlderThan deletes runs that finished more than maxAge ago.
// Processes up to batchSize rows per call and skips the pass when another
// reaper instance holds the advisory lock.
func (r *BatchRunRepo) DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
				advisoryLockReaperMajor, advisoryLockReaperDeleteBatchRun).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}

			cutoff := r.timeProvider.Now().Add(-maxAge).UTC()
			res, err := tx.ExecContext(ctx, `
				DELETE FROM batch_runs
				WHERE id IN (
					SELECT id FROM batch_runs
					WHERE finished_at < $1
					ORDER BY finished_at
					LIMIT $2
				)`, cutoff, batchSize)
			if err != nil {
				return fmt.Errorf("delete old batch runs: %w", err)
			}
			rowsAffected, err = res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

const (
	batchRunColumns = `id, status, total, succeeded, failed, failures, error, started_at, finished_at`

	batchRunInsertQuery = `
		INSERT INTO batch_runs (` + batchRunColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	batchRunGetByIDQuery = `SELECT ` + batchRunColumns + ` FROM batch_runs WHERE id = $1`

	batchRunListQuery = `
		SELECT ` + batchRunColumns + `
		FROM batch_runs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY finished_at DESC, id
		LIMIT $2 OFFSET $3`
)
