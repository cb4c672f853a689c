package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-authoring/internal/model"
)

// ErrBulkRunNotFound is returned when no run matches.
var ErrBulkRunNotFound = errors.New("bulk run not found")

type BulkRunRepository struct {
	pool *pgxpool.Pool
}

func NewBulkRunRepository(pool *pgxpool.Pool) *BulkRunRepository {
	return &BulkRunRepository{pool: pool}
}

const bulkRunColumns = `id, author, assignment_id, status, total, created, failed_at, error, created_at, updated_at, finished_at`

func (r *BulkRunRepository) Create(ctx context.Context, run *model.BulkRun) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO bulk_runs (id, author, assignment_id, status, total)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		run.ID, run.Author, run.AssignmentID, run.Status, run.Total,
	).Scan(&run.CreatedAt, &run.UpdatedAt)
}

func (r *BulkRunRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE bulk_runs SET status = $1, updated_at = NOW() WHERE id = $2`,
		model.BulkRunRunning, id)
	return err
}

// Finish records the final outcome of a run.
func (r *BulkRunRepository) Finish(ctx context.Context, id uuid.UUID, status model.BulkRunStatus, created []model.BulkCreatedProblem, failedAt *int, errMsg *string) error {
	if created == nil {
		created = []model.BulkCreatedProblem{}
	}
	data, err := json.Marshal(created)
	if err != nil {
		return fmt.Errorf("marshal created: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE bulk_runs
		 SET status = $1, created = $2, failed_at = $3, error = $4, updated_at = NOW(), finished_at = NOW()
		 WHERE id = $5`,
		status, data, failedAt, errMsg, id)
	return err
}

func (r *BulkRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.BulkRun, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bulkRunColumns+` FROM bulk_runs WHERE id = $1`, id)
	run, err := scanBulkRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBulkRunNotFound
	}
	return run, err
}

func (r *BulkRunRepository) ListByAuthor(ctx context.Context, author string, limit int) ([]model.BulkRun, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bulkRunColumns+` FROM bulk_runs WHERE author = $1 ORDER BY created_at DESC LIMIT $2`,
		author, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.BulkRun{}
	for rows.Next() {
		run, err := scanBulkRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanBulkRun(row pgx.Row) (*model.BulkRun, error) {
	var (
		run     model.BulkRun
		created []byte
	)
	if err := row.Scan(&run.ID, &run.Author, &run.AssignmentID, &run.Status, &run.Total, &created,
		&run.FailedAt, &run.Error, &run.CreatedAt, &run.UpdatedAt, &run.FinishedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(created, &run.Created); err != nil {
		return nil, fmt.Errorf("unmarshal created: %w", err)
	}
	return &run, nil
}
