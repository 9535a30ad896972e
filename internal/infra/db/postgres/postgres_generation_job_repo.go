package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-ai-generation/internal/domain"
	"telegram-ai-generation/internal/domain/model"
	"telegram-ai-generation/internal/domain/ports/repository"
)

var _ repository.GenerationJobRepository = (*GenerationJobRepo)(nil)

type GenerationJobRepo struct {
	pool *pgxpool.Pool
}

func NewGenerationJobRepo(pool *pgxpool.Pool) *GenerationJobRepo {
	return &GenerationJobRepo{pool: pool}
}

const jobColumns = `id, user_id, kind, task_id, state, fail_reason, created_at, updated_at`

// Save upserts the job row. The orchestrator calls this on every state
// transition, so the upsert keeps the row current without a separate update
// method.
func (r *GenerationJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.GenerationJob) error {
	if job == nil || job.ID == "" {
		return domain.ErrInvalidArgument
	}
	query := `
		INSERT INTO generation_jobs (` + jobColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			task_id = EXCLUDED.task_id,
			state = EXCLUDED.state,
			fail_reason = EXCLUDED.fail_reason,
			updated_at = EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, tx, query,
		job.ID, job.UserID, string(job.Kind), job.TaskID, string(job.State),
		job.FailReason, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return mapRepoErr(err)
	}
	return nil
}

func (r *GenerationJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, query, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *GenerationJobRepo) ListNonTerminal(ctx context.Context, tx repository.Tx) ([]*model.GenerationJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM generation_jobs
		WHERE state IN ('submitted', 'polling')
		ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, query)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	defer rows.Close()

	var out []*model.GenerationJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *GenerationJobRepo) CountByState(ctx context.Context, tx repository.Tx) (map[model.JobState]int, error) {
	query := `SELECT state, count(*) FROM generation_jobs GROUP BY state;`
	rows, err := queryRows(ctx, r.pool, tx, query)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	defer rows.Close()

	out := make(map[model.JobState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out[model.JobState(state)] = n
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*model.GenerationJob, error) {
	var j model.GenerationJob
	var kind, state string
	err := row.Scan(&j.ID, &j.UserID, &kind, &j.TaskID, &state,
		&j.FailReason, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	j.Kind = model.CreditKind(kind)
	j.State = model.JobState(state)
	return &j, nil
}
