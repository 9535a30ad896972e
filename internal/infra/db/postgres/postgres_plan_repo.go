package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-ai-generation/internal/domain"
	"telegram-ai-generation/internal/domain/model"
	"telegram-ai-generation/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*PlanRepo)(nil)

type PlanRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

const planColumns = `id, name, sort_order, duration_days, photo_credits, video_credits, price_rub, created_at`

func (r *PlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	if p.IsZero() {
		return domain.ErrInvalidArgument
	}
	query := `
		INSERT INTO plans (` + planColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			sort_order = EXCLUDED.sort_order,
			duration_days = EXCLUDED.duration_days,
			photo_credits = EXCLUDED.photo_credits,
			video_credits = EXCLUDED.video_credits,
			price_rub = EXCLUDED.price_rub;`
	_, err := execSQL(ctx, r.pool, tx, query,
		p.ID, p.Name, p.SortOrder, p.DurationDays, p.PhotoCredits, p.VideoCredits, p.PriceRUB, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return mapRepoErr(err)
	}
	return nil
}

func (r *PlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, query, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *PlanRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE name = $1;`
	row, err := pickRow(ctx, r.pool, tx, query, name)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *PlanRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans ORDER BY sort_order, price_rub;`
	rows, err := queryRows(ctx, r.pool, tx, query)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(row pgx.Row) (*model.Plan, error) {
	var p model.Plan
	err := row.Scan(&p.ID, &p.Name, &p.SortOrder, &p.DurationDays,
		&p.PhotoCredits, &p.VideoCredits, &p.PriceRUB, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return &p, nil
}
