package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-ai-generation/internal/domain"
	"telegram-ai-generation/internal/domain/model"
	"telegram-ai-generation/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*PaymentRepo)(nil)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, plan_id, amount_rub, tx_id, pay_url, status, created_at, updated_at`

func (r *PaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidArgument
	}
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, query,
		p.ID, p.UserID, p.PlanID, p.AmountRUB, p.TxID, p.PayURL,
		string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return mapRepoErr(err)
	}
	return nil
}

func (r *PaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, query, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *PaymentRepo) FindByTxID(ctx context.Context, tx repository.Tx, txID string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE tx_id = $1;`
	row, err := pickRow(ctx, r.pool, tx, query, txID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *PaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, query, cutoff, limit)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus) error {
	query := `UPDATE payments SET status = $2, updated_at = now() WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, query, id, string(status))
	if err != nil {
		return mapRepoErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	var status string
	err := row.Scan(&p.ID, &p.UserID, &p.PlanID, &p.AmountRUB, &p.TxID,
		&p.PayURL, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	p.Status = model.PaymentStatus(status)
	return &p, nil
}
