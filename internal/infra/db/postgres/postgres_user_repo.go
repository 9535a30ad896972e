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

var _ repository.UserRepository = (*UserRepo)(nil)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if u == nil || u.TelegramID == 0 {
		return domain.ErrInvalidArgument
	}
	query := `
		INSERT INTO users (telegram_id, username, registered_at, last_active_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = EXCLUDED.username,
			last_active_at = EXCLUDED.last_active_at;`
	_, err := execSQL(ctx, r.pool, tx, query, u.TelegramID, u.Username, u.RegisteredAt, u.LastActiveAt)
	if err != nil {
		return mapRepoErr(err)
	}
	return nil
}

func (r *UserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, telegramID int64) (*model.User, error) {
	query := `
		SELECT telegram_id, username, registered_at, last_active_at
		FROM users WHERE telegram_id = $1;`
	row, err := pickRow(ctx, r.pool, tx, query, telegramID)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := row.Scan(&u.TelegramID, &u.Username, &u.RegisteredAt, &u.LastActiveAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return &u, nil
}

func (r *UserRepo) TouchLastActive(ctx context.Context, tx repository.Tx, telegramID int64) error {
	query := `UPDATE users SET last_active_at = now() WHERE telegram_id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, query, telegramID)
	if err != nil {
		return mapRepoErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT count(*) FROM users;`)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return n, nil
}
