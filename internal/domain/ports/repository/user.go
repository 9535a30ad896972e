package repository

import (
	"context"

	"telegram-ai-generation/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByTelegramID(ctx context.Context, tx Tx, telegramID int64) (*model.User, error)
	TouchLastActive(ctx context.Context, tx Tx, telegramID int64) error
	CountUsers(ctx context.Context, tx Tx) (int, error)
}
