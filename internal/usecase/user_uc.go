// File: internal/usecase/user_uc.go
package usecase

import (
	"context"
	"errors"

	"telegram-ai-generation/internal/domain"
	"telegram-ai-generation/internal/domain/model"
	"telegram-ai-generation/internal/domain/ports/repository"
)

var _ UserUseCase = (*userUC)(nil)

type UserUseCase interface {
	// EnsureUser upserts the user and guarantees a default grant exists,
	// so every entry point leaves the user chargeable.
	EnsureUser(ctx context.Context, telegramID int64, username string) (*model.User, error)
	Count(ctx context.Context) (int, error)
}

type userUC struct {
	users  repository.UserRepository
	ledger CreditLedger
}

func NewUserUseCase(users repository.UserRepository, ledger CreditLedger) *userUC {
	return &userUC{users: users, ledger: ledger}
}

func (u *userUC) EnsureUser(ctx context.Context, telegramID int64, username string) (*model.User, error) {
	usr, err := u.users.FindByTelegramID(ctx, repository.NoTX, telegramID)
	switch {
	case err == nil:
		if err := u.users.TouchLastActive(ctx, repository.NoTX, telegramID); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrNotFound):
		usr, err = model.NewUser(telegramID, username)
		if err != nil {
			return nil, err
		}
		if err := u.users.Save(ctx, repository.NoTX, usr); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := u.ledger.EnsureDefaultGrant(ctx, telegramID); err != nil {
		return nil, err
	}
	return usr, nil
}

func (u *userUC) Count(ctx context.Context) (int, error) {
	return u.users.CountUsers(ctx, repository.NoTX)
}
