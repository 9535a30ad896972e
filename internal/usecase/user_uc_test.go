//go:build !integration

// File: internal/usecase/user_uc_test.go
package usecase

import (
	"context"
	"errors"
	"testing"

	"telegram-ai-generation/internal/domain"
	"telegram-ai-generation/internal/domain/model"
	"telegram-ai-generation/internal/domain/ports/repository"
)

func newUserFixture(t *testing.T) (*userUC, *memUserRepo, *memGrantRepo) {
	t.Helper()
	users := newMemUserRepo()
	grants := newMemGrantRepo()
	plans := newMemPlanRepo()

	launch, err := model.NewPlan("plan-launch", "Launch", 2, 1, 1, 0)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	_ = plans.Save(context.Background(), repository.NoTX, launch)

	ledger := NewCreditLedger(grants, plans, NewMockTxManager(), "Launch", 100, newTestLogger())
	return NewUserUseCase(users, ledger), users, grants
}

func TestUserUseCase_EnsureUser(t *testing.T) {
	ctx := context.Background()

	t.Run("registers a new user and activates the default grant", func(t *testing.T) {
		uc, users, grants := newUserFixture(t)

		usr, err := uc.EnsureUser(ctx, 101, "alice")

		if err != nil {
			t.Fatalf("EnsureUser: %v", err)
		}
		if usr.TelegramID != 101 || usr.Username != "alice" {
			t.Errorf("user = %+v", usr)
		}
		if _, err := users.FindByTelegramID(ctx, repository.NoTX, 101); err != nil {
			t.Errorf("user not persisted: %v", err)
		}
		if _, err := grants.FindActiveByUser(ctx, repository.NoTX, 101); err != nil {
			t.Errorf("default grant missing: %v", err)
		}
	})

	t.Run("is idempotent for a known user", func(t *testing.T) {
		uc, _, grants := newUserFixture(t)
		if _, err := uc.EnsureUser(ctx, 101, "alice"); err != nil {
			t.Fatalf("first EnsureUser: %v", err)
		}
		first, _ := grants.FindActiveByUser(ctx, repository.NoTX, 101)

		if _, err := uc.EnsureUser(ctx, 101, "alice"); err != nil {
			t.Fatalf("second EnsureUser: %v", err)
		}
		second, _ := grants.FindActiveByUser(ctx, repository.NoTX, 101)

		if first == nil || second == nil || first.ID != second.ID {
			t.Errorf("grant replaced on repeat call: %+v -> %+v", first, second)
		}
	})

	t.Run("rejects a zero telegram id", func(t *testing.T) {
		uc, _, _ := newUserFixture(t)

		_, err := uc.EnsureUser(ctx, 0, "nobody")

		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestUserUseCase_Count(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newUserFixture(t)

	for i := int64(1); i <= 3; i++ {
		if _, err := uc.EnsureUser(ctx, 100+i, "u"); err != nil {
			t.Fatalf("EnsureUser %d: %v", i, err)
		}
	}

	n, err := uc.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}
