//go:build !integration

// File: internal/usecase/ledger_uc_test.go
package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"telegram-ai-generation/internal/domain"
	"telegram-ai-generation/internal/domain/model"
	"telegram-ai-generation/internal/domain/ports/repository"
)

// activeCount is a test-side peek at the single-active-grant invariant.
func (m *memGrantRepo) activeCount(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, g := range m.grants {
		if g.UserID == userID && g.Status == model.GrantStatusActive {
			n++
		}
	}
	return n
}

type ledgerFixture struct {
	grants *memGrantRepo
	plans  *memPlanRepo
	ledger *ledgerUC

	launch *model.Plan
	orbit  *model.Plan
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	grants := newMemGrantRepo()
	plans := newMemPlanRepo()

	launch, err := model.NewPlan("plan-launch", "Launch", 2, 1, 1, 0)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	orbit, err := model.NewPlan("plan-orbit", "Orbit", 30, 28, 20, 750)
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	ctx := context.Background()
	_ = plans.Save(ctx, repository.NoTX, launch)
	_ = plans.Save(ctx, repository.NoTX, orbit)

	ledger := NewCreditLedger(grants, plans, NewMockTxManager(), "Launch", 100, newTestLogger())
	return &ledgerFixture{grants: grants, plans: plans, ledger: ledger, launch: launch, orbit: orbit}
}

// seedGrant activates a grant with explicit counters and expiry.
func (f *ledgerFixture) seedGrant(t *testing.T, userID int64, photo, video int, expires time.Time) *model.Grant {
	t.Helper()
	g := &model.Grant{
		ID:             "grant-seed",
		UserID:         userID,
		PlanID:         f.orbit.ID,
		ActivatedAt:    time.Now().Add(-time.Hour),
		ExpiresAt:      expires,
		RemainingPhoto: photo,
		RemainingVideo: video,
		Status:         model.GrantStatusActive,
	}
	if err := f.grants.Save(context.Background(), repository.NoTX, g); err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	return g
}

func TestCreditLedger_Charge(t *testing.T) {
	ctx := context.Background()
	future := time.Now().Add(24 * time.Hour)

	t.Run("decrements the counter and returns the new count", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedGrant(t, 101, 3, 0, future)

		remaining, err := f.ledger.Charge(ctx, 101, model.CreditPhoto)

		if err != nil {
			t.Fatalf("Charge: %v", err)
		}
		if remaining != 2 {
			t.Errorf("remaining = %d, want 2", remaining)
		}
	})

	t.Run("rejects when the counter is exhausted", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedGrant(t, 101, 0, 1, future)

		if _, err := f.ledger.Charge(ctx, 101, model.CreditVideo); err != nil {
			t.Fatalf("first Charge: %v", err)
		}
		_, err := f.ledger.Charge(ctx, 101, model.CreditVideo)

		if !errors.Is(err, domain.ErrNoCreditsLeft) {
			t.Errorf("err = %v, want ErrNoCreditsLeft", err)
		}
	})

	t.Run("rejects when the grant has expired", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedGrant(t, 101, 5, 5, time.Now().Add(-time.Minute))

		_, err := f.ledger.Charge(ctx, 101, model.CreditPhoto)

		if !errors.Is(err, domain.ErrNoCreditsLeft) {
			t.Errorf("err = %v, want ErrNoCreditsLeft", err)
		}
	})

	t.Run("rejects an unknown credit kind", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedGrant(t, 101, 5, 5, future)

		_, err := f.ledger.Charge(ctx, 101, model.CreditKind("audio"))

		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("never overdraws under concurrent charges", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedGrant(t, 101, 10, 0, future)

		var wg sync.WaitGroup
		var mu sync.Mutex
		ok, rejected := 0, 0
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.ledger.Charge(ctx, 101, model.CreditPhoto)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, domain.ErrNoCreditsLeft):
					rejected++
				}
			}()
		}
		wg.Wait()

		if ok != 10 || rejected != 40 {
			t.Errorf("ok = %d, rejected = %d, want 10/40", ok, rejected)
		}
		if got := f.grants.remaining(101, model.CreditPhoto); got != 0 {
			t.Errorf("remaining = %d, want 0", got)
		}
	})
}

func TestCreditLedger_Refund(t *testing.T) {
	ctx := context.Background()
	future := time.Now().Add(24 * time.Hour)

	t.Run("returns the credit to the active grant", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedGrant(t, 101, 3, 0, future)
		if _, err := f.ledger.Charge(ctx, 101, model.CreditPhoto); err != nil {
			t.Fatalf("Charge: %v", err)
		}

		if err := f.ledger.Refund(ctx, 101, model.CreditPhoto); err != nil {
			t.Fatalf("Refund: %v", err)
		}

		if got := f.grants.remaining(101, model.CreditPhoto); got != 3 {
			t.Errorf("remaining = %d, want 3", got)
		}
	})

	t.Run("lands on the grant active now, not the one charged", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedGrant(t, 101, 1, 0, future)
		if _, err := f.ledger.Charge(ctx, 101, model.CreditPhoto); err != nil {
			t.Fatalf("Charge: %v", err)
		}
		if _, err := f.ledger.GrantPlan(ctx, 101, f.orbit.ID); err != nil {
			t.Fatalf("GrantPlan: %v", err)
		}

		if err := f.ledger.Refund(ctx, 101, model.CreditPhoto); err != nil {
			t.Fatalf("Refund: %v", err)
		}

		if got := f.grants.remaining(101, model.CreditPhoto); got != f.orbit.PhotoCredits+1 {
			t.Errorf("remaining = %d, want %d", got, f.orbit.PhotoCredits+1)
		}
	})

	t.Run("is dropped without error when no grant is active", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedGrant(t, 101, 1, 0, future)
		if _, err := f.grants.DeactivateByUser(ctx, repository.NoTX, 101); err != nil {
			t.Fatalf("DeactivateByUser: %v", err)
		}

		if err := f.ledger.Refund(ctx, 101, model.CreditPhoto); err != nil {
			t.Errorf("Refund = %v, want nil (best-effort drop)", err)
		}
	})
}

func TestCreditLedger_GrantPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("deactivates the previous grant before activating the new one", func(t *testing.T) {
		f := newLedgerFixture(t)

		if _, err := f.ledger.GrantPlan(ctx, 101, f.launch.ID); err != nil {
			t.Fatalf("GrantPlan launch: %v", err)
		}
		g, err := f.ledger.GrantPlan(ctx, 101, f.orbit.ID)
		if err != nil {
			t.Fatalf("GrantPlan orbit: %v", err)
		}

		if n := f.grants.activeCount(101); n != 1 {
			t.Errorf("active grants = %d, want 1", n)
		}
		if g.RemainingPhoto != f.orbit.PhotoCredits || g.RemainingVideo != f.orbit.VideoCredits {
			t.Errorf("counters = %d/%d, want %d/%d", g.RemainingPhoto, g.RemainingVideo, f.orbit.PhotoCredits, f.orbit.VideoCredits)
		}
	})

	t.Run("fails on an unknown plan", func(t *testing.T) {
		f := newLedgerFixture(t)

		_, err := f.ledger.GrantPlan(ctx, 101, "plan-missing")

		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestCreditLedger_EnsureDefaultGrant(t *testing.T) {
	ctx := context.Background()

	t.Run("activates the default plan exactly once", func(t *testing.T) {
		f := newLedgerFixture(t)

		if err := f.ledger.EnsureDefaultGrant(ctx, 101); err != nil {
			t.Fatalf("first EnsureDefaultGrant: %v", err)
		}
		first, err := f.grants.FindActiveByUser(ctx, repository.NoTX, 101)
		if err != nil {
			t.Fatalf("FindActiveByUser: %v", err)
		}

		if err := f.ledger.EnsureDefaultGrant(ctx, 101); err != nil {
			t.Fatalf("second EnsureDefaultGrant: %v", err)
		}
		second, err := f.grants.FindActiveByUser(ctx, repository.NoTX, 101)
		if err != nil {
			t.Fatalf("FindActiveByUser: %v", err)
		}

		if first.ID != second.ID {
			t.Errorf("grant replaced on repeat call: %s -> %s", first.ID, second.ID)
		}
		if first.PlanID != f.launch.ID {
			t.Errorf("plan = %s, want default %s", first.PlanID, f.launch.ID)
		}
	})
}

func TestCreditLedger_ActiveRemaining(t *testing.T) {
	ctx := context.Background()

	t.Run("activates the default plan for a fresh user", func(t *testing.T) {
		f := newLedgerFixture(t)

		photo, video, err := f.ledger.ActiveRemaining(ctx, 101)

		if err != nil {
			t.Fatalf("ActiveRemaining: %v", err)
		}
		if photo != f.launch.PhotoCredits || video != f.launch.VideoCredits {
			t.Errorf("counters = %d/%d, want %d/%d", photo, video, f.launch.PhotoCredits, f.launch.VideoCredits)
		}
	})
}

func TestCreditLedger_FinishExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces expired grants with the default plan", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedGrant(t, 101, 4, 4, time.Now().Add(-time.Hour))

		swept, err := f.ledger.FinishExpired(ctx)

		if err != nil {
			t.Fatalf("FinishExpired: %v", err)
		}
		if swept != 1 {
			t.Errorf("swept = %d, want 1", swept)
		}
		g, err := f.grants.FindActiveByUser(ctx, repository.NoTX, 101)
		if err != nil {
			t.Fatalf("FindActiveByUser: %v", err)
		}
		if g.PlanID != f.launch.ID {
			t.Errorf("plan = %s, want default %s", g.PlanID, f.launch.ID)
		}
		if g.Expired(time.Now()) {
			t.Error("replacement grant is already expired")
		}
		if n := f.grants.activeCount(101); n != 1 {
			t.Errorf("active grants = %d, want 1", n)
		}
	})

	t.Run("sweeps nothing when no grant is expired", func(t *testing.T) {
		f := newLedgerFixture(t)
		f.seedGrant(t, 101, 4, 4, time.Now().Add(time.Hour))

		swept, err := f.ledger.FinishExpired(ctx)

		if err != nil {
			t.Fatalf("FinishExpired: %v", err)
		}
		if swept != 0 {
			t.Errorf("swept = %d, want 0", swept)
		}
	})
}
