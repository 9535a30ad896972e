// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-ai-generation/internal/domain"
	"telegram-ai-generation/internal/domain/model"
	"telegram-ai-generation/internal/domain/ports/repository"
	"telegram-ai-generation/internal/infra/metrics"
)

// Compile-time check
var _ CreditLedger = (*ledgerUC)(nil)

// CreditLedger owns plan assignment and the per-user photo/video counters.
// Charge and Refund are single atomic conditional updates; callers never see
// a partially applied mutation.
type CreditLedger interface {
	// EnsureDefaultGrant activates the operator-designated default plan for
	// users that have no active grant. Idempotent; safe on every entry point.
	EnsureDefaultGrant(ctx context.Context, userID int64) error

	// Charge takes one credit of kind from the user's active, non-expired
	// grant. Returns the remaining count or domain.ErrNoCreditsLeft.
	Charge(ctx context.Context, userID int64, kind model.CreditKind) (int, error)

	// Refund returns one credit of kind to whatever grant is active now.
	// A refund with no active grant is dropped with a warning, not an error.
	Refund(ctx context.Context, userID int64, kind model.CreditKind) error

	// GrantPlan deactivates the user's current grant and activates a fresh
	// one built from the plan.
	GrantPlan(ctx context.Context, userID int64, planID string) (*model.Grant, error)

	// ActiveRemaining reports the active grant's counters, activating the
	// default plan first when the user has none yet.
	ActiveRemaining(ctx context.Context, userID int64) (photo, video int, err error)

	// FinishExpired deactivates expired grants and re-grants the default
	// plan. Returns how many users were swept.
	FinishExpired(ctx context.Context) (int, error)
}

type ledgerUC struct {
	grants      repository.GrantRepository
	plans       repository.PlanRepository
	tm          repository.TransactionManager
	defaultPlan string
	expiryBatch int
	now         func() time.Time
	log         *zerolog.Logger
}

func NewCreditLedger(
	grants repository.GrantRepository,
	plans repository.PlanRepository,
	tm repository.TransactionManager,
	defaultPlan string,
	expiryBatch int,
	logger *zerolog.Logger,
) *ledgerUC {
	l := logger.With().Str("component", "CreditLedger").Logger()
	if expiryBatch <= 0 {
		expiryBatch = 200
	}
	return &ledgerUC{
		grants:      grants,
		plans:       plans,
		tm:          tm,
		defaultPlan: defaultPlan,
		expiryBatch: expiryBatch,
		now:         time.Now,
		log:         &l,
	}
}

func (l *ledgerUC) Charge(ctx context.Context, userID int64, kind model.CreditKind) (int, error) {
	if !kind.Valid() {
		return 0, domain.ErrInvalidArgument
	}
	remaining, err := l.grants.Charge(ctx, repository.NoTX, userID, kind, l.now())
	if err != nil {
		if errors.Is(err, domain.ErrNoCreditsLeft) {
			metrics.IncCharge(string(kind), "rejected")
			return 0, domain.ErrNoCreditsLeft
		}
		return 0, err
	}
	metrics.IncCharge(string(kind), "ok")
	l.log.Debug().Int64("tg_id", userID).Str("kind", string(kind)).Int("remaining", remaining).Msg("credit charged")
	return remaining, nil
}

func (l *ledgerUC) Refund(ctx context.Context, userID int64, kind model.CreditKind) error {
	if !kind.Valid() {
		return domain.ErrInvalidArgument
	}
	remaining, err := l.grants.Refund(ctx, repository.NoTX, userID, kind)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveGrant) {
			// The grant charged earlier is gone and nothing replaced it.
			// Dropping the refund is the documented best-effort policy.
			metrics.IncRefundLost(string(kind))
			l.log.Warn().Int64("tg_id", userID).Str("kind", string(kind)).Msg("refund dropped: no active grant")
			return nil
		}
		return err
	}
	metrics.IncRefund(string(kind))
	l.log.Debug().Int64("tg_id", userID).Str("kind", string(kind)).Int("remaining", remaining).Msg("credit refunded")
	return nil
}

func (l *ledgerUC) GrantPlan(ctx context.Context, userID int64, planID string) (*model.Grant, error) {
	plan, err := l.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, err
	}
	var granted *model.Grant
	err = l.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		granted, err = l.grantPlanTx(ctx, tx, userID, plan)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.IncGrantActivated(plan.Name)
	l.log.Info().Int64("tg_id", userID).Str("plan", plan.Name).Str("grant_id", granted.ID).
		Time("expires_at", granted.ExpiresAt).Msg("plan granted")
	return granted, nil
}

// grantPlanTx enforces the single-active-grant invariant: deactivate first,
// insert after, all under the per-user advisory lock. A partial unique index
// on (user_id) WHERE status='active' backstops racing writers.
func (l *ledgerUC) grantPlanTx(ctx context.Context, tx repository.Tx, userID int64, plan *model.Plan) (*model.Grant, error) {
	if err := l.grants.LockUser(ctx, tx, userID); err != nil {
		return nil, err
	}
	if _, err := l.grants.DeactivateByUser(ctx, tx, userID); err != nil {
		return nil, err
	}
	g, err := model.NewGrant(uuid.NewString(), userID, plan, l.now())
	if err != nil {
		return nil, err
	}
	if err := l.grants.Save(ctx, tx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (l *ledgerUC) EnsureDefaultGrant(ctx context.Context, userID int64) error {
	_, err := l.grants.FindActiveByUser(ctx, repository.NoTX, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	plan, err := l.resolveDefaultPlan(ctx)
	if err != nil {
		return err
	}
	_, err = l.GrantPlan(ctx, userID, plan.ID)
	return err
}

func (l *ledgerUC) ActiveRemaining(ctx context.Context, userID int64) (int, int, error) {
	g, err := l.grants.FindActiveByUser(ctx, repository.NoTX, userID)
	if errors.Is(err, domain.ErrNotFound) {
		if err := l.EnsureDefaultGrant(ctx, userID); err != nil {
			return 0, 0, err
		}
		g, err = l.grants.FindActiveByUser(ctx, repository.NoTX, userID)
		if err != nil {
			return 0, 0, err
		}
		return g.RemainingPhoto, g.RemainingVideo, nil
	}
	if err != nil {
		return 0, 0, err
	}
	return g.RemainingPhoto, g.RemainingVideo, nil
}

func (l *ledgerUC) FinishExpired(ctx context.Context) (int, error) {
	expired, err := l.grants.ListExpiredActive(ctx, repository.NoTX, l.now(), l.expiryBatch)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	plan, err := l.resolveDefaultPlan(ctx)
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, g := range expired {
		err := l.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			_, err := l.grantPlanTx(ctx, tx, g.UserID, plan)
			return err
		})
		if err != nil {
			l.log.Error().Err(err).Int64("tg_id", g.UserID).Str("grant_id", g.ID).Msg("expiry fallback failed")
			continue
		}
		swept++
	}
	return swept, nil
}

// resolveDefaultPlan picks the operator-designated plan by name, falling back
// to the first catalog entry when the name is missing.
func (l *ledgerUC) resolveDefaultPlan(ctx context.Context) (*model.Plan, error) {
	plan, err := l.plans.FindByName(ctx, repository.NoTX, l.defaultPlan)
	if err == nil {
		return plan, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	all, err := l.plans.ListAll(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, domain.ErrNotFound
	}
	return all[0], nil
}
