package repository

import (
	"context"
	"time"

	"telegram-ai-generation/internal/domain/model"
)

// GrantRepository is the port for subscription grants. Charge and Refund are
// the two atomic ledger mutations: each one is a single conditional update
// whose affected-row count decides success, so no read-check-write window is
// visible to concurrent callers.
type GrantRepository interface {
	Save(ctx context.Context, tx Tx, g *model.Grant) error
	FindActiveByUser(ctx context.Context, tx Tx, userID int64) (*model.Grant, error)

	// Charge decrements the kind counter of the user's active, non-expired
	// grant by one, only if the counter is positive. Returns the remaining
	// count after the decrement, or domain.ErrNoCreditsLeft when the
	// predicate matched no row.
	Charge(ctx context.Context, tx Tx, userID int64, kind model.CreditKind, now time.Time) (int, error)

	// Refund increments the kind counter of the user's currently active
	// grant. Returns domain.ErrNoActiveGrant when the user has none.
	Refund(ctx context.Context, tx Tx, userID int64, kind model.CreditKind) (int, error)

	// DeactivateByUser flips every active grant of the user to inactive and
	// returns how many rows changed.
	DeactivateByUser(ctx context.Context, tx Tx, userID int64) (int, error)

	// ListExpiredActive returns active grants whose expiry has passed.
	ListExpiredActive(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Grant, error)

	// LockUser serializes grant mutations for one user within the given
	// transaction (advisory xact lock on Postgres).
	LockUser(ctx context.Context, tx Tx, userID int64) error
}
