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

var _ repository.GrantRepository = (*GrantRepo)(nil)

type GrantRepo struct {
	pool *pgxpool.Pool
}

func NewGrantRepo(pool *pgxpool.Pool) *GrantRepo {
	return &GrantRepo{pool: pool}
}

const grantColumns = `id, user_id, plan_id, activated_at, expires_at, remaining_photo, remaining_video, status`

func (r *GrantRepo) Save(ctx context.Context, tx repository.Tx, g *model.Grant) error {
	if g == nil || g.ID == "" {
		return domain.ErrInvalidArgument
	}
	query := `
		INSERT INTO credit_grants (` + grantColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			expires_at = EXCLUDED.expires_at,
			remaining_photo = EXCLUDED.remaining_photo,
			remaining_video = EXCLUDED.remaining_video,
			status = EXCLUDED.status;`
	_, err := execSQL(ctx, r.pool, tx, query,
		g.ID, g.UserID, g.PlanID, g.ActivatedAt, g.ExpiresAt,
		g.RemainingPhoto, g.RemainingVideo, string(g.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return mapRepoErr(err)
	}
	return nil
}

func (r *GrantRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID int64) (*model.Grant, error) {
	query := `
		SELECT ` + grantColumns + `
		FROM credit_grants
		WHERE user_id = $1 AND status = 'active'
		ORDER BY activated_at DESC
		LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, query, userID)
	if err != nil {
		return nil, err
	}
	return scanGrant(row)
}

// Charge decrements one credit of the given kind on the user's active,
// unexpired grant. The conditional UPDATE is the single source of truth:
// zero matched rows means no credit was available, and nothing changed.
func (r *GrantRepo) Charge(ctx context.Context, tx repository.Tx, userID int64, kind model.CreditKind, now time.Time) (int, error) {
	col, err := creditColumn(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
		UPDATE credit_grants
		SET %[1]s = %[1]s - 1
		WHERE user_id = $1 AND status = 'active' AND %[1]s > 0 AND expires_at > $2
		RETURNING %[1]s;`, col)
	row, err := pickRow(ctx, r.pool, tx, query, userID, now)
	if err != nil {
		return 0, err
	}
	var remaining int
	if err := row.Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNoCreditsLeft
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return remaining, nil
}

// Refund credits one unit back onto whatever grant is active now. It is the
// compensation half of Charge; expiry is deliberately not checked so a refund
// never fails on a grant that lapsed mid-generation.
func (r *GrantRepo) Refund(ctx context.Context, tx repository.Tx, userID int64, kind model.CreditKind) (int, error) {
	col, err := creditColumn(kind)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
		UPDATE credit_grants
		SET %[1]s = %[1]s + 1
		WHERE user_id = $1 AND status = 'active'
		RETURNING %[1]s;`, col)
	row, err := pickRow(ctx, r.pool, tx, query, userID)
	if err != nil {
		return 0, err
	}
	var remaining int
	if err := row.Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNoActiveGrant
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return remaining, nil
}

func (r *GrantRepo) DeactivateByUser(ctx context.Context, tx repository.Tx, userID int64) (int, error) {
	query := `
		UPDATE credit_grants
		SET status = 'inactive'
		WHERE user_id = $1 AND status = 'active';`
	tag, err := execSQL(ctx, r.pool, tx, query, userID)
	if err != nil {
		return 0, mapRepoErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *GrantRepo) ListExpiredActive(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Grant, error) {
	if limit <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	query := `
		SELECT ` + grantColumns + `
		FROM credit_grants
		WHERE status = 'active' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, query, now, limit)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	defer rows.Close()

	var out []*model.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// LockUser takes a transaction-scoped advisory lock keyed by the user id, so
// the deactivate-then-insert swap in grant activation cannot interleave for
// the same user. Only valid inside a transaction.
func (r *GrantRepo) LockUser(ctx context.Context, tx repository.Tx, userID int64) error {
	if _, ok := tx.(pgx.Tx); !ok {
		return domain.ErrInvalidExecContext
	}
	row, err := pickRow(ctx, r.pool, tx, `SELECT pg_advisory_xact_lock($1);`, userID)
	if err != nil {
		return err
	}
	var ignored interface{}
	if err := row.Scan(&ignored); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	return nil
}

func creditColumn(kind model.CreditKind) (string, error) {
	switch kind {
	case model.CreditPhoto:
		return "remaining_photo", nil
	case model.CreditVideo:
		return "remaining_video", nil
	default:
		return "", domain.ErrInvalidArgument
	}
}

func scanGrant(row pgx.Row) (*model.Grant, error) {
	var g model.Grant
	var status string
	err := row.Scan(&g.ID, &g.UserID, &g.PlanID, &g.ActivatedAt, &g.ExpiresAt,
		&g.RemainingPhoto, &g.RemainingVideo, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	g.Status = model.GrantStatus(status)
	return &g, nil
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidExecContext):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
}
