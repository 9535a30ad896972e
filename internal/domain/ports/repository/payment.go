package repository

import (
	"context"
	"time"

	"telegram-ai-generation/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByTxID(ctx context.Context, tx Tx, txID string) (*model.Payment, error)
	// ListPendingOlderThan returns pending payments created before cutoff,
	// oldest first, limited to limit rows. The reconciler drains these.
	ListPendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Payment, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus) error
}
