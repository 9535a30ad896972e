package model

import (
	"time"

	"telegram-ai-generation/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusConfirmed  PaymentStatus = "confirmed"
	PaymentStatusCanceled   PaymentStatus = "canceled"
	PaymentStatusChargeback PaymentStatus = "chargeback"
)

// Payment is one purchase attempt for a plan. TxID is the gateway transaction
// id used to poll confirmation; the reconciler flips pending payments to a
// final status and grants the plan on confirmation.
type Payment struct {
	ID        string
	UserID    int64
	PlanID    string
	AmountRUB int64
	TxID      string
	PayURL    string
	Status    PaymentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewPayment(id string, userID int64, plan *Plan, txID, payURL string) (*Payment, error) {
	if id == "" || userID == 0 || plan.IsZero() || txID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Payment{
		ID:        id,
		UserID:    userID,
		PlanID:    plan.ID,
		AmountRUB: plan.PriceRUB,
		TxID:      txID,
		PayURL:    payURL,
		Status:    PaymentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
