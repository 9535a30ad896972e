// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-ai-generation/internal/domain/model"
	"telegram-ai-generation/internal/domain/ports/adapter"
	"telegram-ai-generation/internal/domain/ports/repository"
	"telegram-ai-generation/internal/infra/metrics"
)

var _ PaymentUseCase = (*paymentUC)(nil)

// PaymentUseCase creates gateway transactions and finalizes them. ConfirmAuto
// is the single confirmation path, shared by the reconciler; on CONFIRMED it
// grants the purchased plan through the ledger.
type PaymentUseCase interface {
	Create(ctx context.Context, userID int64, planID string) (*model.Payment, error)
	ConfirmAuto(ctx context.Context, paymentID string) (*model.Payment, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	plans    repository.PlanRepository
	gateway  adapter.PaymentGateway
	ledger   CreditLedger
	sink     adapter.DeliverySink
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	plans repository.PlanRepository,
	gateway adapter.PaymentGateway,
	ledger CreditLedger,
	sink adapter.DeliverySink,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUseCase").Logger()
	return &paymentUC{payments: payments, plans: plans, gateway: gateway, ledger: ledger, sink: sink, log: &l}
}

func (p *paymentUC) Create(ctx context.Context, userID int64, planID string) (*model.Payment, error) {
	plan, err := p.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("Plan %s for %d", plan.Name, userID)
	txID, payURL, err := p.gateway.CreateTransaction(ctx, plan.PriceRUB, desc)
	if err != nil {
		return nil, err
	}
	pay, err := model.NewPayment(ulid.Make().String(), userID, plan, txID, payURL)
	if err != nil {
		return nil, err
	}
	if err := p.payments.Save(ctx, repository.NoTX, pay); err != nil {
		return nil, err
	}
	metrics.IncPayment("initiated")
	p.log.Info().Str("payment_id", pay.ID).Int64("tg_id", userID).Str("plan", plan.Name).
		Str("tx_id", txID).Msg("payment created")
	return pay, nil
}

func (p *paymentUC) ConfirmAuto(ctx context.Context, paymentID string) (*model.Payment, error) {
	pay, err := p.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	if pay.Status != model.PaymentStatusPending {
		return pay, nil
	}

	status, err := p.gateway.TransactionStatus(ctx, pay.TxID)
	if err != nil {
		return nil, err
	}

	switch status {
	case adapter.TxStatusConfirmed:
		if _, err := p.ledger.GrantPlan(ctx, pay.UserID, pay.PlanID); err != nil {
			// Keep the payment pending so the reconciler retries the grant.
			return nil, err
		}
		if err := p.payments.UpdateStatus(ctx, repository.NoTX, pay.ID, model.PaymentStatusConfirmed); err != nil {
			return nil, err
		}
		pay.Status = model.PaymentStatusConfirmed
		metrics.IncPayment("confirmed")
		p.log.Info().Str("payment_id", pay.ID).Int64("tg_id", pay.UserID).Msg("payment confirmed, plan granted")
		if p.sink != nil {
			if err := p.sink.Notify(ctx, pay.UserID, "Payment confirmed! Your plan is now active."); err != nil {
				p.log.Warn().Err(err).Str("payment_id", pay.ID).Msg("confirmation notice failed")
			}
		}
	case adapter.TxStatusCanceled:
		if err := p.payments.UpdateStatus(ctx, repository.NoTX, pay.ID, model.PaymentStatusCanceled); err != nil {
			return nil, err
		}
		pay.Status = model.PaymentStatusCanceled
		metrics.IncPayment("canceled")
	case adapter.TxStatusChargeback:
		if err := p.payments.UpdateStatus(ctx, repository.NoTX, pay.ID, model.PaymentStatusChargeback); err != nil {
			return nil, err
		}
		pay.Status = model.PaymentStatusChargeback
		metrics.IncPayment("chargeback")
	}
	return pay, nil
}
