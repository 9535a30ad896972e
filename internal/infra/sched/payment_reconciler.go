package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-ai-generation/internal/domain/ports/repository"
	"telegram-ai-generation/internal/usecase"
)

// PaymentReconciler polls the gateway for stale pending payments and drives
// them to a final status. It is the only confirmation path: there is no
// webhook dependency, so a missed redirect or a crash mid-confirm is healed
// on the next tick.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	payments   repository.PaymentRepository
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, payments repository.PaymentRepository, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	if interval <= 0 {
		interval = 20 * time.Second
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	if batch <= 0 {
		batch = 50
	}
	return &PaymentReconciler{uc: uc, payments: payments, interval: interval, staleAfter: staleAfter, batch: batch, log: &l}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting payment reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping payment reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending payments failed")
		return
	}
	for _, p := range pending {
		pay, err := w.uc.ConfirmAuto(ctx, p.ID)
		if err != nil {
			w.log.Warn().Err(err).Str("payment_id", p.ID).Msg("reconcile attempt failed")
			continue
		}
		if pay.Status != p.Status {
			w.log.Info().Str("payment_id", p.ID).Str("status", string(pay.Status)).Msg("payment reconciled")
		}
	}
}
