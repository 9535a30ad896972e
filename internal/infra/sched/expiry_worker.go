package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-ai-generation/internal/infra/metrics"
	"telegram-ai-generation/internal/usecase"
)

// ExpiryWorker periodically sweeps expired grants back to the default plan.
type ExpiryWorker struct {
	interval time.Duration
	ledger   usecase.CreditLedger
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, ledger usecase.CreditLedger, logger *zerolog.Logger) *ExpiryWorker {
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &ExpiryWorker{interval: interval, ledger: ledger, log: &l}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.ledger.FinishExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if n > 0 {
				metrics.IncGrantsExpired(n)
				w.log.Info().Int("count", n).Msg("expired grants swept")
			}
		}
	}
}
