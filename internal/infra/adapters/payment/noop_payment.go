package payment

import (
	"context"
	"fmt"
	"sync"

	"telegram-ai-generation/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev runs and tests.
// Transactions stay PENDING until Confirm or Cancel is called.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	statuses map[string]string
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{statuses: make(map[string]string)}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) CreateTransaction(ctx context.Context, amountRUB int64, description string) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	txID := fmt.Sprintf("noop-%d", g.seq)
	g.statuses[txID] = adapter.TxStatusPending
	return txID, "https://example.test/pay/" + txID, nil
}

func (g *NoopPaymentGateway) TransactionStatus(ctx context.Context, txID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.statuses[txID]
	if !ok {
		return "", fmt.Errorf("noop: transaction %s not found", txID)
	}
	return status, nil
}

// Confirm flips a pending transaction to CONFIRMED. Test hook.
func (g *NoopPaymentGateway) Confirm(txID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[txID] = adapter.TxStatusConfirmed
}

// Cancel flips a pending transaction to CANCELED. Test hook.
func (g *NoopPaymentGateway) Cancel(txID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[txID] = adapter.TxStatusCanceled
}
