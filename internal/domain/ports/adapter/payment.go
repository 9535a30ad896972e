package adapter

import "context"

// TxStatus values mirror the gateway's transaction lifecycle.
const (
	TxStatusPending    = "PENDING"
	TxStatusConfirmed  = "CONFIRMED"
	TxStatusCanceled   = "CANCELED"
	TxStatusChargeback = "CHARGEBACK"
)

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string

	// CreateTransaction initiates a payment and returns the gateway
	// transaction id plus the URL the user pays at.
	CreateTransaction(ctx context.Context, amountRUB int64, description string) (txID string, payURL string, err error)

	// TransactionStatus returns one of the TxStatus* values for a
	// previously created transaction.
	TransactionStatus(ctx context.Context, txID string) (string, error)
}
