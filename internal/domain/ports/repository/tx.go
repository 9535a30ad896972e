package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying transaction handle via `tx`.
//
// Use-case interfaces stay free of storage types; repository methods accept a
// `tx Tx` argument and detect the concrete handle (pgx.Tx for Postgres) on
// the implementation side. Repositories MUST gracefully accept a nil tx and
// run against the pool directly.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
