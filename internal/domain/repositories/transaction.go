package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles database transactions.
// Repositories pick up the transaction from the context passed to fn.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
