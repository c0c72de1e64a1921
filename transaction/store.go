package transaction

import (
	"context"

	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/types"
)

// Store persists ledger transactions.
type Store interface {
	// CreateTransaction inserts a transaction row.
	CreateTransaction(ctx context.Context, t *Transaction) error

	// GetTransaction returns a transaction by ID.
	GetTransaction(ctx context.Context, txnID id.TransactionID) (*Transaction, error)

	// ListTransactions returns transactions matching opts, ordered by
	// OccurredAt ascending.
	ListTransactions(ctx context.Context, opts ListOpts) ([]*Transaction, error)

	// SetTransactionMirrorStatus updates a transaction's mirror status.
	SetTransactionMirrorStatus(ctx context.Context, txnID id.TransactionID, status types.MirrorStatus) error

	// ListUnmirroredTransactions returns transactions whose mirror status
	// still needs replication, up to limit rows.
	ListUnmirroredTransactions(ctx context.Context, limit int) ([]*Transaction, error)
}
