// Package store defines the persistence interface consumed by the billing
// engine. Drivers live in subpackages (memory, mongo, postgres) and must
// satisfy the full Store contract.
package store

import (
	"context"

	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/transaction"
	"github.com/civicledger/billing/types"
	"github.com/civicledger/billing/utilitypay"
)

// Store is the combined persistence contract for fee schedules, utility
// payment records, and ledger transactions.
//
// Drivers return the sentinel errors declared in the root billing package
// (ErrRecordNotFound, ErrDuplicateRecord, ErrConflict and friends) so
// callers never need to know which backend is in use.
type Store interface {
	// Fee schedule.

	// AppendFeeEntry persists a fee schedule entry. Entries are append
	// only; history is never rewritten.
	AppendFeeEntry(ctx context.Context, entry *feeschedule.Entry) error

	// FeeHistory returns every schedule entry for the category ordered by
	// EffectiveFrom ascending, ties broken by RecordedAt ascending.
	FeeHistory(ctx context.Context, category feeschedule.Category) ([]*feeschedule.Entry, error)

	// Utility payment records.

	// GetRecord fetches the record addressed by key, or ErrRecordNotFound.
	GetRecord(ctx context.Context, key utilitypay.Key) (*utilitypay.Record, error)

	// InsertRecord stores a new record. The (household, fee type, period)
	// key is unique; a duplicate insert returns ErrDuplicateRecord.
	InsertRecord(ctx context.Context, rec *utilitypay.Record) error

	// UpdateRecord replaces the record if its stored version still equals
	// expectedVersion, bumping the version on success. A stale version
	// returns ErrConflict; a missing record returns ErrRecordNotFound.
	UpdateRecord(ctx context.Context, rec *utilitypay.Record, expectedVersion int64) error

	// DeleteRecord removes the record addressed by key, or
	// ErrRecordNotFound.
	DeleteRecord(ctx context.Context, key utilitypay.Key) error

	// ListPaidRecords returns records with at least one payment entry for
	// the given fee types, restricted to periods overlapping rng when rng
	// is non-zero.
	ListPaidRecords(ctx context.Context, feeTypes []feeschedule.FeeType, rng types.PeriodRange) ([]*utilitypay.Record, error)

	// SetEntryMirrorStatus updates the mirror status of one payment entry
	// without bumping the record version.
	SetEntryMirrorStatus(ctx context.Context, key utilitypay.Key, entryID id.EntryID, status types.MirrorStatus) error

	// ListUnmirroredEntries returns up to limit records that still carry
	// pending or failed payment entries.
	ListUnmirroredEntries(ctx context.Context, limit int) ([]*utilitypay.Record, error)

	// Transactions.

	// CreateTransaction persists a ledger transaction.
	CreateTransaction(ctx context.Context, txn *transaction.Transaction) error

	// GetTransaction fetches a transaction by ID, or
	// ErrTransactionNotFound.
	GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error)

	// ListTransactions returns transactions matching opts ordered by
	// OccurredAt ascending.
	ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error)

	// SetTransactionMirrorStatus updates the mirror status of one
	// transaction.
	SetTransactionMirrorStatus(ctx context.Context, txnID id.TransactionID, status types.MirrorStatus) error

	// ListUnmirroredTransactions returns up to limit transactions whose
	// mirror status is pending or failed.
	ListUnmirroredTransactions(ctx context.Context, limit int) ([]*transaction.Transaction, error)

	// Lifecycle.

	// Migrate creates collections, tables, and indexes as needed. Safe to
	// call repeatedly.
	Migrate(ctx context.Context) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close(ctx context.Context) error
}
