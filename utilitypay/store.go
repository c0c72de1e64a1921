package utilitypay

import (
	"context"

	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/types"
)

// Store persists utility payment records. Implementations must enforce key
// uniqueness and honor the version check on update so concurrent writers
// cannot silently drop each other's payment entries.
type Store interface {
	// GetRecord returns the record for a key.
	GetRecord(ctx context.Context, key Key) (*Record, error)

	// InsertRecord creates a record. A concurrent insert for the same key
	// must fail on the uniqueness constraint rather than produce duplicates.
	InsertRecord(ctx context.Context, r *Record) error

	// UpdateRecord replaces the record if the stored version still equals
	// expectedVersion, bumping the version. A version mismatch is a conflict,
	// not a lost update.
	UpdateRecord(ctx context.Context, r *Record, expectedVersion int64) error

	// DeleteRecord removes a record outright (administrative purge, or a
	// correction that removed the last entry).
	DeleteRecord(ctx context.Context, key Key) error

	// ListPaidRecords returns records with at least one payment entry for the
	// given fee types within the period range, for revenue aggregation.
	ListPaidRecords(ctx context.Context, feeTypes []feeschedule.FeeType, r types.PeriodRange) ([]*Record, error)

	// SetEntryMirrorStatus updates the mirror status of a single payment
	// entry without touching the rest of the record.
	SetEntryMirrorStatus(ctx context.Context, key Key, entryID id.EntryID, status types.MirrorStatus) error

	// ListUnmirroredEntries returns records containing entries whose mirror
	// status still needs replication, up to limit records.
	ListUnmirroredEntries(ctx context.Context, limit int) ([]*Record, error)
}
