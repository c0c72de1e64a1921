// Package mirror replicates primary-store financial mutations onto an
// external append-only ledger, and reconstructs resident-scoped views from
// it. Replication is best-effort and at-least-once: the external ledger's
// availability never gates a primary write.
package mirror

import (
	"errors"
	"time"

	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/types"
)

// Sentinel errors for external ledger interactions.
var (
	// ErrNotRegistered is returned by Chain.Get when no record exists for an
	// origin ID.
	ErrNotRegistered = errors.New("mirror: record not registered")
	// ErrAlreadyExists is returned by Chain.Submit when the external ledger
	// already holds a record for the origin ID.
	ErrAlreadyExists = errors.New("mirror: record already exists")
)

// Kind names the primary-store origin of a mirrored mutation.
type Kind string

const (
	KindUtilityPayment Kind = "utility_payment"
	KindTransaction    Kind = "transaction"
	KindDocument       Kind = "document"
)

// Outcome of one replication attempt.
type Outcome string

const (
	// OutcomeCreated means this attempt wrote the external record.
	OutcomeCreated Outcome = "created"
	// OutcomeSkippedExists means the external record was already present;
	// nothing was written (the idempotency path).
	OutcomeSkippedExists Outcome = "skipped_exists"
	// OutcomeFailed means the attempt failed; it may be retried later.
	OutcomeFailed Outcome = "failed"
)

// IntegrityStatus is the result of comparing a primary-side artifact against
// its mirrored hash. The five states are mutually exclusive and exhaustive.
type IntegrityStatus string

const (
	// IntegrityVerified: hashes match.
	IntegrityVerified IntegrityStatus = "verified"
	// IntegrityEdited: the primary artifact's hash differs from the mirror.
	IntegrityEdited IntegrityStatus = "edited"
	// IntegrityDeleted: the primary artifact is missing.
	IntegrityDeleted IntegrityStatus = "deleted"
	// IntegrityNotRegistered: no external record exists yet.
	IntegrityNotRegistered IntegrityStatus = "not_registered"
	// IntegrityError: the external lookup itself failed.
	IntegrityError IntegrityStatus = "error"
)

// Record is the external-ledger-side representation of a mirrored mutation,
// keyed by the primary-side origin ID. The external ledger is append-only:
// Deleted is a tombstone, never a physical delete.
type Record struct {
	ID          id.MirrorID `json:"id"`
	OriginID    id.ID       `json:"origin_id"`
	Kind        Kind        `json:"kind"`
	SubjectID   id.ID       `json:"subject_id,omitempty"`
	Amount      types.Money `json:"amount"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Description string      `json:"description,omitempty"`
	TxID        string      `json:"tx_id,omitempty"`
	ContentHash string      `json:"content_hash,omitempty"`
	Deleted     bool        `json:"deleted,omitempty"`
	RecordedAt  time.Time   `json:"recorded_at"`
}

// TransactionKey returns the stable key used to deduplicate records when a
// resident-scoped view unions several subject queries: the external ledger's
// transaction ID when present, else a composite of origin, amount and time.
func (r Record) TransactionKey() string {
	if r.TxID != "" {
		return r.TxID
	}
	return r.OriginID.String() + "/" + r.Amount.FormatMajor() + "/" +
		r.OccurredAt.UTC().Format(time.RFC3339)
}

// Request is one queued replication attempt handed to the dispatch worker.
type Request struct {
	Kind     Kind
	OriginID id.ID
	Record   Record

	// EntryID is set for utility payment mirrors so the per-entry mirror
	// status can be updated once the attempt settles.
	EntryID id.EntryID
}

// Deduplicate collapses records sharing a transaction key, keeping the first
// occurrence. Input order is preserved.
func Deduplicate(records []Record) []Record {
	seen := make(map[string]bool, len(records))
	result := make([]Record, 0, len(records))
	for _, r := range records {
		key := r.TransactionKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, r)
	}
	return result
}
