// Package transaction defines directly-recorded ledger transactions:
// revenue, expense and allocation rows that are not derived from utility
// payments or document fees.
package transaction

import (
	"time"

	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/types"
)

// Kind classifies the monetary direction of a transaction.
type Kind string

const (
	KindRevenue    Kind = "revenue"
	KindExpense    Kind = "expense"
	KindAllocation Kind = "allocation"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindRevenue || k == KindExpense || k == KindAllocation
}

// Utility fee transaction types. Transactions of these types duplicate what
// the utility payment ledger already records, so revenue aggregation skips
// them in favor of the per-entry ledger view.
const (
	TypeGarbageFee     = "garbage_fee"
	TypeStreetlightFee = "streetlight_fee"
)

// IsUtilityFeeType reports whether transactions of the given type are
// represented by the utility payment ledger instead.
func IsUtilityFeeType(t string) bool {
	return t == TypeGarbageFee || t == TypeStreetlightFee
}

// Transaction is one explicit ledger row. Rows created as the denormalized
// side effect of a utility payment carry the matching utility fee type.
type Transaction struct {
	types.Entity
	ID           id.TransactionID   `json:"id"`
	Kind         Kind               `json:"kind"`
	Type         string             `json:"type"`
	Amount       types.Money        `json:"amount"`
	OccurredAt   time.Time          `json:"occurred_at"`
	HouseholdID  id.HouseholdID     `json:"household_id,omitempty"`
	ResidentID   id.ResidentID      `json:"resident_id,omitempty"`
	Description  string             `json:"description,omitempty"`
	RecordedBy   string             `json:"recorded_by,omitempty"`
	MirrorStatus types.MirrorStatus `json:"mirror_status,omitempty"`
}

// IsUtilityFee reports whether this transaction duplicates a utility payment.
func (t *Transaction) IsUtilityFee() bool {
	return IsUtilityFeeType(t.Type)
}

// ListOpts narrows a transaction listing.
type ListOpts struct {
	Kind   Kind
	Type   string
	Range  types.PeriodRange
	Limit  int
	Offset int
}
