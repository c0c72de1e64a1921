// Package utilitypay owns the authoritative per-(household, fee type, period)
// utility billing record: total charge, payment entries, and the derived
// balance and status.
package utilitypay

import (
	"fmt"
	"time"

	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/types"
)

// Status is the payment state of a record. It is always recomputed from the
// entries, never incremented, so a record self-heals from any single missed
// derived-field write.
type Status string

const (
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// Key identifies a record: one household, one fee type, one billing period.
// The storage layer enforces its uniqueness.
type Key struct {
	HouseholdID id.HouseholdID      `json:"household_id"`
	FeeType     feeschedule.FeeType `json:"fee_type"`
	Period      types.Period        `json:"period"`
}

// String renders the key in a stable form usable as a lock or map key.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.HouseholdID, k.FeeType, k.Period)
}

// PaymentEntry is one payment applied to a record. Entries are append-only;
// the only removal path is the explicit correction operation.
type PaymentEntry struct {
	ID           id.EntryID         `json:"id"`
	Amount       types.Money        `json:"amount"`
	Method       string             `json:"method"`
	Reference    string             `json:"reference,omitempty"`
	PaidAt       time.Time          `json:"paid_at"`
	MirrorStatus types.MirrorStatus `json:"mirror_status,omitempty"`
}

// Record is the authoritative billing-and-payment summary for one key.
// AmountPaid, Balance and Status are derived from Entries via Recompute and
// hold the invariants:
//
//	AmountPaid == sum of entry amounts
//	Balance    == max(TotalCharge − AmountPaid, 0)
//	Status     == unpaid when TotalCharge is zero, else paid when the balance
//	              is zero, else partial when anything was paid, else unpaid
type Record struct {
	types.Entity
	ID          id.RecordID         `json:"id"`
	HouseholdID id.HouseholdID      `json:"household_id"`
	FeeType     feeschedule.FeeType `json:"fee_type"`
	Period      types.Period        `json:"period"`
	TotalCharge types.Money         `json:"total_charge"`
	AmountPaid  types.Money         `json:"amount_paid"`
	Balance     types.Money         `json:"balance"`
	Status      Status              `json:"status"`
	Entries     []PaymentEntry      `json:"entries"`

	// Version guards concurrent read-modify-write cycles: the storage layer
	// accepts an update only when the stored version still matches.
	Version int64 `json:"version"`
}

// Key returns the record's identifying key.
func (r *Record) Key() Key {
	return Key{HouseholdID: r.HouseholdID, FeeType: r.FeeType, Period: r.Period}
}

// Transient reports whether the record was synthesized for display and was
// never persisted.
func (r *Record) Transient() bool {
	return r.ID.IsNil()
}

// Recompute re-derives AmountPaid, Balance and Status from TotalCharge and
// Entries. Every mutation path must call it before persisting.
func (r *Record) Recompute() {
	amounts := make([]types.Money, 0, len(r.Entries))
	for _, e := range r.Entries {
		amounts = append(amounts, e.Amount)
	}
	if len(amounts) == 0 {
		r.AmountPaid = types.Zero(r.TotalCharge.Currency)
	} else {
		r.AmountPaid = types.Sum(amounts...)
	}

	r.Balance = r.TotalCharge.SubtractFloor(r.AmountPaid)

	switch {
	case r.TotalCharge.IsZero():
		// A zero-charge period carries nothing to pay; it stays unpaid
		// rather than reading as settled.
		r.Status = StatusUnpaid
	case r.Balance.IsZero():
		r.Status = StatusPaid
	case r.AmountPaid.IsPositive():
		r.Status = StatusPartial
	default:
		r.Status = StatusUnpaid
	}
}

// LastPaymentAt returns the time of the most recent entry, or the zero time
// for a record with no payments.
func (r *Record) LastPaymentAt() time.Time {
	var last time.Time
	for _, e := range r.Entries {
		if e.PaidAt.After(last) {
			last = e.PaidAt
		}
	}
	return last
}

// NewRecord creates an empty persisted-shape record for a key with the given
// charge. Derived fields start consistent.
func NewRecord(key Key, totalCharge types.Money) *Record {
	r := &Record{
		Entity:      types.NewEntity(),
		ID:          id.NewRecordID(),
		HouseholdID: key.HouseholdID,
		FeeType:     key.FeeType,
		Period:      key.Period,
		TotalCharge: totalCharge,
		Version:     1,
	}
	r.Recompute()
	return r
}

// NewTransientRecord creates a display-only record that is never persisted:
// the summary for a period nobody has paid yet.
func NewTransientRecord(key Key, totalCharge types.Money) *Record {
	r := &Record{
		HouseholdID: key.HouseholdID,
		FeeType:     key.FeeType,
		Period:      key.Period,
		TotalCharge: totalCharge,
	}
	r.Recompute()
	return r
}
