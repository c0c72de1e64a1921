// Package revenue provides the unified revenue event read model: one row per
// monetary inflow or outflow regardless of which origin store recorded it.
// Events are computed on demand and never persisted.
package revenue

import (
	"fmt"
	"sort"
	"time"

	"github.com/civicledger/billing/document"
	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/transaction"
	"github.com/civicledger/billing/types"
	"github.com/civicledger/billing/utilitypay"
)

// SourceKind names the origin store an event was synthesized from.
type SourceKind string

const (
	SourceLedgerTxn      SourceKind = "ledger_txn"
	SourceUtilityPayment SourceKind = "utility_payment"
	SourceDocumentFee    SourceKind = "document_fee"
)

// Event is one unified transaction-feed row.
type Event struct {
	SourceKind   SourceKind         `json:"source_kind"`
	OriginID     id.ID              `json:"origin_id"`
	EntryIndex   int                `json:"entry_index,omitempty"`
	Kind         transaction.Kind   `json:"kind"`
	Type         string             `json:"type"`
	Status       string             `json:"status,omitempty"`
	Amount       types.Money        `json:"amount"`
	OccurredAt   time.Time          `json:"occurred_at"`
	HouseholdID  id.HouseholdID     `json:"household_id,omitempty"`
	ResidentID   id.ResidentID      `json:"resident_id,omitempty"`
	Description  string             `json:"description,omitempty"`
	MirrorStatus types.MirrorStatus `json:"mirror_status,omitempty"`
}

// Key uniquely identifies an event across repeated aggregations: the origin
// row plus, for flattened payment entries, the entry position. Re-reading an
// origin record must never yield a second event with the same key.
func (e Event) Key() string {
	return fmt.Sprintf("%s/%s/%d", e.SourceKind, e.OriginID, e.EntryIndex)
}

// SubjectID returns the household or resident the event concerns, preferring
// the household.
func (e Event) SubjectID() id.ID {
	if !e.HouseholdID.IsNil() {
		return e.HouseholdID
	}
	return e.ResidentID
}

// FromTransaction synthesizes the event for a directly-recorded transaction.
func FromTransaction(t *transaction.Transaction) Event {
	return Event{
		SourceKind:   SourceLedgerTxn,
		OriginID:     t.ID,
		Kind:         t.Kind,
		Type:         t.Type,
		Status:       "recorded",
		Amount:       t.Amount,
		OccurredAt:   t.OccurredAt,
		HouseholdID:  t.HouseholdID,
		ResidentID:   t.ResidentID,
		Description:  t.Description,
		MirrorStatus: t.MirrorStatus,
	}
}

// FromPaymentEntry synthesizes the event for one payment entry of a utility
// payment record. A record with three payments yields three events.
func FromPaymentEntry(r *utilitypay.Record, idx int) Event {
	e := r.Entries[idx]
	return Event{
		SourceKind:   SourceUtilityPayment,
		OriginID:     r.ID,
		EntryIndex:   idx,
		Kind:         transaction.KindRevenue,
		Type:         utilityFeeType(r),
		Status:       string(r.Status),
		Amount:       e.Amount,
		OccurredAt:   e.PaidAt,
		HouseholdID:  r.HouseholdID,
		Description:  fmt.Sprintf("%s fee payment for %s", r.FeeType, r.Period),
		MirrorStatus: e.MirrorStatus,
	}
}

// FromDocumentOrder synthesizes the event for a completed document order.
func FromDocumentOrder(o document.Order) Event {
	return Event{
		SourceKind:   SourceDocumentFee,
		OriginID:     o.ID,
		Kind:         transaction.KindRevenue,
		Type:         "document_fee",
		Status:       string(o.Status),
		Amount:       o.Amount,
		OccurredAt:   o.OccurredAt,
		ResidentID:   o.ResidentID,
		Description:  o.Type,
		MirrorStatus: types.MirrorApplied,
	}
}

func utilityFeeType(r *utilitypay.Record) string {
	if r.FeeType == feeschedule.FeeStreetlight {
		return transaction.TypeStreetlightFee
	}
	return transaction.TypeGarbageFee
}

// ──────────────────────────────────────────────────
// Filtering and ordering
// ──────────────────────────────────────────────────

// Direction orders an event listing by occurrence time.
type Direction int

const (
	// Descending lists the newest events first (dashboard default).
	Descending Direction = iota
	// Ascending lists the oldest events first (report generation).
	Ascending
)

// Filter narrows an aggregated event listing. Filtering is applied after the
// three origin stores are merged, so synthesized events filter identically to
// primary ones. Zero fields match everything.
type Filter struct {
	Range     types.PeriodRange `json:"range,omitzero"`
	Kind      transaction.Kind  `json:"kind,omitempty"`
	Type      string            `json:"type,omitempty"`
	Status    string            `json:"status,omitempty"`
	SubjectID id.ID             `json:"subject_id,omitempty"`
	Direction Direction         `json:"direction,omitempty"`
}

// Match reports whether the event passes the filter.
func (f Filter) Match(e Event) bool {
	if !f.Range.IsZero() && !f.Range.ContainsTime(e.OccurredAt) {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.SubjectID.IsNil() {
		sid := f.SubjectID.String()
		if e.HouseholdID.String() != sid && e.ResidentID.String() != sid {
			return false
		}
	}
	return true
}

// Apply filters events and orders the result by occurrence time in the
// filter's direction. Ties keep a stable order by event key.
func (f Filter) Apply(events []Event) []Event {
	result := make([]Event, 0, len(events))
	for _, e := range events {
		if f.Match(e) {
			result = append(result, e)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			if f.Direction == Ascending {
				return a.OccurredAt.Before(b.OccurredAt)
			}
			return a.OccurredAt.After(b.OccurredAt)
		}
		return a.Key() < b.Key()
	})
	return result
}

// ──────────────────────────────────────────────────
// Totals
// ──────────────────────────────────────────────────

// Summary is the kind-wise reduction of an event set.
type Summary struct {
	Revenue    types.Money `json:"revenue"`
	Expense    types.Money `json:"expense"`
	Allocation types.Money `json:"allocation"`
	Balance    types.Money `json:"balance"`
}

// Totals reduces events to per-kind sums and the resulting balance
// (revenue − expense − allocation). Addition commutes, so the result is
// independent of event order.
func Totals(events []Event) Summary {
	s := Summary{
		Revenue:    types.ZeroPHP(),
		Expense:    types.ZeroPHP(),
		Allocation: types.ZeroPHP(),
	}
	for _, e := range events {
		switch e.Kind {
		case transaction.KindRevenue:
			s.Revenue = s.Revenue.Add(e.Amount)
		case transaction.KindExpense:
			s.Expense = s.Expense.Add(e.Amount)
		case transaction.KindAllocation:
			s.Allocation = s.Allocation.Add(e.Amount)
		}
	}
	s.Balance = s.Revenue.Subtract(s.Expense).Subtract(s.Allocation)
	return s
}
