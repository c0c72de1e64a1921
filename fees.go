package billing

import (
	"context"
	"time"

	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/types"
)

// ──────────────────────────────────────────────────
// Fee Schedule
// ──────────────────────────────────────────────────

// EffectiveFee resolves the fee for a category at a billing period: the
// schedule entry with the latest EffectiveFrom not after the period wins,
// ties broken by most recently recorded; without any applicable entry the
// category's base value applies.
//
// Resolution is deterministic for a fixed history. Appending an entry with
// a later EffectiveFrom never changes an already-resolved period; only a
// retroactive entry (EffectiveFrom at or before the period) does.
func (e *Engine) EffectiveFee(ctx context.Context, category feeschedule.Category, period types.Period) (types.Money, error) {
	if !category.Valid() {
		return types.Money{}, ErrUnknownCategory
	}

	history, err := e.store.FeeHistory(ctx, category)
	if err != nil {
		return types.Money{}, err
	}

	value, ok := feeschedule.EffectiveValue(history, category, period)
	if !ok {
		return types.Money{}, ErrUnknownCategory
	}
	return value, nil
}

// ScheduleFee appends a fee schedule entry. History is append only; a
// retroactive EffectiveFrom is allowed and re-prices the affected periods
// without rewriting past entries.
func (e *Engine) ScheduleFee(ctx context.Context, entry *feeschedule.Entry) error {
	if !entry.Category.Valid() {
		return ErrUnknownCategory
	}
	if !entry.Value.IsPositive() {
		return ErrInvalidFeeValue
	}
	if _, err := types.ParsePeriod(string(entry.EffectiveFrom)); err != nil {
		return ValidationError{Field: "effective_from", Message: err.Error()}
	}

	if entry.ID.IsNil() {
		entry.ID = id.NewFeeEntryID()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	entry.Entity = types.NewEntity()

	if err := e.store.AppendFeeEntry(ctx, entry); err != nil {
		return err
	}

	e.plugins.EmitFeeScheduled(ctx, entry)
	return nil
}

// FeeHistory returns the schedule history for a category ordered by
// EffectiveFrom, oldest first.
func (e *Engine) FeeHistory(ctx context.Context, category feeschedule.Category) ([]*feeschedule.Entry, error) {
	if !category.Valid() {
		return nil, ErrUnknownCategory
	}
	return e.store.FeeHistory(ctx, category)
}

// categoryFor maps a fee type to the household's schedule category. A
// household flagged as running a business pays the business garbage rate.
func (e *Engine) categoryFor(ctx context.Context, householdID id.HouseholdID, feeType feeschedule.FeeType) (feeschedule.Category, error) {
	info, err := e.households.Lookup(ctx, householdID)
	if err != nil {
		return "", err
	}
	category, ok := feeschedule.CategoryFor(feeType, info.HasBusiness)
	if !ok {
		return "", ErrUnknownFeeType
	}
	return category, nil
}
