package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/household"
	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/transaction"
	"github.com/civicledger/billing/types"
	"github.com/civicledger/billing/utilitypay"
)

// ──────────────────────────────────────────────────
// Utility Payment Ledger
// ──────────────────────────────────────────────────

// RecordPaymentInput carries one payment against a (household, fee type,
// period) record.
type RecordPaymentInput struct {
	HouseholdID id.HouseholdID
	FeeType     feeschedule.FeeType
	Period      types.Period
	Amount      types.Money
	Method      string
	Reference   string
	RecordedBy  string

	// OverrideCharge replaces the record's total charge (administrative
	// correction). On a fresh record it is used instead of the resolved fee.
	OverrideCharge *types.Money
}

// GetSummary returns the payment record for the key. When none exists yet, a
// transient record is synthesized from the resolved fee with zero payments;
// nothing is persisted.
func (e *Engine) GetSummary(ctx context.Context, householdID id.HouseholdID, feeType feeschedule.FeeType, period types.Period) (*utilitypay.Record, error) {
	if _, err := types.ParsePeriod(string(period)); err != nil {
		return nil, ValidationError{Field: "period", Message: err.Error()}
	}

	category, err := e.categoryFor(ctx, householdID, feeType)
	if err != nil {
		return nil, err
	}

	key := utilitypay.Key{HouseholdID: householdID, FeeType: feeType, Period: period}
	rec, err := e.store.GetRecord(ctx, key)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, ErrRecordNotFound):
		charge, err := e.EffectiveFee(ctx, category, period)
		if err != nil {
			return nil, err
		}
		return utilitypay.NewTransientRecord(key, charge), nil
	default:
		return nil, err
	}
}

// RecordPayment applies one payment to the record for the key, creating the
// record lazily on first payment. Writers for the same key are serialized by
// a per-key lock; the store update additionally carries a version check, and
// a lost race (concurrent create, stale version) is retried once against the
// fresh record.
//
// Revenue transaction emission, household snapshot refresh and external
// ledger mirroring are best-effort side effects: their failure is logged and
// never fails the payment.
func (e *Engine) RecordPayment(ctx context.Context, in RecordPaymentInput) (*utilitypay.Record, error) {
	if !in.Amount.IsPositive() {
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	}
	if _, err := types.ParsePeriod(string(in.Period)); err != nil {
		return nil, ValidationError{Field: "period", Message: err.Error()}
	}

	category, err := e.categoryFor(ctx, in.HouseholdID, in.FeeType)
	if err != nil {
		return nil, err
	}

	key := utilitypay.Key{HouseholdID: in.HouseholdID, FeeType: in.FeeType, Period: in.Period}
	release := e.locks.acquire(key.String())
	defer release()

	entry := utilitypay.PaymentEntry{
		ID:           id.NewEntryID(),
		Amount:       in.Amount,
		Method:       in.Method,
		Reference:    in.Reference,
		PaidAt:       time.Now().UTC(),
		MirrorStatus: types.MirrorPending,
	}

	rec, err := e.applyPayment(ctx, key, category, in, entry)
	if err != nil {
		// One internal retry on a lost race: the record may have been
		// created or bumped by a writer outside this process.
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrDuplicateRecord) {
			rec, err = e.applyPayment(ctx, key, category, in, entry)
		}
		if err != nil {
			return nil, err
		}
	}

	e.refreshSnapshot(ctx, rec)
	e.emitPaymentTransaction(ctx, rec, entry, in.RecordedBy)
	e.scheduleEntryMirror(rec, entry)
	e.plugins.EmitPaymentRecorded(ctx, rec, &entry)

	return rec, nil
}

// applyPayment performs one create-or-update attempt for the payment.
func (e *Engine) applyPayment(ctx context.Context, key utilitypay.Key, category feeschedule.Category, in RecordPaymentInput, entry utilitypay.PaymentEntry) (*utilitypay.Record, error) {
	rec, err := e.store.GetRecord(ctx, key)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		charge := types.Money{}
		if in.OverrideCharge != nil {
			charge = *in.OverrideCharge
		} else {
			charge, err = e.EffectiveFee(ctx, category, in.Period)
			if err != nil {
				return nil, err
			}
		}
		rec = utilitypay.NewRecord(key, charge)
		rec.Entries = append(rec.Entries, entry)
		rec.Recompute()
		if err := e.store.InsertRecord(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil

	case err != nil:
		return nil, err
	}

	if in.OverrideCharge != nil {
		rec.TotalCharge = *in.OverrideCharge
	}
	rec.Entries = append(rec.Entries, entry)
	rec.Recompute()
	rec.Touch()
	if err := e.store.UpdateRecord(ctx, rec, rec.Version); err != nil {
		return nil, err
	}
	return rec, nil
}

// RemovePaymentEntry removes one payment entry by position and re-derives
// the record from the remaining entries. Removing the last entry deletes the
// record outright; an empty record carries no information.
func (e *Engine) RemovePaymentEntry(ctx context.Context, householdID id.HouseholdID, feeType feeschedule.FeeType, period types.Period, entryIndex int) (*utilitypay.Record, error) {
	key := utilitypay.Key{HouseholdID: householdID, FeeType: feeType, Period: period}
	release := e.locks.acquire(key.String())
	defer release()

	rec, err := e.store.GetRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	if entryIndex < 0 || entryIndex >= len(rec.Entries) {
		return nil, ValidationError{
			Field:   "entry_index",
			Message: fmt.Sprintf("index %d out of range for %d entries", entryIndex, len(rec.Entries)),
		}
	}

	removed := rec.Entries[entryIndex]
	rec.Entries = append(rec.Entries[:entryIndex], rec.Entries[entryIndex+1:]...)

	if len(rec.Entries) == 0 {
		if err := e.store.DeleteRecord(ctx, key); err != nil {
			return nil, err
		}
		e.resetSnapshot(ctx, householdID, feeType)
		e.plugins.EmitPaymentEntryRemoved(ctx, rec, &removed)
		return nil, nil
	}

	rec.Recompute()
	rec.Touch()
	if err := e.store.UpdateRecord(ctx, rec, rec.Version); err != nil {
		return nil, err
	}

	e.refreshSnapshot(ctx, rec)
	e.plugins.EmitPaymentEntryRemoved(ctx, rec, &removed)
	return rec, nil
}

// PurgeRecord deletes the record for the key and resets the household's
// denormalized snapshot for the fee type. Administrative use only.
func (e *Engine) PurgeRecord(ctx context.Context, householdID id.HouseholdID, feeType feeschedule.FeeType, period types.Period) error {
	key := utilitypay.Key{HouseholdID: householdID, FeeType: feeType, Period: period}
	release := e.locks.acquire(key.String())
	defer release()

	rec, err := e.store.GetRecord(ctx, key)
	if err != nil {
		return err
	}
	if err := e.store.DeleteRecord(ctx, key); err != nil {
		return err
	}

	e.resetSnapshot(ctx, householdID, feeType)
	e.plugins.EmitRecordPurged(ctx, rec)
	return nil
}

// refreshSnapshot pushes the record's current charge, balance and last
// payment time onto the household directory. Best effort.
func (e *Engine) refreshSnapshot(ctx context.Context, rec *utilitypay.Record) {
	snap := household.Snapshot{
		CurrentCharge: rec.TotalCharge,
		Balance:       rec.Balance,
	}
	if last := rec.LastPaymentAt(); !last.IsZero() {
		snap.LastPaymentAt = &last
	}
	if err := e.households.UpdateSnapshot(ctx, rec.HouseholdID, rec.FeeType, snap); err != nil {
		e.logger.Warn("household snapshot update failed",
			"household_id", rec.HouseholdID,
			"fee_type", rec.FeeType,
			"error", err,
		)
	}
}

func (e *Engine) resetSnapshot(ctx context.Context, householdID id.HouseholdID, feeType feeschedule.FeeType) {
	if err := e.households.ResetSnapshot(ctx, householdID, feeType); err != nil {
		e.logger.Warn("household snapshot reset failed",
			"household_id", householdID,
			"fee_type", feeType,
			"error", err,
		)
	}
}

// emitPaymentTransaction records the LedgerTransaction-shaped trace of a
// utility payment. These rows are excluded from revenue aggregation (the
// payment entries themselves are the revenue source) but keep the
// transaction journal complete. Best effort.
func (e *Engine) emitPaymentTransaction(ctx context.Context, rec *utilitypay.Record, entry utilitypay.PaymentEntry, recordedBy string) {
	txn := &transaction.Transaction{
		Entity:       types.NewEntity(),
		ID:           id.NewTransactionID(),
		Kind:         transaction.KindRevenue,
		Type:         utilityFeeType(rec.FeeType),
		Amount:       entry.Amount,
		OccurredAt:   entry.PaidAt,
		HouseholdID:  rec.HouseholdID,
		Description:  fmt.Sprintf("%s fee payment for %s", rec.FeeType, rec.Period),
		RecordedBy:   recordedBy,
		MirrorStatus: types.MirrorApplied, // mirrored via the payment entry, not separately
	}
	if err := e.store.CreateTransaction(ctx, txn); err != nil {
		e.logger.Warn("payment transaction emission failed",
			"record_key", rec.Key().String(),
			"error", err,
		)
	}
}

func utilityFeeType(ft feeschedule.FeeType) string {
	if ft == feeschedule.FeeStreetlight {
		return transaction.TypeStreetlightFee
	}
	return transaction.TypeGarbageFee
}
