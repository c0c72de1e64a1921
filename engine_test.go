package billing_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/civicledger/billing"
	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/household"
	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/store"
	"github.com/civicledger/billing/store/memory"
	"github.com/civicledger/billing/types"
	"github.com/civicledger/billing/utilitypay"
)

// testEnv wires an engine against the in-memory store and directory.
type testEnv struct {
	engine    *billing.Engine
	store     *memory.Store
	directory *household.StaticDirectory

	householdID id.HouseholdID
	headID      id.ResidentID
}

func newTestEnv(t *testing.T, opts ...billing.Option) *testEnv {
	t.Helper()

	env := &testEnv{
		store:       memory.New(),
		directory:   household.NewStaticDirectory(),
		householdID: id.NewHouseholdID(),
		headID:      id.NewResidentID(),
	}
	env.directory.AddHousehold(household.Info{
		ID:             env.householdID,
		HeadResidentID: env.headID,
	})

	opts = append([]billing.Option{
		billing.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	env.engine = billing.New(env.store, env.directory, opts...)
	return env
}

func (env *testEnv) pay(t *testing.T, period types.Period, amount types.Money) *utilitypay.Record {
	t.Helper()

	rec, err := env.engine.RecordPayment(context.Background(), billing.RecordPaymentInput{
		HouseholdID: env.householdID,
		FeeType:     feeschedule.FeeGarbage,
		Period:      period,
		Amount:      amount,
		Method:      "cash",
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	return rec
}

func TestRecordPaymentCreatesRecord(t *testing.T) {
	env := newTestEnv(t)

	rec := env.pay(t, "2026-02", types.PHP(2000))

	if rec.TotalCharge != types.PHP(3500) {
		t.Errorf("TotalCharge = %v, want %v", rec.TotalCharge, types.PHP(3500))
	}
	if rec.AmountPaid != types.PHP(2000) {
		t.Errorf("AmountPaid = %v, want %v", rec.AmountPaid, types.PHP(2000))
	}
	if rec.Balance != types.PHP(1500) {
		t.Errorf("Balance = %v, want %v", rec.Balance, types.PHP(1500))
	}
	if rec.Status != utilitypay.StatusPartial {
		t.Errorf("Status = %q, want %q", rec.Status, utilitypay.StatusPartial)
	}
	if len(rec.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(rec.Entries))
	}
	if rec.Entries[0].MirrorStatus != types.MirrorPending {
		t.Errorf("entry mirror status = %q, want pending", rec.Entries[0].MirrorStatus)
	}
}

func TestSequentialPaymentsSettleRecord(t *testing.T) {
	env := newTestEnv(t)

	env.pay(t, "2026-02", types.PHP(2000))
	rec := env.pay(t, "2026-02", types.PHP(1500))

	if rec.Status != utilitypay.StatusPaid {
		t.Errorf("Status = %q, want paid", rec.Status)
	}
	if !rec.Balance.IsZero() {
		t.Errorf("Balance = %v, want zero", rec.Balance)
	}
	if len(rec.Entries) != 2 {
		t.Errorf("entries = %d, want 2", len(rec.Entries))
	}
	if rec.AmountPaid != types.PHP(3500) {
		t.Errorf("AmountPaid = %v, want 3500", rec.AmountPaid)
	}
}

func TestOverpaymentClampsBalance(t *testing.T) {
	env := newTestEnv(t)

	rec := env.pay(t, "2026-02", types.PHP(5000))

	if rec.AmountPaid != types.PHP(5000) {
		t.Errorf("AmountPaid = %v, want 5000", rec.AmountPaid)
	}
	if !rec.Balance.IsZero() {
		t.Errorf("Balance = %v, want zero (clamped)", rec.Balance)
	}
	if rec.Status != utilitypay.StatusPaid {
		t.Errorf("Status = %q, want paid", rec.Status)
	}
}

func TestBusinessHouseholdPaysBusinessRate(t *testing.T) {
	env := newTestEnv(t)
	bizID := id.NewHouseholdID()
	env.directory.AddHousehold(household.Info{ID: bizID, HasBusiness: true})

	rec, err := env.engine.RecordPayment(context.Background(), billing.RecordPaymentInput{
		HouseholdID: bizID,
		FeeType:     feeschedule.FeeGarbage,
		Period:      "2026-02",
		Amount:      types.PHP(5000),
		Method:      "cash",
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if rec.TotalCharge != types.PHP(5000) {
		t.Errorf("TotalCharge = %v, want business rate 5000", rec.TotalCharge)
	}
	if rec.Status != utilitypay.StatusPaid {
		t.Errorf("Status = %q, want paid", rec.Status)
	}
}

func TestRecordPaymentValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		in    billing.RecordPaymentInput
		check func(error) bool
	}{
		{
			name: "zero amount",
			in: billing.RecordPaymentInput{
				HouseholdID: env.householdID,
				FeeType:     feeschedule.FeeGarbage,
				Period:      "2026-02",
				Amount:      types.PHP(0),
			},
			check: billing.IsValidation,
		},
		{
			name: "negative amount",
			in: billing.RecordPaymentInput{
				HouseholdID: env.householdID,
				FeeType:     feeschedule.FeeGarbage,
				Period:      "2026-02",
				Amount:      types.PHP(-100),
			},
			check: billing.IsValidation,
		},
		{
			name: "malformed period",
			in: billing.RecordPaymentInput{
				HouseholdID: env.householdID,
				FeeType:     feeschedule.FeeGarbage,
				Period:      "2026-2",
				Amount:      types.PHP(100),
			},
			check: billing.IsValidation,
		},
		{
			name: "unknown household",
			in: billing.RecordPaymentInput{
				HouseholdID: id.NewHouseholdID(),
				FeeType:     feeschedule.FeeGarbage,
				Period:      "2026-02",
				Amount:      types.PHP(100),
			},
			check: func(err error) bool { return errors.Is(err, billing.ErrHouseholdNotFound) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.RecordPayment(context.Background(), tt.in)
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error class: %v", err)
			}
		})
	}
}

func TestConcurrentPaymentsNoLostUpdate(t *testing.T) {
	env := newTestEnv(t)

	const writers = 10
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.RecordPayment(context.Background(), billing.RecordPaymentInput{
				HouseholdID: env.householdID,
				FeeType:     feeschedule.FeeGarbage,
				Period:      "2026-02",
				Amount:      types.PHP(500),
				Method:      "cash",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent RecordPayment: %v", err)
		}
	}

	rec, err := env.engine.GetSummary(context.Background(), env.householdID, feeschedule.FeeGarbage, "2026-02")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if len(rec.Entries) != writers {
		t.Errorf("entries = %d, want %d", len(rec.Entries), writers)
	}
	if rec.AmountPaid != types.PHP(500*writers) {
		t.Errorf("AmountPaid = %v, want %d", rec.AmountPaid, 500*writers)
	}
	if rec.Status != utilitypay.StatusPaid {
		t.Errorf("Status = %q, want paid", rec.Status)
	}
}

// conflictOnceStore forces one version conflict to exercise the retry path,
// simulating a writer outside this process.
type conflictOnceStore struct {
	store.Store

	mu    sync.Mutex
	fired bool
}

func (s *conflictOnceStore) UpdateRecord(ctx context.Context, rec *utilitypay.Record, expectedVersion int64) error {
	s.mu.Lock()
	if !s.fired {
		s.fired = true
		s.mu.Unlock()
		return billing.ErrConflict
	}
	s.mu.Unlock()
	return s.Store.UpdateRecord(ctx, rec, expectedVersion)
}

func TestRecordPaymentRetriesOnConflict(t *testing.T) {
	mem := memory.New()
	directory := household.NewStaticDirectory()
	householdID := id.NewHouseholdID()
	directory.AddHousehold(household.Info{ID: householdID})

	engine := billing.New(&conflictOnceStore{Store: mem}, directory,
		billing.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx := context.Background()
	in := billing.RecordPaymentInput{
		HouseholdID: householdID,
		FeeType:     feeschedule.FeeGarbage,
		Period:      "2026-03",
		Amount:      types.PHP(1000),
		Method:      "cash",
	}
	if _, err := engine.RecordPayment(ctx, in); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	rec, err := engine.RecordPayment(ctx, in)
	if err != nil {
		t.Fatalf("conflicting payment should succeed after retry: %v", err)
	}
	if len(rec.Entries) != 2 {
		t.Errorf("entries = %d, want 2", len(rec.Entries))
	}
}

// duplicateOnceStore simulates losing the create race: the insert lands for a
// competing writer and this writer's insert reports a duplicate.
type duplicateOnceStore struct {
	store.Store

	mu    sync.Mutex
	fired bool
}

func (s *duplicateOnceStore) InsertRecord(ctx context.Context, rec *utilitypay.Record) error {
	s.mu.Lock()
	if !s.fired {
		s.fired = true
		s.mu.Unlock()
		competing := utilitypay.NewRecord(rec.Key(), rec.TotalCharge)
		if err := s.Store.InsertRecord(ctx, competing); err != nil {
			return err
		}
		return billing.ErrDuplicateRecord
	}
	s.mu.Unlock()
	return s.Store.InsertRecord(ctx, rec)
}

func TestRecordPaymentRetriesOnDuplicateCreate(t *testing.T) {
	mem := memory.New()
	directory := household.NewStaticDirectory()
	householdID := id.NewHouseholdID()
	directory.AddHousehold(household.Info{ID: householdID})

	engine := billing.New(&duplicateOnceStore{Store: mem}, directory,
		billing.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	rec, err := engine.RecordPayment(context.Background(), billing.RecordPaymentInput{
		HouseholdID: householdID,
		FeeType:     feeschedule.FeeGarbage,
		Period:      "2026-03",
		Amount:      types.PHP(1000),
		Method:      "cash",
	})
	if err != nil {
		t.Fatalf("payment should survive a lost create race: %v", err)
	}
	if len(rec.Entries) != 1 {
		t.Errorf("entries = %d, want 1", len(rec.Entries))
	}
}

func TestGetSummaryTransient(t *testing.T) {
	env := newTestEnv(t)

	rec, err := env.engine.GetSummary(context.Background(), env.householdID, feeschedule.FeeStreetlight, "2026-02")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if !rec.Transient() {
		t.Error("record for unpaid period should be transient")
	}
	if rec.TotalCharge != types.PHP(1000) {
		t.Errorf("TotalCharge = %v, want streetlight base 1000", rec.TotalCharge)
	}
	if rec.Status != utilitypay.StatusUnpaid {
		t.Errorf("Status = %q, want unpaid", rec.Status)
	}

	// Nothing was persisted.
	if _, err := env.store.GetRecord(context.Background(), rec.Key()); !errors.Is(err, billing.ErrRecordNotFound) {
		t.Errorf("store should not hold a transient record, got %v", err)
	}
}

func TestZeroChargeStaysUnpaid(t *testing.T) {
	env := newTestEnv(t)

	zero := types.PHP(0)
	rec, err := env.engine.RecordPayment(context.Background(), billing.RecordPaymentInput{
		HouseholdID:    env.householdID,
		FeeType:        feeschedule.FeeGarbage,
		Period:         "2026-02",
		Amount:         types.PHP(2000),
		Method:         "cash",
		OverrideCharge: &zero,
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if rec.Status != utilitypay.StatusUnpaid {
		t.Errorf("zero-charge record Status = %q, want unpaid", rec.Status)
	}
	if !rec.Balance.IsZero() {
		t.Errorf("Balance = %v, want zero", rec.Balance)
	}
}

func TestRemovePaymentEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.pay(t, "2026-02", types.PHP(2000))
	env.pay(t, "2026-02", types.PHP(1500))

	rec, err := env.engine.RemovePaymentEntry(ctx, env.householdID, feeschedule.FeeGarbage, "2026-02", 1)
	if err != nil {
		t.Fatalf("RemovePaymentEntry: %v", err)
	}
	if len(rec.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(rec.Entries))
	}
	if rec.AmountPaid != types.PHP(2000) {
		t.Errorf("AmountPaid = %v, want 2000", rec.AmountPaid)
	}
	if rec.Status != utilitypay.StatusPartial {
		t.Errorf("Status = %q, want partial", rec.Status)
	}

	t.Run("out of range", func(t *testing.T) {
		_, err := env.engine.RemovePaymentEntry(ctx, env.householdID, feeschedule.FeeGarbage, "2026-02", 5)
		if !billing.IsValidation(err) {
			t.Errorf("want validation error, got %v", err)
		}
	})

	t.Run("last entry deletes record", func(t *testing.T) {
		rec, err := env.engine.RemovePaymentEntry(ctx, env.householdID, feeschedule.FeeGarbage, "2026-02", 0)
		if err != nil {
			t.Fatalf("RemovePaymentEntry: %v", err)
		}
		if rec != nil {
			t.Errorf("record should be deleted, got %+v", rec)
		}
		key := utilitypay.Key{HouseholdID: env.householdID, FeeType: feeschedule.FeeGarbage, Period: "2026-02"}
		if _, err := env.store.GetRecord(ctx, key); !errors.Is(err, billing.ErrRecordNotFound) {
			t.Errorf("record should be gone, got %v", err)
		}
		if _, ok := env.directory.SnapshotFor(env.householdID, feeschedule.FeeGarbage); ok {
			t.Error("snapshot should be reset after record deletion")
		}
	})
}

func TestPurgeRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.pay(t, "2026-02", types.PHP(2000))

	if err := env.engine.PurgeRecord(ctx, env.householdID, feeschedule.FeeGarbage, "2026-02"); err != nil {
		t.Fatalf("PurgeRecord: %v", err)
	}
	key := utilitypay.Key{HouseholdID: env.householdID, FeeType: feeschedule.FeeGarbage, Period: "2026-02"}
	if _, err := env.store.GetRecord(ctx, key); !errors.Is(err, billing.ErrRecordNotFound) {
		t.Errorf("record should be gone, got %v", err)
	}

	if err := env.engine.PurgeRecord(ctx, env.householdID, feeschedule.FeeGarbage, "2026-02"); !errors.Is(err, billing.ErrRecordNotFound) {
		t.Errorf("second purge should report not found, got %v", err)
	}
}

func TestSnapshotTracksPayments(t *testing.T) {
	env := newTestEnv(t)

	env.pay(t, "2026-02", types.PHP(2000))

	snap, ok := env.directory.SnapshotFor(env.householdID, feeschedule.FeeGarbage)
	if !ok {
		t.Fatal("snapshot should exist after a payment")
	}
	if snap.CurrentCharge != types.PHP(3500) {
		t.Errorf("CurrentCharge = %v, want 3500", snap.CurrentCharge)
	}
	if snap.Balance != types.PHP(1500) {
		t.Errorf("Balance = %v, want 1500", snap.Balance)
	}
	if snap.LastPaymentAt == nil {
		t.Error("LastPaymentAt should be set")
	}
}

func TestScheduleFeeAndEffectiveFee(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fee := func(p types.Period) types.Money {
		t.Helper()
		v, err := env.engine.EffectiveFee(ctx, feeschedule.CategoryGarbageRegular, p)
		if err != nil {
			t.Fatalf("EffectiveFee(%s): %v", p, err)
		}
		return v
	}

	// Base value before any schedule entry.
	if got := fee("2026-01"); got != types.PHP(3500) {
		t.Errorf("base fee = %v, want 3500", got)
	}

	if err := env.engine.ScheduleFee(ctx, &feeschedule.Entry{
		Category:      feeschedule.CategoryGarbageRegular,
		Value:         types.PHP(4000),
		EffectiveFrom: "2026-03",
	}); err != nil {
		t.Fatalf("ScheduleFee: %v", err)
	}

	// Prospective entry never changes earlier periods.
	if got := fee("2026-02"); got != types.PHP(3500) {
		t.Errorf("fee before effective date = %v, want 3500", got)
	}
	if got := fee("2026-03"); got != types.PHP(4000) {
		t.Errorf("fee at effective date = %v, want 4000", got)
	}
	if got := fee("2026-07"); got != types.PHP(4000) {
		t.Errorf("fee after effective date = %v, want 4000", got)
	}

	// A retroactive correction re-prices the covered periods.
	if err := env.engine.ScheduleFee(ctx, &feeschedule.Entry{
		Category:      feeschedule.CategoryGarbageRegular,
		Value:         types.PHP(3800),
		EffectiveFrom: "2026-03",
	}); err != nil {
		t.Fatalf("ScheduleFee retroactive: %v", err)
	}
	if got := fee("2026-04"); got != types.PHP(3800) {
		t.Errorf("fee after correction = %v, want 3800 (latest recorded wins)", got)
	}

	t.Run("validation", func(t *testing.T) {
		if err := env.engine.ScheduleFee(ctx, &feeschedule.Entry{
			Category:      "water",
			Value:         types.PHP(100),
			EffectiveFrom: "2026-01",
		}); !errors.Is(err, billing.ErrUnknownCategory) {
			t.Errorf("unknown category: got %v", err)
		}
		if err := env.engine.ScheduleFee(ctx, &feeschedule.Entry{
			Category:      feeschedule.CategoryStreetlight,
			Value:         types.PHP(0),
			EffectiveFrom: "2026-01",
		}); !errors.Is(err, billing.ErrInvalidFeeValue) {
			t.Errorf("zero value: got %v", err)
		}
		if err := env.engine.ScheduleFee(ctx, &feeschedule.Entry{
			Category:      feeschedule.CategoryStreetlight,
			Value:         types.PHP(100),
			EffectiveFrom: "January 2026",
		}); !billing.IsValidation(err) {
			t.Errorf("bad period: got %v", err)
		}
	})
}

func TestChargedPeriodRepricesOnlyNewRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Record created at the 3500 rate.
	rec := env.pay(t, "2026-02", types.PHP(3500))
	if rec.Status != utilitypay.StatusPaid {
		t.Fatalf("Status = %q, want paid", rec.Status)
	}

	// A retroactive rate change does not rewrite the existing record.
	if err := env.engine.ScheduleFee(ctx, &feeschedule.Entry{
		Category:      feeschedule.CategoryGarbageRegular,
		Value:         types.PHP(4000),
		EffectiveFrom: "2026-01",
	}); err != nil {
		t.Fatalf("ScheduleFee: %v", err)
	}

	got, err := env.engine.GetSummary(ctx, env.householdID, feeschedule.FeeGarbage, "2026-02")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if got.TotalCharge != types.PHP(3500) {
		t.Errorf("existing record TotalCharge = %v, want unchanged 3500", got.TotalCharge)
	}

	// A fresh period prices at the new rate.
	fresh, err := env.engine.GetSummary(ctx, env.householdID, feeschedule.FeeGarbage, "2026-03")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if fresh.TotalCharge != types.PHP(4000) {
		t.Errorf("fresh period TotalCharge = %v, want 4000", fresh.TotalCharge)
	}
}

func TestEngineStartStop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.engine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	env.pay(t, "2026-02", types.PHP(1000))
	if err := env.engine.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
