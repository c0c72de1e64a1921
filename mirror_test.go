package billing_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/civicledger/billing"
	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/household"
	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/mirror"
	"github.com/civicledger/billing/store/memory"
	"github.com/civicledger/billing/transaction"
	"github.com/civicledger/billing/types"
	"github.com/civicledger/billing/utilitypay"
)

// runMirrored starts the engine, runs fn, and stops it. Stop drains the
// mirror queue, so every enqueued attempt has settled on return.
func runMirrored(t *testing.T, env *testEnv, fn func()) {
	t.Helper()

	ctx := context.Background()
	if err := env.engine.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	fn()
	if err := env.engine.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestPaymentEntryMirroredToChain(t *testing.T) {
	chain := mirror.NewMemoryChain()
	env := newTestEnv(t, billing.WithChain(chain))

	runMirrored(t, env, func() {
		env.pay(t, "2026-02", types.PHP(3500))
	})

	if chain.Len() != 1 {
		t.Fatalf("chain records = %d, want 1", chain.Len())
	}

	key := utilitypay.Key{HouseholdID: env.householdID, FeeType: feeschedule.FeeGarbage, Period: "2026-02"}
	rec, err := env.store.GetRecord(context.Background(), key)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got := rec.Entries[0].MirrorStatus; got != types.MirrorApplied {
		t.Errorf("entry mirror status = %q, want applied", got)
	}

	mirrored, err := chain.Get(context.Background(), rec.Entries[0].ID)
	if err != nil {
		t.Fatalf("chain.Get: %v", err)
	}
	if mirrored.Amount != types.PHP(3500) {
		t.Errorf("mirrored amount = %v, want 3500", mirrored.Amount)
	}
	if mirrored.SubjectID.String() != env.householdID.String() {
		t.Errorf("mirrored subject = %s, want household", mirrored.SubjectID)
	}
}

func TestTransactionMirroredToChain(t *testing.T) {
	chain := mirror.NewMemoryChain()
	env := newTestEnv(t, billing.WithChain(chain))

	txn := &transaction.Transaction{
		Kind:   transaction.KindRevenue,
		Type:   "donation",
		Amount: types.PHP(10000),
	}
	runMirrored(t, env, func() {
		if err := env.engine.CreateTransaction(context.Background(), txn); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	})

	if chain.Len() != 1 {
		t.Fatalf("chain records = %d, want 1", chain.Len())
	}
	got, err := env.store.GetTransaction(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.MirrorStatus != types.MirrorApplied {
		t.Errorf("transaction mirror status = %q, want applied", got.MirrorStatus)
	}
}

func TestMirrorFailureNeverFailsPayment(t *testing.T) {
	chain := mirror.NewMemoryChain()
	chain.SubmitErr = errors.New("ledger node unreachable")
	env := newTestEnv(t, billing.WithChain(chain))

	var rec *utilitypay.Record
	runMirrored(t, env, func() {
		rec = env.pay(t, "2026-02", types.PHP(3500))
	})

	// The payment stands; only the mirror status records the failure.
	stored, err := env.store.GetRecord(context.Background(), rec.Key())
	if err != nil {
		t.Fatalf("payment should be persisted: %v", err)
	}
	if stored.Status != utilitypay.StatusPaid {
		t.Errorf("Status = %q, want paid", stored.Status)
	}
	if got := stored.Entries[0].MirrorStatus; got != types.MirrorFailed {
		t.Errorf("entry mirror status = %q, want failed", got)
	}
	if chain.Len() != 0 {
		t.Errorf("chain records = %d, want 0", chain.Len())
	}
}

func TestMirrorWithoutChainMarksRowsFailed(t *testing.T) {
	env := newTestEnv(t)

	var rec *utilitypay.Record
	runMirrored(t, env, func() {
		rec = env.pay(t, "2026-02", types.PHP(3500))
	})

	stored, err := env.store.GetRecord(context.Background(), rec.Key())
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got := stored.Entries[0].MirrorStatus; got != types.MirrorFailed {
		t.Errorf("entry mirror status = %q, want failed (no chain configured)", got)
	}
	if !stored.Entries[0].MirrorStatus.NeedsMirror() {
		t.Error("row should remain eligible for the reconciliation sweep")
	}
}

func TestRequeuePendingMirrorsReconciles(t *testing.T) {
	mem := memory.New()
	directory := household.NewStaticDirectory()
	householdID := id.NewHouseholdID()
	directory.AddHousehold(household.Info{ID: householdID})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Phase 1: no chain configured, so the payment's mirror fails.
	offline := billing.New(mem, directory, billing.WithLogger(logger))
	ctx := context.Background()
	if err := offline.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := offline.RecordPayment(ctx, billing.RecordPaymentInput{
		HouseholdID: householdID,
		FeeType:     feeschedule.FeeGarbage,
		Period:      "2026-02",
		Amount:      types.PHP(3500),
		Method:      "cash",
	}); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if err := offline.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Phase 2: a chain comes up; the sweep replays the backlog.
	chain := mirror.NewMemoryChain()
	online := billing.New(mem, directory, billing.WithLogger(logger), billing.WithChain(chain))
	if err := online.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	backlog, err := online.PendingMirrors(ctx, 0)
	if err != nil {
		t.Fatalf("PendingMirrors: %v", err)
	}
	if backlog.Empty() {
		t.Fatal("backlog should hold the failed payment mirror")
	}
	queued, err := online.RequeuePendingMirrors(ctx, 0)
	if err != nil {
		t.Fatalf("RequeuePendingMirrors: %v", err)
	}
	if queued != 1 {
		t.Errorf("queued = %d, want 1", queued)
	}
	if err := online.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if chain.Len() != 1 {
		t.Fatalf("chain records = %d, want 1", chain.Len())
	}

	// Phase 3: a second sweep finds a clean backlog, and re-running against
	// an already-mirrored row writes nothing new.
	second := billing.New(mem, directory, billing.WithLogger(logger), billing.WithChain(chain))
	if err := second.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	backlog, err = second.PendingMirrors(ctx, 0)
	if err != nil {
		t.Fatalf("PendingMirrors: %v", err)
	}
	if !backlog.Empty() {
		t.Errorf("backlog should be empty after reconciliation, got %d/%d",
			len(backlog.Records), len(backlog.Transactions))
	}
	if err := second.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if chain.Len() != 1 {
		t.Errorf("chain records = %d, want still 1", chain.Len())
	}
}

func TestMirrorIdempotentWhenRecordExists(t *testing.T) {
	chain := mirror.NewMemoryChain()
	env := newTestEnv(t, billing.WithChain(chain))

	// Seed the chain as if a previous process already mirrored the entry.
	entryID := id.NewEntryID()
	preTx, err := chain.Submit(context.Background(), &mirror.Record{
		OriginID:  entryID,
		Kind:      mirror.KindUtilityPayment,
		SubjectID: env.householdID,
		Amount:    types.PHP(3500),
	})
	if err != nil {
		t.Fatalf("seed Submit: %v", err)
	}

	// Insert a pending row for the same entry and sweep it.
	rec := utilitypay.NewRecord(
		utilitypay.Key{HouseholdID: env.householdID, FeeType: feeschedule.FeeGarbage, Period: "2026-02"},
		types.PHP(3500),
	)
	rec.Entries = append(rec.Entries, utilitypay.PaymentEntry{
		ID:           entryID,
		Amount:       types.PHP(3500),
		PaidAt:       time.Now().UTC(),
		MirrorStatus: types.MirrorPending,
	})
	rec.Recompute()
	if err := env.store.InsertRecord(context.Background(), rec); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	runMirrored(t, env, func() {
		if _, err := env.engine.RequeuePendingMirrors(context.Background(), 0); err != nil {
			t.Fatalf("RequeuePendingMirrors: %v", err)
		}
	})

	if chain.Len() != 1 {
		t.Fatalf("chain records = %d, want 1 (no duplicate write)", chain.Len())
	}
	mirrored, err := chain.Get(context.Background(), entryID)
	if err != nil {
		t.Fatalf("chain.Get: %v", err)
	}
	if mirrored.TxID != preTx {
		t.Errorf("TxID = %q, want original %q", mirrored.TxID, preTx)
	}
	stored, err := env.store.GetRecord(context.Background(), rec.Key())
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got := stored.Entries[0].MirrorStatus; got != types.MirrorApplied {
		t.Errorf("entry mirror status = %q, want applied", got)
	}
}

func TestVerifyIntegrity(t *testing.T) {
	chain := mirror.NewMemoryChain()
	env := newTestEnv(t, billing.WithChain(chain))
	ctx := context.Background()

	originID := id.NewTransactionID()
	if _, err := chain.Submit(ctx, &mirror.Record{
		OriginID:    originID,
		Kind:        mirror.KindTransaction,
		Amount:      types.PHP(1000),
		ContentHash: "hash-a",
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	t.Run("verified", func(t *testing.T) {
		status, err := env.engine.VerifyIntegrity(ctx, originID, "hash-a")
		if err != nil || status != mirror.IntegrityVerified {
			t.Errorf("got (%q, %v), want verified", status, err)
		}
	})

	t.Run("edited", func(t *testing.T) {
		status, err := env.engine.VerifyIntegrity(ctx, originID, "hash-b")
		if err != nil || status != mirror.IntegrityEdited {
			t.Errorf("got (%q, %v), want edited", status, err)
		}
	})

	t.Run("deleted on empty hash", func(t *testing.T) {
		status, err := env.engine.VerifyIntegrity(ctx, originID, "")
		if err != nil || status != mirror.IntegrityDeleted {
			t.Errorf("got (%q, %v), want deleted", status, err)
		}
	})

	t.Run("deleted on tombstone", func(t *testing.T) {
		tombstoned := id.NewTransactionID()
		if _, err := chain.Submit(ctx, &mirror.Record{OriginID: tombstoned, ContentHash: "hash-c"}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		chain.Tombstone(tombstoned)
		status, err := env.engine.VerifyIntegrity(ctx, tombstoned, "hash-c")
		if err != nil || status != mirror.IntegrityDeleted {
			t.Errorf("got (%q, %v), want deleted", status, err)
		}
	})

	t.Run("not registered", func(t *testing.T) {
		status, err := env.engine.VerifyIntegrity(ctx, id.NewTransactionID(), "hash-a")
		if err != nil || status != mirror.IntegrityNotRegistered {
			t.Errorf("got (%q, %v), want not_registered", status, err)
		}
	})

	t.Run("lookup error", func(t *testing.T) {
		chain.GetErr = errors.New("ledger node unreachable")
		defer func() { chain.GetErr = nil }()
		status, err := env.engine.VerifyIntegrity(ctx, originID, "hash-a")
		if err == nil || status != mirror.IntegrityError {
			t.Errorf("got (%q, %v), want error status with cause", status, err)
		}
	})

	t.Run("no chain", func(t *testing.T) {
		bare := newTestEnv(t)
		status, err := bare.engine.VerifyIntegrity(ctx, originID, "hash-a")
		if !errors.Is(err, billing.ErrChainUnavailable) || status != mirror.IntegrityError {
			t.Errorf("got (%q, %v), want chain unavailable", status, err)
		}
	})
}

func TestResidentScopedView(t *testing.T) {
	chain := mirror.NewMemoryChain()
	env := newTestEnv(t, billing.WithChain(chain))
	ctx := context.Background()

	member := id.NewResidentID()
	env.directory.AddMember(env.householdID, member)

	// Mirrored rows carry mixed subjects: the household, the head, and the
	// member who asks.
	base := time.Now().UTC()
	seed := []mirror.Record{
		{OriginID: id.NewEntryID(), SubjectID: env.householdID, Amount: types.PHP(3500), OccurredAt: base.Add(-2 * time.Hour)},
		{OriginID: id.NewEntryID(), SubjectID: env.headID, Amount: types.PHP(1000), OccurredAt: base.Add(-1 * time.Hour)},
		{OriginID: id.NewEntryID(), SubjectID: member, Amount: types.PHP(5000), OccurredAt: base},
	}
	for i := range seed {
		if _, err := chain.Submit(ctx, &seed[i]); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	view, err := env.engine.ResidentScopedView(ctx, member)
	if err != nil {
		t.Fatalf("ResidentScopedView: %v", err)
	}
	if len(view) != 3 {
		t.Fatalf("view = %d records, want 3 (household union)", len(view))
	}
	for i := 1; i < len(view); i++ {
		if view[i].OccurredAt.After(view[i-1].OccurredAt) {
			t.Fatal("view should be newest first")
		}
	}

	t.Run("householdless resident sees own rows only", func(t *testing.T) {
		loner := id.NewResidentID()
		rec := mirror.Record{OriginID: id.NewEntryID(), SubjectID: loner, Amount: types.PHP(200), OccurredAt: base}
		if _, err := chain.Submit(ctx, &rec); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		view, err := env.engine.ResidentScopedView(ctx, loner)
		if err != nil {
			t.Fatalf("ResidentScopedView: %v", err)
		}
		if len(view) != 1 {
			t.Errorf("view = %d records, want 1", len(view))
		}
	})
}
