package billing

import (
	"context"

	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/mirror"
	"github.com/civicledger/billing/revenue"
	"github.com/civicledger/billing/transaction"
	"github.com/civicledger/billing/types"
)

// ──────────────────────────────────────────────────
// Transactions & Revenue Aggregation
// ──────────────────────────────────────────────────

// CreateTransaction records an explicit revenue, expense or allocation
// transaction and schedules its external ledger mirror.
func (e *Engine) CreateTransaction(ctx context.Context, txn *transaction.Transaction) error {
	if !txn.Kind.Valid() {
		return ErrInvalidKind
	}
	if !txn.Amount.IsPositive() {
		return ValidationError{Field: "amount", Message: "must be positive"}
	}
	if txn.Type == "" {
		return ValidationError{Field: "type", Message: "required"}
	}

	if txn.ID.IsNil() {
		txn.ID = id.NewTransactionID()
	}
	txn.Entity = types.NewEntity()
	if txn.OccurredAt.IsZero() {
		txn.OccurredAt = txn.CreatedAt
	}
	txn.MirrorStatus = types.MirrorPending

	if err := e.store.CreateTransaction(ctx, txn); err != nil {
		return err
	}

	e.scheduleTransactionMirror(txn)
	e.plugins.EmitTransactionCreated(ctx, txn)
	return nil
}

// GetTransaction returns a transaction by ID.
func (e *Engine) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	return e.store.GetTransaction(ctx, txnID)
}

// ListRevenueEvents produces the merged financial event view from the three
// origin stores: explicit transactions, utility payment entries, and
// completed document orders. The listing is recomputed per call.
//
// Utility-fee-typed transactions are excluded at the source: the payment
// entries they trace already contribute one event each, and carrying both
// would double count every utility payment. Filtering runs after the merge
// so synthesized events are filterable exactly like primary ones.
func (e *Engine) ListRevenueEvents(ctx context.Context, filter revenue.Filter) ([]revenue.Event, error) {
	var events []revenue.Event

	// 1. Explicit transactions, minus utility fee types.
	txns, err := e.store.ListTransactions(ctx, transaction.ListOpts{Range: filter.Range})
	if err != nil {
		return nil, err
	}
	for _, txn := range txns {
		if txn.IsUtilityFee() {
			continue
		}
		events = append(events, revenue.FromTransaction(txn))
	}

	// 2. Utility payment entries, one event per entry. Records without
	// payments contribute nothing.
	records, err := e.store.ListPaidRecords(ctx, feeschedule.FeeTypes(), filter.Range)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		for i := range rec.Entries {
			events = append(events, revenue.FromPaymentEntry(rec, i))
		}
	}

	// 3. Completed document orders with a positive fee.
	orders, err := e.documents.ListCompleted(ctx, filter.Range)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if !o.Amount.IsPositive() {
			continue
		}
		events = append(events, revenue.FromDocumentOrder(o))
	}

	// 4 & 5. Post-merge filter, then order by occurrence time.
	return filter.Apply(events), nil
}

// Totals reduces events to per-kind sums. Pure and order-independent.
func (e *Engine) Totals(events []revenue.Event) revenue.Summary {
	return revenue.Totals(events)
}

// scheduleTransactionMirror enqueues an external ledger write for an
// explicit transaction.
func (e *Engine) scheduleTransactionMirror(txn *transaction.Transaction) {
	subject := id.ID{}
	if !txn.HouseholdID.IsNil() {
		subject = txn.HouseholdID
	} else if !txn.ResidentID.IsNil() {
		subject = txn.ResidentID
	}
	e.enqueueMirror(mirrorJob{
		req: mirror.Request{
			Kind:     mirror.KindTransaction,
			OriginID: txn.ID,
			Record: mirror.Record{
				OriginID:    txn.ID,
				Kind:        mirror.KindTransaction,
				SubjectID:   subject,
				Amount:      txn.Amount,
				OccurredAt:  txn.OccurredAt,
				Description: txn.Description,
			},
		},
		txnID: txn.ID,
	})
}
