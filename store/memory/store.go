// Package memory provides an in-memory Store implementation, used for
// tests and for embedding the engine without an external database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/civicledger/billing"
	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/transaction"
	"github.com/civicledger/billing/types"
	"github.com/civicledger/billing/utilitypay"
)

type Store struct {
	mu sync.RWMutex

	// Fee schedule entries, append only, keyed by category.
	feeEntries map[feeschedule.Category][]*feeschedule.Entry

	// Payment records keyed by (household, fee type, period).
	records map[string]*utilitypay.Record

	// Ledger transactions keyed by ID.
	transactions map[string]*transaction.Transaction
	txnOrder     []string
}

func New() *Store {
	return &Store{
		feeEntries:   make(map[feeschedule.Category][]*feeschedule.Entry),
		records:      make(map[string]*utilitypay.Record),
		transactions: make(map[string]*transaction.Transaction),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Fee schedule
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) AppendFeeEntry(_ context.Context, entry *feeschedule.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.feeEntries[entry.Category] = append(s.feeEntries[entry.Category], &cp)
	return nil
}

func (s *Store) FeeHistory(_ context.Context, category feeschedule.Category) ([]*feeschedule.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.feeEntries[category]
	out := make([]*feeschedule.Entry, len(entries))
	for i, e := range entries {
		cp := *e
		out[i] = &cp
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EffectiveFrom != out[j].EffectiveFrom {
			return out[i].EffectiveFrom.Before(out[j].EffectiveFrom)
		}
		return out[i].RecordedAt.Before(out[j].RecordedAt)
	})
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Utility payment records
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) GetRecord(_ context.Context, key utilitypay.Key) (*utilitypay.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.records[key.String()]; ok {
		return cloneRecord(rec), nil
	}
	return nil, billing.ErrRecordNotFound
}

func (s *Store) InsertRecord(_ context.Context, rec *utilitypay.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := rec.Key().String()
	if _, exists := s.records[k]; exists {
		return billing.ErrDuplicateRecord
	}
	s.records[k] = cloneRecord(rec)
	return nil
}

func (s *Store) UpdateRecord(_ context.Context, rec *utilitypay.Record, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := rec.Key().String()
	cur, ok := s.records[k]
	if !ok {
		return billing.ErrRecordNotFound
	}
	if cur.Version != expectedVersion {
		return billing.ErrConflict
	}
	cp := cloneRecord(rec)
	cp.Version = expectedVersion + 1
	s.records[k] = cp
	rec.Version = cp.Version
	return nil
}

func (s *Store) DeleteRecord(_ context.Context, key utilitypay.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if _, ok := s.records[k]; !ok {
		return billing.ErrRecordNotFound
	}
	delete(s.records, k)
	return nil
}

func (s *Store) ListPaidRecords(_ context.Context, feeTypes []feeschedule.FeeType, rng types.PeriodRange) ([]*utilitypay.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[feeschedule.FeeType]bool, len(feeTypes))
	for _, ft := range feeTypes {
		wanted[ft] = true
	}

	var out []*utilitypay.Record
	for _, rec := range s.records {
		if len(rec.Entries) == 0 {
			continue
		}
		if len(wanted) > 0 && !wanted[rec.FeeType] {
			continue
		}
		if !rng.IsZero() && !rng.Contains(rec.Period) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out, nil
}

func (s *Store) SetEntryMirrorStatus(_ context.Context, key utilitypay.Key, entryID id.EntryID, status types.MirrorStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key.String()]
	if !ok {
		return billing.ErrRecordNotFound
	}
	for i := range rec.Entries {
		if rec.Entries[i].ID == entryID {
			rec.Entries[i].MirrorStatus = status
			return nil
		}
	}
	return billing.ErrEntryNotFound
}

func (s *Store) ListUnmirroredEntries(_ context.Context, limit int) ([]*utilitypay.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*utilitypay.Record
	for _, rec := range s.records {
		pending := false
		for i := range rec.Entries {
			if rec.Entries[i].MirrorStatus.NeedsMirror() {
				pending = true
				break
			}
		}
		if pending {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Transactions
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) CreateTransaction(_ context.Context, txn *transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := txn.ID.String()
	if _, exists := s.transactions[k]; exists {
		return billing.ErrAlreadyExists
	}
	cp := *txn
	s.transactions[k] = &cp
	s.txnOrder = append(s.txnOrder, k)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if txn, ok := s.transactions[txnID.String()]; ok {
		cp := *txn
		return &cp, nil
	}
	return nil, billing.ErrTransactionNotFound
}

func (s *Store) ListTransactions(_ context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*transaction.Transaction
	for _, k := range s.txnOrder {
		txn := s.transactions[k]
		if opts.Kind != "" && txn.Kind != opts.Kind {
			continue
		}
		if opts.Type != "" && txn.Type != opts.Type {
			continue
		}
		if !opts.Range.IsZero() && !opts.Range.ContainsTime(txn.OccurredAt) {
			continue
		}
		cp := *txn
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) SetTransactionMirrorStatus(_ context.Context, txnID id.TransactionID, status types.MirrorStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.transactions[txnID.String()]
	if !ok {
		return billing.ErrTransactionNotFound
	}
	txn.MirrorStatus = status
	return nil
}

func (s *Store) ListUnmirroredTransactions(_ context.Context, limit int) ([]*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*transaction.Transaction
	for _, k := range s.txnOrder {
		txn := s.transactions[k]
		if !txn.MirrorStatus.NeedsMirror() {
			continue
		}
		cp := *txn
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

func cloneRecord(rec *utilitypay.Record) *utilitypay.Record {
	cp := *rec
	cp.Entries = make([]utilitypay.PaymentEntry, len(rec.Entries))
	copy(cp.Entries, rec.Entries)
	return &cp
}
