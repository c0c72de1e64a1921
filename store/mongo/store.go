// Package mongo implements the billing store on MongoDB via the Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/civicledger/billing"
	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/id"
	billingstore "github.com/civicledger/billing/store"
	"github.com/civicledger/billing/transaction"
	"github.com/civicledger/billing/types"
	"github.com/civicledger/billing/utilitypay"
)

// Collection name constants.
const (
	colFeeEntries      = "billing_fee_entries"
	colUtilityPayments = "billing_utility_payments"
	colTransactions    = "billing_transactions"
)

// compile-time interface check
var _ billingstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all billing collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("billing/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	return s.db.Close()
}

// ==================== Fee schedule ====================

func (s *Store) AppendFeeEntry(ctx context.Context, entry *feeschedule.Entry) error {
	m := toFeeEntryModel(entry)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return billing.ErrAlreadyExists
		}
		return fmt.Errorf("billing/mongo: append fee entry: %w", err)
	}
	return nil
}

func (s *Store) FeeHistory(ctx context.Context, category feeschedule.Category) ([]*feeschedule.Entry, error) {
	var models []feeEntryModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"category": string(category)}).
		Sort(bson.D{{Key: "effective_from", Value: 1}, {Key: "recorded_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("billing/mongo: fee history: %w", err)
	}

	entries := make([]*feeschedule.Entry, 0, len(models))
	for i := range models {
		e, err := fromFeeEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ==================== Utility payment records ====================

func (s *Store) GetRecord(ctx context.Context, key utilitypay.Key) (*utilitypay.Record, error) {
	var m recordModel
	err := s.mdb.NewFind(&m).
		Filter(keyFilter(key)).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, billing.ErrRecordNotFound
		}
		return nil, fmt.Errorf("billing/mongo: get record: %w", err)
	}
	return fromRecordModel(&m)
}

func (s *Store) InsertRecord(ctx context.Context, rec *utilitypay.Record) error {
	m := toRecordModel(rec)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return billing.ErrDuplicateRecord
		}
		return fmt.Errorf("billing/mongo: insert record: %w", err)
	}
	return nil
}

// UpdateRecord replaces the document only while its stored version still
// matches expectedVersion. The version field is part of the filter, so two
// racing writers cannot both match the same document.
func (s *Store) UpdateRecord(ctx context.Context, rec *utilitypay.Record, expectedVersion int64) error {
	rec.Version = expectedVersion + 1
	m := toRecordModel(rec)

	filter := keyFilter(rec.Key())
	filter["version"] = expectedVersion

	res, err := s.mdb.NewUpdate(m).
		Filter(filter).
		Exec(ctx)
	if err != nil {
		rec.Version = expectedVersion
		return fmt.Errorf("billing/mongo: update record: %w", err)
	}
	if res.MatchedCount() == 0 {
		rec.Version = expectedVersion
		// Distinguish a stale version from a vanished record.
		if _, getErr := s.GetRecord(ctx, rec.Key()); getErr == nil {
			return billing.ErrConflict
		}
		return billing.ErrRecordNotFound
	}
	return nil
}

func (s *Store) DeleteRecord(ctx context.Context, key utilitypay.Key) error {
	res, err := s.mdb.NewDelete((*recordModel)(nil)).
		Filter(keyFilter(key)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("billing/mongo: delete record: %w", err)
	}
	if res.DeletedCount() == 0 {
		return billing.ErrRecordNotFound
	}
	return nil
}

func (s *Store) ListPaidRecords(ctx context.Context, feeTypes []feeschedule.FeeType, rng types.PeriodRange) ([]*utilitypay.Record, error) {
	typeStrings := make([]string, len(feeTypes))
	for i, ft := range feeTypes {
		typeStrings[i] = string(ft)
	}

	filter := bson.M{
		"fee_type":  bson.M{"$in": typeStrings},
		"entries.0": bson.M{"$exists": true},
	}
	if period := periodFilter(rng); period != nil {
		filter["period"] = period
	}

	var models []recordModel
	err := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "household_id", Value: 1}, {Key: "fee_type", Value: 1}, {Key: "period", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("billing/mongo: list paid records: %w", err)
	}

	return recordsFromModels(models)
}

func (s *Store) SetEntryMirrorStatus(ctx context.Context, key utilitypay.Key, entryID id.EntryID, status types.MirrorStatus) error {
	filter := keyFilter(key)
	filter["entries.id"] = entryID.String()

	res, err := s.mdb.NewUpdate((*recordModel)(nil)).
		Filter(filter).
		Set("entries.$.mirror_status", string(status)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("billing/mongo: set entry mirror status: %w", err)
	}
	if res.MatchedCount() == 0 {
		return billing.ErrEntryNotFound
	}
	return nil
}

func (s *Store) ListUnmirroredEntries(ctx context.Context, limit int) ([]*utilitypay.Record, error) {
	var models []recordModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{"entries.mirror_status": bson.M{"$in": unmirroredStatuses()}}).
		Sort(bson.D{{Key: "updated_at", Value: 1}})

	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("billing/mongo: list unmirrored entries: %w", err)
	}

	return recordsFromModels(models)
}

// ==================== Transactions ====================

func (s *Store) CreateTransaction(ctx context.Context, txn *transaction.Transaction) error {
	m := toTransactionModel(txn)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return billing.ErrAlreadyExists
		}
		return fmt.Errorf("billing/mongo: create transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	var m transactionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": txnID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, billing.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("billing/mongo: get transaction: %w", err)
	}
	return fromTransactionModel(&m)
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	filter := bson.M{}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	if opts.Type != "" {
		filter["type"] = opts.Type
	}
	if !opts.Range.IsZero() {
		occurred := bson.M{}
		if !opts.Range.From.IsZero() {
			occurred["$gte"] = opts.Range.From.Start()
		}
		if !opts.Range.To.IsZero() {
			occurred["$lt"] = opts.Range.To.End()
		}
		filter["occurred_at"] = occurred
	}

	var models []transactionModel
	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "occurred_at", Value: 1}})

	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("billing/mongo: list transactions: %w", err)
	}

	txns := make([]*transaction.Transaction, 0, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, nil
}

func (s *Store) SetTransactionMirrorStatus(ctx context.Context, txnID id.TransactionID, status types.MirrorStatus) error {
	res, err := s.mdb.NewUpdate((*transactionModel)(nil)).
		Filter(bson.M{"_id": txnID.String()}).
		Set("mirror_status", string(status)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("billing/mongo: set transaction mirror status: %w", err)
	}
	if res.MatchedCount() == 0 {
		return billing.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) ListUnmirroredTransactions(ctx context.Context, limit int) ([]*transaction.Transaction, error) {
	var models []transactionModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{"mirror_status": bson.M{"$in": unmirroredStatuses()}}).
		Sort(bson.D{{Key: "occurred_at", Value: 1}})

	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("billing/mongo: list unmirrored transactions: %w", err)
	}

	txns := make([]*transaction.Transaction, 0, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// keyFilter addresses one record by its unique (household, fee type, period)
// key.
func keyFilter(key utilitypay.Key) bson.M {
	return bson.M{
		"household_id": key.HouseholdID.String(),
		"fee_type":     string(key.FeeType),
		"period":       key.Period.String(),
	}
}

// periodFilter translates a period range into a bson comparison, or nil for
// an unbounded range.
func periodFilter(rng types.PeriodRange) bson.M {
	if rng.IsZero() {
		return nil
	}
	filter := bson.M{}
	if !rng.From.IsZero() {
		filter["$gte"] = rng.From.String()
	}
	if !rng.To.IsZero() {
		filter["$lte"] = rng.To.String()
	}
	return filter
}

// unmirroredStatuses lists the mirror states the outbox sweep picks up.
// Rows written before mirroring existed carry an empty status.
func unmirroredStatuses() []string {
	return []string{string(types.MirrorPending), string(types.MirrorFailed), ""}
}

func recordsFromModels(models []recordModel) ([]*utilitypay.Record, error) {
	records := make([]*utilitypay.Record, 0, len(models))
	for i := range models {
		r, err := fromRecordModel(&models[i])
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all billing collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colFeeEntries: {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "effective_from", Value: 1}}},
			{Keys: bson.D{{Key: "recorded_at", Value: 1}}},
		},
		colUtilityPayments: {
			{
				Keys:    bson.D{{Key: "household_id", Value: 1}, {Key: "fee_type", Value: 1}, {Key: "period", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "fee_type", Value: 1}, {Key: "period", Value: 1}}},
			{Keys: bson.D{{Key: "entries.mirror_status", Value: 1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "occurred_at", Value: 1}}},
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "type", Value: 1}, {Key: "occurred_at", Value: 1}}},
			{Keys: bson.D{{Key: "mirror_status", Value: 1}}},
			{Keys: bson.D{{Key: "household_id", Value: 1}}},
		},
	}
}
