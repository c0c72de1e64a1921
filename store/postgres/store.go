// Package postgres implements the billing store on PostgreSQL via the Grove
// ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/civicledger/billing"
	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/id"
	billingstore "github.com/civicledger/billing/store"
	"github.com/civicledger/billing/transaction"
	"github.com/civicledger/billing/types"
	"github.com/civicledger/billing/utilitypay"
)

// compile-time interface check
var _ billingstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("billing/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("billing/postgres: migration failed: %w", err)
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return billing.ErrAlreadyExists
		}
		return fmt.Errorf("billing/postgres: append fee entry: %w", err)
	}
	return nil
}

func (s *Store) FeeHistory(ctx context.Context, category feeschedule.Category) ([]*feeschedule.Entry, error) {
	var models []feeEntryModel
	err := s.pg.NewSelect(&models).
		Where("category = $1", string(category)).
		OrderExpr("effective_from ASC, recorded_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("billing/postgres: fee history: %w", err)
	}

	entries := make([]*feeschedule.Entry, len(models))
	for i := range models {
		e, err := fromFeeEntryModel(&models[i])
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}

// ==================== Utility payment records ====================

func (s *Store) GetRecord(ctx context.Context, key utilitypay.Key) (*utilitypay.Record, error) {
	m := new(recordModel)
	err := s.pg.NewSelect(m).
		Where("household_id = $1", key.HouseholdID.String()).
		Where("fee_type = $2", string(key.FeeType)).
		Where("period = $3", key.Period.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, billing.ErrRecordNotFound
		}
		return nil, fmt.Errorf("billing/postgres: get record: %w", err)
	}
	return fromRecordModel(m)
}

func (s *Store) InsertRecord(ctx context.Context, rec *utilitypay.Record) error {
	m := toRecordModel(rec)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return billing.ErrDuplicateRecord
		}
		return fmt.Errorf("billing/postgres: insert record: %w", err)
	}
	return nil
}

// UpdateRecord writes the record only while the stored version still matches
// expectedVersion. The version is part of the WHERE clause, so two racing
// writers cannot both update the same row.
func (s *Store) UpdateRecord(ctx context.Context, rec *utilitypay.Record, expectedVersion int64) error {
	rec.Version = expectedVersion + 1
	m := toRecordModel(rec)
	m.UpdatedAt = now()

	res, err := s.pg.NewUpdate(m).
		Where("household_id = $1", m.HouseholdID).
		Where("fee_type = $2", m.FeeType).
		Where("period = $3", m.Period).
		Where("version = $4", expectedVersion).
		Exec(ctx)
	if err != nil {
		rec.Version = expectedVersion
		return fmt.Errorf("billing/postgres: update record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		rec.Version = expectedVersion
		return fmt.Errorf("billing/postgres: update record: %w", err)
	}
	if rows == 0 {
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
	res, err := s.pg.NewDelete((*recordModel)(nil)).
		Where("household_id = $1", key.HouseholdID.String()).
		Where("fee_type = $2", string(key.FeeType)).
		Where("period = $3", key.Period.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("billing/postgres: delete record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("billing/postgres: delete record: %w", err)
	}
	if rows == 0 {
		return billing.ErrRecordNotFound
	}
	return nil
}

func (s *Store) ListPaidRecords(ctx context.Context, feeTypes []feeschedule.FeeType, rng types.PeriodRange) ([]*utilitypay.Record, error) {
	typeStrings := make([]string, len(feeTypes))
	for i, ft := range feeTypes {
		typeStrings[i] = string(ft)
	}

	var models []recordModel
	q := s.pg.NewSelect(&models).
		Where("fee_type = ANY($1)", typeStrings).
		Where("jsonb_array_length(entries) > 0")

	argIdx := 1
	if !rng.From.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("period >= $%d", argIdx), rng.From.String())
	}
	if !rng.To.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("period <= $%d", argIdx), rng.To.String())
	}
	q = q.OrderExpr("household_id ASC, fee_type ASC, period ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("billing/postgres: list paid records: %w", err)
	}

	return recordsFromModels(models)
}

func (s *Store) SetEntryMirrorStatus(ctx context.Context, key utilitypay.Key, entryID id.EntryID, status types.MirrorStatus) error {
	// Rewrite the one matching element inside the entries JSONB array.
	res, err := s.pg.NewUpdate((*recordModel)(nil)).
		Set(`entries = (
    SELECT jsonb_agg(
        CASE WHEN e->>'id' = $1
             THEN jsonb_set(e, '{mirror_status}', to_jsonb($2::text))
             ELSE e END)
    FROM jsonb_array_elements(entries) AS e
)`, entryID.String(), string(status)).
		Where("household_id = $3", key.HouseholdID.String()).
		Where("fee_type = $4", string(key.FeeType)).
		Where("period = $5", key.Period.String()).
		Where(`entries @> $6`, fmt.Sprintf(`[{"id":%q}]`, entryID.String())).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("billing/postgres: set entry mirror status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("billing/postgres: set entry mirror status: %w", err)
	}
	if rows == 0 {
		return billing.ErrEntryNotFound
	}
	return nil
}

func (s *Store) ListUnmirroredEntries(ctx context.Context, limit int) ([]*utilitypay.Record, error) {
	var models []recordModel
	q := s.pg.NewSelect(&models).
		Where(`EXISTS (
    SELECT 1 FROM jsonb_array_elements(entries) AS e
    WHERE COALESCE(e->>'mirror_status', '') IN ('pending', 'failed', '')
)`).
		OrderExpr("updated_at ASC")

	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("billing/postgres: list unmirrored entries: %w", err)
	}

	return recordsFromModels(models)
}

// ==================== Transactions ====================

func (s *Store) CreateTransaction(ctx context.Context, txn *transaction.Transaction) error {
	m := toTransactionModel(txn)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return billing.ErrAlreadyExists
		}
		return fmt.Errorf("billing/postgres: create transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, txnID id.TransactionID) (*transaction.Transaction, error) {
	m := new(transactionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", txnID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, billing.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("billing/postgres: get transaction: %w", err)
	}
	return fromTransactionModel(m)
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Kind != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("kind = $%d", argIdx), string(opts.Kind))
	}
	if opts.Type != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("type = $%d", argIdx), opts.Type)
	}
	if !opts.Range.From.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("occurred_at >= $%d", argIdx), opts.Range.From.Start())
	}
	if !opts.Range.To.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("occurred_at < $%d", argIdx), opts.Range.To.End())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("occurred_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("billing/postgres: list transactions: %w", err)
	}

	txns := make([]*transaction.Transaction, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		txns[i] = t
	}
	return txns, nil
}

func (s *Store) SetTransactionMirrorStatus(ctx context.Context, txnID id.TransactionID, status types.MirrorStatus) error {
	res, err := s.pg.NewUpdate((*transactionModel)(nil)).
		Set("mirror_status = $1", string(status)).
		Set("updated_at = $2", now()).
		Where("id = $3", txnID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("billing/postgres: set transaction mirror status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("billing/postgres: set transaction mirror status: %w", err)
	}
	if rows == 0 {
		return billing.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) ListUnmirroredTransactions(ctx context.Context, limit int) ([]*transaction.Transaction, error) {
	var models []transactionModel
	q := s.pg.NewSelect(&models).
		Where("mirror_status IN ($1, $2, $3)", "pending", "failed", "").
		OrderExpr("occurred_at ASC")

	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("billing/postgres: list unmirrored transactions: %w", err)
	}

	txns := make([]*transaction.Transaction, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		txns[i] = t
	}
	return txns, nil
}

// ==================== Helpers ====================

func recordsFromModels(models []recordModel) ([]*utilitypay.Record, error) {
	records := make([]*utilitypay.Record, len(models))
	for i := range models {
		r, err := fromRecordModel(&models[i])
		if err != nil {
			return nil, err
		}
		records[i] = r
	}
	return records, nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation checks for the postgres unique_violation error code.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
