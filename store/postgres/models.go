package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/transaction"
	"github.com/civicledger/billing/types"
	"github.com/civicledger/billing/utilitypay"
)

// ==================== Fee schedule models ====================

type feeEntryModel struct {
	grove.BaseModel `grove:"table:billing_fee_entries"`

	ID            string    `grove:"id,pk"`
	Category      string    `grove:"category"`
	ValueCents    int64     `grove:"value_cents"`
	ValueCurrency string    `grove:"value_currency"`
	EffectiveFrom string    `grove:"effective_from"`
	RecordedBy    string    `grove:"recorded_by"`
	RecordedAt    time.Time `grove:"recorded_at"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toFeeEntryModel(e *feeschedule.Entry) *feeEntryModel {
	return &feeEntryModel{
		ID:            e.ID.String(),
		Category:      string(e.Category),
		ValueCents:    e.Value.Amount,
		ValueCurrency: e.Value.Currency,
		EffectiveFrom: e.EffectiveFrom.String(),
		RecordedBy:    e.RecordedBy,
		RecordedAt:    e.RecordedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func fromFeeEntryModel(m *feeEntryModel) (*feeschedule.Entry, error) {
	entryID, err := id.ParseFeeEntryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fee entry ID %q: %w", m.ID, err)
	}

	return &feeschedule.Entry{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            entryID,
		Category:      feeschedule.Category(m.Category),
		Value:         types.Money{Amount: m.ValueCents, Currency: m.ValueCurrency},
		EffectiveFrom: types.Period(m.EffectiveFrom),
		RecordedBy:    m.RecordedBy,
		RecordedAt:    m.RecordedAt,
	}, nil
}

// ==================== Utility payment models ====================

type recordModel struct {
	grove.BaseModel `grove:"table:billing_utility_payments"`

	ID                  string          `grove:"id,pk"`
	HouseholdID         string          `grove:"household_id"`
	FeeType             string          `grove:"fee_type"`
	Period              string          `grove:"period"`
	TotalChargeCents    int64           `grove:"total_charge_cents"`
	TotalChargeCurrency string          `grove:"total_charge_currency"`
	AmountPaidCents     int64           `grove:"amount_paid_cents"`
	AmountPaidCurrency  string          `grove:"amount_paid_currency"`
	BalanceCents        int64           `grove:"balance_cents"`
	BalanceCurrency     string          `grove:"balance_currency"`
	Status              string          `grove:"status"`
	Entries             json.RawMessage `grove:"entries,type:jsonb"`
	Version             int64           `grove:"version"`
	CreatedAt           time.Time       `grove:"created_at"`
	UpdatedAt           time.Time       `grove:"updated_at"`
}

func toRecordModel(r *utilitypay.Record) *recordModel {
	entries, _ := json.Marshal(r.Entries) //nolint:errcheck // best-effort

	return &recordModel{
		ID:                  r.ID.String(),
		HouseholdID:         r.HouseholdID.String(),
		FeeType:             string(r.FeeType),
		Period:              r.Period.String(),
		TotalChargeCents:    r.TotalCharge.Amount,
		TotalChargeCurrency: r.TotalCharge.Currency,
		AmountPaidCents:     r.AmountPaid.Amount,
		AmountPaidCurrency:  r.AmountPaid.Currency,
		BalanceCents:        r.Balance.Amount,
		BalanceCurrency:     r.Balance.Currency,
		Status:              string(r.Status),
		Entries:             entries,
		Version:             r.Version,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func fromRecordModel(m *recordModel) (*utilitypay.Record, error) {
	recordID, err := id.ParseRecordID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse record ID %q: %w", m.ID, err)
	}
	householdID, err := id.ParseHouseholdID(m.HouseholdID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse household ID %q: %w", m.HouseholdID, err)
	}

	var entries []utilitypay.PaymentEntry
	if len(m.Entries) > 0 {
		_ = json.Unmarshal(m.Entries, &entries) //nolint:errcheck // best-effort
	}

	return &utilitypay.Record{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          recordID,
		HouseholdID: householdID,
		FeeType:     feeschedule.FeeType(m.FeeType),
		Period:      types.Period(m.Period),
		TotalCharge: types.Money{Amount: m.TotalChargeCents, Currency: m.TotalChargeCurrency},
		AmountPaid:  types.Money{Amount: m.AmountPaidCents, Currency: m.AmountPaidCurrency},
		Balance:     types.Money{Amount: m.BalanceCents, Currency: m.BalanceCurrency},
		Status:      utilitypay.Status(m.Status),
		Entries:     entries,
		Version:     m.Version,
	}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:billing_transactions"`

	ID             string    `grove:"id,pk"`
	Kind           string    `grove:"kind"`
	Type           string    `grove:"type"`
	AmountCents    int64     `grove:"amount_cents"`
	AmountCurrency string    `grove:"amount_currency"`
	OccurredAt     time.Time `grove:"occurred_at"`
	HouseholdID    string    `grove:"household_id"`
	ResidentID     string    `grove:"resident_id"`
	Description    string    `grove:"description"`
	RecordedBy     string    `grove:"recorded_by"`
	MirrorStatus   string    `grove:"mirror_status"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toTransactionModel(t *transaction.Transaction) *transactionModel {
	m := &transactionModel{
		ID:             t.ID.String(),
		Kind:           string(t.Kind),
		Type:           t.Type,
		AmountCents:    t.Amount.Amount,
		AmountCurrency: t.Amount.Currency,
		OccurredAt:     t.OccurredAt,
		Description:    t.Description,
		RecordedBy:     t.RecordedBy,
		MirrorStatus:   string(t.MirrorStatus),
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if !t.HouseholdID.IsNil() {
		m.HouseholdID = t.HouseholdID.String()
	}
	if !t.ResidentID.IsNil() {
		m.ResidentID = t.ResidentID.String()
	}
	return m
}

func fromTransactionModel(m *transactionModel) (*transaction.Transaction, error) {
	txnID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction ID %q: %w", m.ID, err)
	}

	t := &transaction.Transaction{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           txnID,
		Kind:         transaction.Kind(m.Kind),
		Type:         m.Type,
		Amount:       types.Money{Amount: m.AmountCents, Currency: m.AmountCurrency},
		OccurredAt:   m.OccurredAt,
		Description:  m.Description,
		RecordedBy:   m.RecordedBy,
		MirrorStatus: types.MirrorStatus(m.MirrorStatus),
	}
	if m.HouseholdID != "" {
		t.HouseholdID, err = id.ParseHouseholdID(m.HouseholdID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse household ID %q: %w", m.HouseholdID, err)
		}
	}
	if m.ResidentID != "" {
		t.ResidentID, err = id.ParseResidentID(m.ResidentID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse resident ID %q: %w", m.ResidentID, err)
		}
	}
	return t, nil
}
