package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the billing store.
var Migrations = migrate.NewGroup("billing")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_billing_fee_entries",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS billing_fee_entries (
    id             TEXT PRIMARY KEY,
    category       TEXT NOT NULL DEFAULT '',
    value_cents    BIGINT NOT NULL DEFAULT 0,
    value_currency TEXT NOT NULL DEFAULT 'php',
    effective_from TEXT NOT NULL DEFAULT '',
    recorded_by    TEXT NOT NULL DEFAULT '',
    recorded_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_billing_fee_entries_category ON billing_fee_entries (category, effective_from);
CREATE INDEX IF NOT EXISTS idx_billing_fee_entries_recorded ON billing_fee_entries (recorded_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS billing_fee_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_billing_utility_payments",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS billing_utility_payments (
    id                    TEXT PRIMARY KEY,
    household_id          TEXT NOT NULL DEFAULT '',
    fee_type              TEXT NOT NULL DEFAULT '',
    period                TEXT NOT NULL DEFAULT '',
    total_charge_cents    BIGINT NOT NULL DEFAULT 0,
    total_charge_currency TEXT NOT NULL DEFAULT 'php',
    amount_paid_cents     BIGINT NOT NULL DEFAULT 0,
    amount_paid_currency  TEXT NOT NULL DEFAULT 'php',
    balance_cents         BIGINT NOT NULL DEFAULT 0,
    balance_currency      TEXT NOT NULL DEFAULT 'php',
    status                TEXT NOT NULL DEFAULT 'unpaid',
    entries               JSONB NOT NULL DEFAULT '[]',
    version               BIGINT NOT NULL DEFAULT 1,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_billing_payments_key ON billing_utility_payments (household_id, fee_type, period);
CREATE INDEX IF NOT EXISTS idx_billing_payments_type_period ON billing_utility_payments (fee_type, period);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS billing_utility_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_billing_transactions",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS billing_transactions (
    id              TEXT PRIMARY KEY,
    kind            TEXT NOT NULL DEFAULT '',
    type            TEXT NOT NULL DEFAULT '',
    amount_cents    BIGINT NOT NULL DEFAULT 0,
    amount_currency TEXT NOT NULL DEFAULT 'php',
    occurred_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    household_id    TEXT NOT NULL DEFAULT '',
    resident_id     TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    recorded_by     TEXT NOT NULL DEFAULT '',
    mirror_status   TEXT NOT NULL DEFAULT 'pending',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_billing_txns_occurred ON billing_transactions (occurred_at);
CREATE INDEX IF NOT EXISTS idx_billing_txns_kind_type ON billing_transactions (kind, type, occurred_at);
CREATE INDEX IF NOT EXISTS idx_billing_txns_mirror ON billing_transactions (mirror_status);
CREATE INDEX IF NOT EXISTS idx_billing_txns_household ON billing_transactions (household_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS billing_transactions`)
				return err
			},
		},
	)
}
