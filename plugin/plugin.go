// Package plugin provides an extensible plugin system for the billing
// engine. Plugins can hook into lifecycle events to extend functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized. The engine passes itself
// so plugins can resolve peers.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Fee schedule hooks
// ──────────────────────────────────────────────────

// OnFeeScheduled is called when a fee schedule entry is appended.
type OnFeeScheduled interface {
	Plugin
	OnFeeScheduled(ctx context.Context, entry interface{}) error
}

// ──────────────────────────────────────────────────
// Payment ledger hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded is called after a payment commits to a record.
type OnPaymentRecorded interface {
	Plugin
	OnPaymentRecorded(ctx context.Context, record, entry interface{}) error
}

// OnPaymentEntryRemoved is called after a correction removes a payment
// entry. When the removal emptied and deleted the record, record reflects
// the state before deletion.
type OnPaymentEntryRemoved interface {
	Plugin
	OnPaymentEntryRemoved(ctx context.Context, record, entry interface{}) error
}

// OnRecordPurged is called after an administrative purge deletes a record.
type OnRecordPurged interface {
	Plugin
	OnRecordPurged(ctx context.Context, record interface{}) error
}

// ──────────────────────────────────────────────────
// Transaction hooks
// ──────────────────────────────────────────────────

// OnTransactionCreated is called when an explicit ledger transaction is
// recorded.
type OnTransactionCreated interface {
	Plugin
	OnTransactionCreated(ctx context.Context, txn interface{}) error
}

// ──────────────────────────────────────────────────
// Mirror hooks
// ──────────────────────────────────────────────────

// OnMirrorApplied is called when a replication attempt writes the external
// record.
type OnMirrorApplied interface {
	Plugin
	OnMirrorApplied(ctx context.Context, kind, originID, txID string) error
}

// OnMirrorSkipped is called when the external record already existed.
type OnMirrorSkipped interface {
	Plugin
	OnMirrorSkipped(ctx context.Context, kind, originID string) error
}

// OnMirrorFailed is called when a replication attempt fails.
type OnMirrorFailed interface {
	Plugin
	OnMirrorFailed(ctx context.Context, kind, originID string, cause error) error
}

// OnIntegrityChecked is called after an integrity verification resolves.
type OnIntegrityChecked interface {
	Plugin
	OnIntegrityChecked(ctx context.Context, originID, status string) error
}
