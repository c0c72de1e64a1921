// Package audithook bridges billing lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/civicledger/billing/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnFeeScheduled        = (*Extension)(nil)
	_ plugin.OnPaymentRecorded     = (*Extension)(nil)
	_ plugin.OnPaymentEntryRemoved = (*Extension)(nil)
	_ plugin.OnRecordPurged        = (*Extension)(nil)
	_ plugin.OnTransactionCreated  = (*Extension)(nil)
	_ plugin.OnMirrorApplied       = (*Extension)(nil)
	_ plugin.OnMirrorFailed        = (*Extension)(nil)
	_ plugin.OnIntegrityChecked    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so callers can inject any concrete audit client.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges billing lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Fee schedule hooks
// ──────────────────────────────────────────────────

// OnFeeScheduled implements plugin.OnFeeScheduled.
func (e *Extension) OnFeeScheduled(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionFeeScheduled, SeverityInfo, OutcomeSuccess,
		ResourceFeeSchedule, "", CategoryBilling, nil,
		"event", "fee_scheduled",
	)
}

// ──────────────────────────────────────────────────
// Payment ledger hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (e *Extension) OnPaymentRecorded(ctx context.Context, _, _ interface{}) error {
	return e.record(ctx, ActionPaymentRecorded, SeverityInfo, OutcomeSuccess,
		ResourcePaymentRecord, "", CategoryPayment, nil,
		"event", "payment_recorded",
	)
}

// OnPaymentEntryRemoved implements plugin.OnPaymentEntryRemoved.
func (e *Extension) OnPaymentEntryRemoved(ctx context.Context, _, _ interface{}) error {
	// Corrections are rare enough that each one is worth a warning-level
	// audit row.
	return e.record(ctx, ActionPaymentEntryRemoved, SeverityWarning, OutcomeSuccess,
		ResourcePaymentRecord, "", CategoryPayment, nil,
		"event", "payment_entry_removed",
	)
}

// OnRecordPurged implements plugin.OnRecordPurged.
func (e *Extension) OnRecordPurged(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionRecordPurged, SeverityWarning, OutcomeSuccess,
		ResourcePaymentRecord, "", CategoryPayment, nil,
		"event", "record_purged",
	)
}

// ──────────────────────────────────────────────────
// Transaction hooks
// ──────────────────────────────────────────────────

// OnTransactionCreated implements plugin.OnTransactionCreated.
func (e *Extension) OnTransactionCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionTransactionCreated, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, "", CategoryBilling, nil,
		"event", "transaction_created",
	)
}

// ──────────────────────────────────────────────────
// Mirror hooks
// ──────────────────────────────────────────────────

// OnMirrorApplied implements plugin.OnMirrorApplied.
func (e *Extension) OnMirrorApplied(ctx context.Context, kind, originID, txID string) error {
	return e.record(ctx, ActionMirrorApplied, SeverityInfo, OutcomeSuccess,
		ResourceMirror, originID, CategoryMirror, nil,
		"kind", kind,
		"tx_id", txID,
	)
}

// OnMirrorFailed implements plugin.OnMirrorFailed.
func (e *Extension) OnMirrorFailed(ctx context.Context, kind, originID string, cause error) error {
	return e.record(ctx, ActionMirrorFailed, SeverityError, OutcomeFailure,
		ResourceMirror, originID, CategoryMirror, cause,
		"kind", kind,
	)
}

// ──────────────────────────────────────────────────
// Integrity hooks
// ──────────────────────────────────────────────────

// OnIntegrityChecked implements plugin.OnIntegrityChecked.
func (e *Extension) OnIntegrityChecked(ctx context.Context, originID, status string) error {
	severity := SeverityInfo
	outcome := OutcomeSuccess
	if status != "verified" {
		severity = SeverityWarning
		outcome = OutcomePartial
	}
	return e.record(ctx, ActionIntegrityChecked, severity, outcome,
		ResourceMirror, originID, CategoryIntegrity, nil,
		"status", status,
	)
}

// record builds and emits one audit event, honoring the enabled-action
// filter. Recorder failures are logged, never propagated.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audithook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
