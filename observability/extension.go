// Package observability provides a metrics extension for the billing engine
// that records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/civicledger/billing/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnFeeScheduled        = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecorded     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentEntryRemoved = (*MetricsExtension)(nil)
	_ plugin.OnRecordPurged        = (*MetricsExtension)(nil)
	_ plugin.OnTransactionCreated  = (*MetricsExtension)(nil)
	_ plugin.OnMirrorApplied       = (*MetricsExtension)(nil)
	_ plugin.OnMirrorSkipped       = (*MetricsExtension)(nil)
	_ plugin.OnMirrorFailed        = (*MetricsExtension)(nil)
	_ plugin.OnIntegrityChecked    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to automatically track billing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Fee schedule metrics
	FeeScheduled Counter

	// Payment ledger metrics
	PaymentRecorded     Counter
	PaymentEntryRemoved Counter
	RecordPurged        Counter

	// Transaction metrics
	TransactionCreated Counter

	// Mirror metrics
	MirrorApplied Counter
	MirrorSkipped Counter
	MirrorFailed  Counter

	// Integrity metrics
	IntegrityChecks   Counter
	IntegrityFailures Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Fee schedule metrics
		FeeScheduled: factory.Counter("billing.fee.scheduled"),

		// Payment ledger metrics
		PaymentRecorded:     factory.Counter("billing.payment.recorded"),
		PaymentEntryRemoved: factory.Counter("billing.payment.entry_removed"),
		RecordPurged:        factory.Counter("billing.record.purged"),

		// Transaction metrics
		TransactionCreated: factory.Counter("billing.transaction.created"),

		// Mirror metrics
		MirrorApplied: factory.Counter("billing.mirror.applied"),
		MirrorSkipped: factory.Counter("billing.mirror.skipped"),
		MirrorFailed:  factory.Counter("billing.mirror.failed"),

		// Integrity metrics
		IntegrityChecks:   factory.Counter("billing.integrity.checks"),
		IntegrityFailures: factory.Counter("billing.integrity.failures"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Fee schedule hooks
// ──────────────────────────────────────────────────

// OnFeeScheduled implements plugin.OnFeeScheduled.
func (m *MetricsExtension) OnFeeScheduled(_ context.Context, _ interface{}) error {
	m.FeeScheduled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment ledger hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (m *MetricsExtension) OnPaymentRecorded(_ context.Context, _, _ interface{}) error {
	m.PaymentRecorded.Inc()
	return nil
}

// OnPaymentEntryRemoved implements plugin.OnPaymentEntryRemoved.
func (m *MetricsExtension) OnPaymentEntryRemoved(_ context.Context, _, _ interface{}) error {
	m.PaymentEntryRemoved.Inc()
	return nil
}

// OnRecordPurged implements plugin.OnRecordPurged.
func (m *MetricsExtension) OnRecordPurged(_ context.Context, _ interface{}) error {
	m.RecordPurged.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Transaction hooks
// ──────────────────────────────────────────────────

// OnTransactionCreated implements plugin.OnTransactionCreated.
func (m *MetricsExtension) OnTransactionCreated(_ context.Context, _ interface{}) error {
	m.TransactionCreated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Mirror hooks
// ──────────────────────────────────────────────────

// OnMirrorApplied implements plugin.OnMirrorApplied.
func (m *MetricsExtension) OnMirrorApplied(_ context.Context, _, _, _ string) error {
	m.MirrorApplied.Inc()
	return nil
}

// OnMirrorSkipped implements plugin.OnMirrorSkipped.
func (m *MetricsExtension) OnMirrorSkipped(_ context.Context, _, _ string) error {
	m.MirrorSkipped.Inc()
	return nil
}

// OnMirrorFailed implements plugin.OnMirrorFailed.
func (m *MetricsExtension) OnMirrorFailed(_ context.Context, _, _ string, _ error) error {
	m.MirrorFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Integrity hooks
// ──────────────────────────────────────────────────

// OnIntegrityChecked implements plugin.OnIntegrityChecked.
func (m *MetricsExtension) OnIntegrityChecked(_ context.Context, _, status string) error {
	m.IntegrityChecks.Inc()
	if status != "verified" {
		m.IntegrityFailures.Inc()
	}
	return nil
}
