package audithook

// Action constants for audit events.
const (
	// Fee schedule actions
	ActionFeeScheduled = "fee.scheduled"

	// Payment ledger actions
	ActionPaymentRecorded     = "payment.recorded"
	ActionPaymentEntryRemoved = "payment.entry_removed"
	ActionRecordPurged        = "record.purged"

	// Transaction actions
	ActionTransactionCreated = "transaction.created"

	// Mirror actions
	ActionMirrorApplied = "mirror.applied"
	ActionMirrorSkipped = "mirror.skipped"
	ActionMirrorFailed  = "mirror.failed"

	// Integrity actions
	ActionIntegrityChecked = "integrity.checked"
)

// Resource constants for audit events.
const (
	ResourceFeeSchedule   = "fee_schedule"
	ResourcePaymentRecord = "payment_record"
	ResourceTransaction   = "transaction"
	ResourceMirror        = "mirror"
)

// Category constants for audit events.
const (
	CategoryBilling   = "billing"
	CategoryPayment   = "payment"
	CategoryMirror    = "mirror"
	CategoryIntegrity = "integrity"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
