// Package billing provides a composable municipal utility billing engine for
// Go applications.
//
// Billing is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - Versioned fee schedules with retroactive-safe rate resolution
//   - An append-only utility payment ledger keyed by household, fee type, and
//     billing period
//   - Integer-only money arithmetic that never drifts by a centavo
//   - Revenue aggregation across payments, transactions, and document fees
//   - Asynchronous mirroring of financial rows to an external ledger with
//     reconciliation of the backlog
//   - Pluggable lifecycle hooks for audit trails and metrics
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/civicledger/billing"
//	    "github.com/civicledger/billing/store/postgres"
//	)
//
//	store := postgres.New(groveDB)
//	directory := household.NewStaticDirectory()
//
//	engine := billing.New(store, directory)
//
//	// Start the engine (migrates the store, begins background workers)
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Core Concepts
//
// Fee schedules are append-only rate histories per category. Scheduling a fee
// never rewrites earlier periods:
//
//	err := engine.ScheduleFee(ctx, &feeschedule.Entry{
//	    Category:      feeschedule.CategoryGarbageRegular,
//	    Value:         billing.PHP(4000),
//	    EffectiveFrom: billing.Period("2026-01"),
//	})
//
// Payments apply to the record addressed by household, fee type, and period.
// The first payment against a period creates the record, pricing it from the
// fee schedule in force:
//
//	rec, err := engine.RecordPayment(ctx, billing.RecordPaymentInput{
//	    HouseholdID: householdID,
//	    FeeType:     feeschedule.FeeGarbage,
//	    Period:      billing.Period("2026-02"),
//	    Amount:      billing.PHP(3500),
//	    Method:      "cash",
//	})
//
// Revenue aggregation merges directly-recorded transactions, per-entry
// utility payments, and completed document orders into one event stream:
//
//	events, err := engine.ListRevenueEvents(ctx, revenue.Filter{})
//	summary := engine.Totals(events)
//
// Every payment entry and transaction is mirrored asynchronously to the
// configured external ledger. Rows that could not be mirrored stay pending
// and are re-enqueued by RequeuePendingMirrors.
//
// # Storage
//
// Three store implementations ship with the module:
//
//   - store/memory: in-memory, for tests and demos
//   - store/mongo: MongoDB via the Grove ORM
//   - store/postgres: PostgreSQL via the Grove ORM
//
// All three enforce the unique (household, fee type, period) record key and
// the version check on record updates.
package billing
