package feeschedule

import (
	"context"
)

// Store persists the append-only fee schedule history.
type Store interface {
	// AppendFeeEntry appends a rate change. History is never updated in place.
	AppendFeeEntry(ctx context.Context, e *Entry) error

	// FeeHistory returns all entries for a category ordered by EffectiveFrom
	// ascending, then RecordedAt ascending.
	FeeHistory(ctx context.Context, c Category) ([]*Entry, error)
}
