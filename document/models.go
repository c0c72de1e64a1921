// Package document exposes the document-service order feed the revenue
// aggregator consumes. Orders are owned by the document-request collaborator;
// the billing engine only reads completed, fee-bearing orders.
package document

import (
	"context"
	"sync"
	"time"

	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/types"
)

// Status of a document service order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReleased  Status = "released"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// Completed reports whether the order reached a fee-collecting terminal state.
func (s Status) Completed() bool {
	return s == StatusCompleted || s == StatusReleased
}

// Order is one document service request with its processing fee.
type Order struct {
	ID         id.DocumentID `json:"id"`
	ResidentID id.ResidentID `json:"resident_id"`
	Type       string        `json:"type"`
	Amount     types.Money   `json:"amount"`
	Status     Status        `json:"status"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Feed is the read-only collaborator interface for document orders.
type Feed interface {
	// ListCompleted returns completed, positive-fee orders within the period
	// range, ordered by OccurredAt descending.
	ListCompleted(ctx context.Context, r types.PeriodRange) ([]Order, error)
}

// StaticFeed is an in-memory Feed for tests and embedding.
type StaticFeed struct {
	mu     sync.RWMutex
	orders []Order
}

// NewStaticFeed creates an empty in-memory feed.
func NewStaticFeed() *StaticFeed {
	return &StaticFeed{}
}

// Add appends orders to the feed.
func (f *StaticFeed) Add(orders ...Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, orders...)
}

// ListCompleted implements Feed.
func (f *StaticFeed) ListCompleted(_ context.Context, r types.PeriodRange) ([]Order, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]Order, 0)
	for _, o := range f.orders {
		if !o.Status.Completed() || !o.Amount.IsPositive() {
			continue
		}
		if !r.ContainsTime(o.OccurredAt) {
			continue
		}
		result = append(result, o)
	}
	return result, nil
}
