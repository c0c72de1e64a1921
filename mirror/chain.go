package mirror

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/civicledger/billing/id"
)

// Chain is the external append-only ledger client. Implementations must be
// safe for concurrent use; calls may block on network I/O and should honor
// the context deadline.
type Chain interface {
	// Get returns the record mirrored for an origin ID, or ErrNotRegistered.
	Get(ctx context.Context, originID id.ID) (*Record, error)

	// Submit appends a record. Submitting an origin ID that already exists
	// returns ErrAlreadyExists. On success the external transaction ID is
	// returned.
	Submit(ctx context.Context, r *Record) (string, error)

	// ListBySubject returns all records written under a subject ID.
	ListBySubject(ctx context.Context, subjectID id.ID) ([]Record, error)
}

// MemoryChain is an in-memory Chain for tests and local development. It
// preserves external-ledger semantics: append-only, tombstones instead of
// deletes, records keyed by origin ID.
type MemoryChain struct {
	mu      sync.RWMutex
	records map[string]*Record
	txSeq   int

	// Error hooks for failure injection in tests. When set, the matching
	// operation returns the error instead of touching state.
	GetErr    error
	SubmitErr error
	ListErr   error
}

// NewMemoryChain creates an empty in-memory chain.
func NewMemoryChain() *MemoryChain {
	return &MemoryChain{records: make(map[string]*Record)}
}

// Get implements Chain.
func (c *MemoryChain) Get(_ context.Context, originID id.ID) (*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.GetErr != nil {
		return nil, c.GetErr
	}
	if r, ok := c.records[originID.String()]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, ErrNotRegistered
}

// Submit implements Chain.
func (c *MemoryChain) Submit(_ context.Context, r *Record) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SubmitErr != nil {
		return "", c.SubmitErr
	}
	if _, ok := c.records[r.OriginID.String()]; ok {
		return "", ErrAlreadyExists
	}

	c.txSeq++
	stored := *r
	stored.TxID = "memtx-" + strconv.Itoa(c.txSeq)
	stored.RecordedAt = time.Now().UTC()
	c.records[r.OriginID.String()] = &stored
	return stored.TxID, nil
}

// ListBySubject implements Chain.
func (c *MemoryChain) ListBySubject(_ context.Context, subjectID id.ID) ([]Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ListErr != nil {
		return nil, c.ListErr
	}
	result := make([]Record, 0)
	for _, r := range c.records {
		if r.SubjectID.String() == subjectID.String() {
			result = append(result, *r)
		}
	}
	return result, nil
}

// Tombstone marks an origin's record deleted without removing it, matching
// the external ledger's append-only delete semantics.
func (c *MemoryChain) Tombstone(originID id.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.records[originID.String()]; ok {
		r.Deleted = true
		return true
	}
	return false
}

// Len returns the number of mirrored records.
func (c *MemoryChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
