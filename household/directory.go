// Package household exposes the household-management collaborator surface the
// billing engine consumes: existence and classification lookups, resident
// membership, and the denormalized per-fee-type display snapshot.
//
// Households are owned by the household-management system. The billing engine
// reads the business classification and writes the snapshot; it is never
// authoritative for anything else here.
package household

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/civicledger/billing/feeschedule"
	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/types"
)

// ErrNotFound is returned for unknown households or residents.
var ErrNotFound = errors.New("household: not found")

// Info is the slice of a household the billing engine needs.
type Info struct {
	ID             id.HouseholdID `json:"id"`
	HeadResidentID id.ResidentID  `json:"head_resident_id"`
	HasBusiness    bool           `json:"has_business"`
}

// Snapshot is the denormalized per-fee-type display state written back after
// every ledger mutation. Fast to read, never authoritative; the utility
// payment record is.
type Snapshot struct {
	CurrentCharge types.Money `json:"current_charge"`
	Balance       types.Money `json:"balance"`
	LastPaymentAt *time.Time  `json:"last_payment_at,omitempty"`
}

// Directory is the collaborator interface for household data.
type Directory interface {
	// Lookup returns household info, or ErrNotFound.
	Lookup(ctx context.Context, householdID id.HouseholdID) (*Info, error)

	// HouseholdOf returns the household a resident belongs to, or ErrNotFound
	// for a resident with no household.
	HouseholdOf(ctx context.Context, residentID id.ResidentID) (id.HouseholdID, error)

	// Members returns all resident IDs of a household, head included.
	Members(ctx context.Context, householdID id.HouseholdID) ([]id.ResidentID, error)

	// UpdateSnapshot writes the display snapshot for one fee type.
	UpdateSnapshot(ctx context.Context, householdID id.HouseholdID, ft feeschedule.FeeType, s Snapshot) error

	// ResetSnapshot clears the display snapshot for one fee type.
	ResetSnapshot(ctx context.Context, householdID id.HouseholdID, ft feeschedule.FeeType) error
}

// StaticDirectory is an in-memory Directory for tests and embedding.
type StaticDirectory struct {
	mu         sync.RWMutex
	households map[string]*Info
	members    map[string][]id.ResidentID
	snapshots  map[string]Snapshot
}

// NewStaticDirectory creates an empty in-memory directory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		households: make(map[string]*Info),
		members:    make(map[string][]id.ResidentID),
		snapshots:  make(map[string]Snapshot),
	}
}

// AddHousehold registers a household with its head resident.
func (d *StaticDirectory) AddHousehold(info Info) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored := info
	d.households[info.ID.String()] = &stored
	if !info.HeadResidentID.IsNil() {
		d.members[info.ID.String()] = append(d.members[info.ID.String()], info.HeadResidentID)
	}
}

// AddMember registers an additional resident in a household.
func (d *StaticDirectory) AddMember(householdID id.HouseholdID, residentID id.ResidentID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[householdID.String()] = append(d.members[householdID.String()], residentID)
}

// Lookup implements Directory.
func (d *StaticDirectory) Lookup(_ context.Context, householdID id.HouseholdID) (*Info, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if info, ok := d.households[householdID.String()]; ok {
		copied := *info
		return &copied, nil
	}
	return nil, ErrNotFound
}

// HouseholdOf implements Directory.
func (d *StaticDirectory) HouseholdOf(_ context.Context, residentID id.ResidentID) (id.HouseholdID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for hh, residents := range d.members {
		for _, r := range residents {
			if r.String() == residentID.String() {
				return id.MustParse(hh), nil
			}
		}
	}
	return id.Nil, ErrNotFound
}

// Members implements Directory.
func (d *StaticDirectory) Members(_ context.Context, householdID id.HouseholdID) ([]id.ResidentID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.households[householdID.String()]; !ok {
		return nil, ErrNotFound
	}
	members := d.members[householdID.String()]
	result := make([]id.ResidentID, len(members))
	copy(result, members)
	return result, nil
}

// UpdateSnapshot implements Directory.
func (d *StaticDirectory) UpdateSnapshot(_ context.Context, householdID id.HouseholdID, ft feeschedule.FeeType, s Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.households[householdID.String()]; !ok {
		return ErrNotFound
	}
	d.snapshots[snapshotKey(householdID, ft)] = s
	return nil
}

// ResetSnapshot implements Directory.
func (d *StaticDirectory) ResetSnapshot(_ context.Context, householdID id.HouseholdID, ft feeschedule.FeeType) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.snapshots, snapshotKey(householdID, ft))
	return nil
}

// SnapshotFor returns the stored snapshot for inspection in tests.
func (d *StaticDirectory) SnapshotFor(householdID id.HouseholdID, ft feeschedule.FeeType) (Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.snapshots[snapshotKey(householdID, ft)]
	return s, ok
}

func snapshotKey(householdID id.HouseholdID, ft feeschedule.FeeType) string {
	return householdID.String() + ":" + string(ft)
}
