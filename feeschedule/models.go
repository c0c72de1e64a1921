// Package feeschedule defines utility fee categories and the time-ordered
// rate history that prices them per billing period.
package feeschedule

import (
	"time"

	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/types"
)

// FeeType is the billable utility service a household is charged for.
type FeeType string

const (
	FeeGarbage     FeeType = "garbage"
	FeeStreetlight FeeType = "streetlight"
)

// FeeTypes returns all billable fee types.
func FeeTypes() []FeeType {
	return []FeeType{FeeGarbage, FeeStreetlight}
}

// Valid reports whether ft is a known fee type.
func (ft FeeType) Valid() bool {
	return ft == FeeGarbage || ft == FeeStreetlight
}

// Category is a rate class within the fee schedule. Garbage collection is
// rated differently for households that run a business.
type Category string

const (
	CategoryGarbageRegular  Category = "garbage_regular"
	CategoryGarbageBusiness Category = "garbage_business"
	CategoryStreetlight     Category = "streetlight"
)

// Categories returns all rate categories.
func Categories() []Category {
	return []Category{CategoryGarbageRegular, CategoryGarbageBusiness, CategoryStreetlight}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryGarbageRegular, CategoryGarbageBusiness, CategoryStreetlight:
		return true
	default:
		return false
	}
}

// CategoryFor maps a fee type and a household's business classification to
// the rate category that prices it.
func CategoryFor(ft FeeType, hasBusiness bool) (Category, bool) {
	switch ft {
	case FeeGarbage:
		if hasBusiness {
			return CategoryGarbageBusiness, true
		}
		return CategoryGarbageRegular, true
	case FeeStreetlight:
		return CategoryStreetlight, true
	default:
		return "", false
	}
}

// BaseValue returns the static default rate for a category, used when no
// schedule entry covers a period yet.
func BaseValue(c Category) (types.Money, bool) {
	switch c {
	case CategoryGarbageRegular:
		return types.PHP(3500), true
	case CategoryGarbageBusiness:
		return types.PHP(5000), true
	case CategoryStreetlight:
		return types.PHP(1000), true
	default:
		return types.Money{}, false
	}
}

// Entry is one append-only rate change in the fee schedule. Entries are never
// rewritten in place; a correction is a new entry, possibly with a
// retroactive EffectiveFrom.
type Entry struct {
	types.Entity
	ID            id.FeeEntryID `json:"id"`
	Category      Category      `json:"category"`
	Value         types.Money   `json:"value"`
	EffectiveFrom types.Period  `json:"effective_from"`
	RecordedBy    string        `json:"recorded_by,omitempty"`
	RecordedAt    time.Time     `json:"recorded_at"`
}

// EffectiveValue resolves the rate for category c as of period p against the
// given history. The rate is the entry with the greatest EffectiveFrom not
// after p, ties broken by the latest RecordedAt; with no covering entry the
// category's base value applies. The result is a right-continuous step
// function over periods: appending an entry with a later EffectiveFrom never
// changes the value resolved for earlier periods.
func EffectiveValue(entries []*Entry, c Category, p types.Period) (types.Money, bool) {
	var best *Entry
	for _, e := range entries {
		if e.Category != c || e.EffectiveFrom.After(p) {
			continue
		}
		if best == nil ||
			e.EffectiveFrom.After(best.EffectiveFrom) ||
			(e.EffectiveFrom == best.EffectiveFrom && e.RecordedAt.After(best.RecordedAt)) {
			best = e
		}
	}
	if best != nil {
		return best.Value, true
	}
	return BaseValue(c)
}
