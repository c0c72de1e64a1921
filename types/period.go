package types

import (
	"fmt"
	"time"
)

// Period is a calendar-month billing period key in "YYYY-MM" form.
// Periods compare lexicographically, which matches chronological order
// because both components are zero-padded.
type Period string

// ParsePeriod validates s as a "YYYY-MM" billing period key.
// Validation happens at the boundary; code past this point may assume a
// well-formed key.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return "", fmt.Errorf("types: invalid billing period %q: %w", s, err)
	}
	// time.Parse accepts "2006-1"; require the canonical zero-padded form
	// so lexicographic comparison stays chronological.
	if t.Format("2006-01") != s {
		return "", fmt.Errorf("types: invalid billing period %q: want YYYY-MM", s)
	}
	return Period(s), nil
}

// MustParsePeriod is like ParsePeriod but panics on error.
// Use for hardcoded period values.
func MustParsePeriod(s string) Period {
	p, err := ParsePeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PeriodOf returns the billing period containing t.
func PeriodOf(t time.Time) Period {
	return Period(t.UTC().Format("2006-01"))
}

// CurrentPeriod returns the billing period containing the current time.
func CurrentPeriod() Period {
	return PeriodOf(time.Now())
}

// String returns the period key.
func (p Period) String() string { return string(p) }

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool { return p == "" }

// Before reports whether p precedes other.
func (p Period) Before(other Period) bool { return p < other }

// After reports whether p follows other.
func (p Period) After(other Period) bool { return p > other }

// Start returns the first instant of the period in UTC.
func (p Period) Start() time.Time {
	t, err := time.Parse("2006-01", string(p))
	if err != nil {
		return time.Time{}
	}
	return t
}

// End returns the first instant of the following period in UTC.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Next returns the following billing period.
func (p Period) Next() Period {
	return PeriodOf(p.Start().AddDate(0, 1, 0))
}

// PeriodRange is an inclusive range of billing periods. A zero From or To
// leaves that side unbounded.
type PeriodRange struct {
	From Period `json:"from,omitempty"`
	To   Period `json:"to,omitempty"`
}

// Contains reports whether p falls within the range.
func (r PeriodRange) Contains(p Period) bool {
	if !r.From.IsZero() && p.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && p.After(r.To) {
		return false
	}
	return true
}

// ContainsTime reports whether t falls within the range.
func (r PeriodRange) ContainsTime(t time.Time) bool {
	return r.Contains(PeriodOf(t))
}

// IsZero reports whether the range is unbounded on both sides.
func (r PeriodRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}
