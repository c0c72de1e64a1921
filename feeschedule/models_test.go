package feeschedule

import (
	"testing"
	"time"

	"github.com/civicledger/billing/id"
	"github.com/civicledger/billing/types"
)

func entry(c Category, value int64, from string, recordedAt time.Time) *Entry {
	return &Entry{
		ID:            id.NewFeeEntryID(),
		Category:      c,
		Value:         types.PHP(value),
		EffectiveFrom: types.MustParsePeriod(from),
		RecordedAt:    recordedAt,
	}
}

func TestEffectiveValueStepFunction(t *testing.T) {
	t0 := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	history := []*Entry{
		entry(CategoryGarbageRegular, 3500, "2025-01", t0),
	}

	got, ok := EffectiveValue(history, CategoryGarbageRegular, types.MustParsePeriod("2025-05"))
	if !ok || !got.Equal(types.PHP(3500)) {
		t.Fatalf("2025-05: got %v ok=%v, want ₱35.00", got, ok)
	}

	// A later rate change takes effect exactly at its period and never
	// rewrites the value for earlier periods.
	history = append(history, entry(CategoryGarbageRegular, 4000, "2025-06", t0.AddDate(0, 4, 0)))

	tests := []struct {
		period string
		want   types.Money
	}{
		{"2025-05", types.PHP(3500)},
		{"2025-06", types.PHP(4000)},
		{"2025-07", types.PHP(4000)},
	}
	for _, tt := range tests {
		got, ok := EffectiveValue(history, CategoryGarbageRegular, types.MustParsePeriod(tt.period))
		if !ok || !got.Equal(tt.want) {
			t.Errorf("%s: got %v ok=%v, want %v", tt.period, got, ok, tt.want)
		}
	}
}

func TestEffectiveValueTieBreaksByRecordedAt(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	history := []*Entry{
		entry(CategoryStreetlight, 1000, "2025-03", t0),
		// Retroactive correction for the same period, recorded later.
		entry(CategoryStreetlight, 1200, "2025-03", t0.Add(48*time.Hour)),
	}

	got, ok := EffectiveValue(history, CategoryStreetlight, types.MustParsePeriod("2025-04"))
	if !ok || !got.Equal(types.PHP(1200)) {
		t.Errorf("got %v ok=%v, want the later-recorded ₱12.00", got, ok)
	}
}

func TestEffectiveValueBaseFallback(t *testing.T) {
	got, ok := EffectiveValue(nil, CategoryGarbageRegular, types.MustParsePeriod("2025-01"))
	if !ok || !got.Equal(types.PHP(3500)) {
		t.Errorf("empty history: got %v ok=%v, want base ₱35.00", got, ok)
	}

	// History for other categories does not leak across.
	history := []*Entry{
		entry(CategoryGarbageBusiness, 9900, "2020-01", time.Now()),
	}
	got, ok = EffectiveValue(history, CategoryStreetlight, types.MustParsePeriod("2025-01"))
	if !ok || !got.Equal(types.PHP(1000)) {
		t.Errorf("cross-category: got %v ok=%v, want base ₱10.00", got, ok)
	}
}

func TestEffectiveValueUnknownCategory(t *testing.T) {
	if _, ok := EffectiveValue(nil, Category("water"), types.MustParsePeriod("2025-01")); ok {
		t.Error("unknown category should not resolve")
	}
}

func TestCategoryFor(t *testing.T) {
	tests := []struct {
		ft          FeeType
		hasBusiness bool
		want        Category
		ok          bool
	}{
		{FeeGarbage, false, CategoryGarbageRegular, true},
		{FeeGarbage, true, CategoryGarbageBusiness, true},
		{FeeStreetlight, false, CategoryStreetlight, true},
		{FeeStreetlight, true, CategoryStreetlight, true},
		{FeeType("water"), false, "", false},
	}
	for _, tt := range tests {
		got, ok := CategoryFor(tt.ft, tt.hasBusiness)
		if got != tt.want || ok != tt.ok {
			t.Errorf("CategoryFor(%q, %v): got %q ok=%v, want %q ok=%v",
				tt.ft, tt.hasBusiness, got, ok, tt.want, tt.ok)
		}
	}
}
