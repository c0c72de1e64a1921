package types

import (
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"2025-05", false},
		{"2025-12", false},
		{"1999-01", false},
		{"2025-13", true},
		{"2025-00", true},
		{"2025-5", true},
		{"25-05", true},
		{"2025/05", true},
		{"", true},
		{"garbage", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePeriod(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got %q", tt.input, p)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.String() != tt.input {
				t.Errorf("got %q, want %q", p, tt.input)
			}
		})
	}
}

func TestPeriodOrdering(t *testing.T) {
	a := MustParsePeriod("2025-05")
	b := MustParsePeriod("2025-06")
	c := MustParsePeriod("2026-01")

	if !a.Before(b) || !b.Before(c) {
		t.Error("periods should order chronologically")
	}
	if !c.After(a) {
		t.Error("After should be the inverse of Before")
	}
}

func TestPeriodStartEnd(t *testing.T) {
	p := MustParsePeriod("2025-05")

	wantStart := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	if !p.Start().Equal(wantStart) {
		t.Errorf("Start: got %v, want %v", p.Start(), wantStart)
	}

	wantEnd := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if !p.End().Equal(wantEnd) {
		t.Errorf("End: got %v, want %v", p.End(), wantEnd)
	}

	if p.Next() != MustParsePeriod("2025-06") {
		t.Errorf("Next: got %q", p.Next())
	}
	if MustParsePeriod("2025-12").Next() != MustParsePeriod("2026-01") {
		t.Error("Next should roll over the year")
	}
}

func TestPeriodOf(t *testing.T) {
	ts := time.Date(2025, 10, 17, 23, 59, 0, 0, time.UTC)
	if got := PeriodOf(ts); got != MustParsePeriod("2025-10") {
		t.Errorf("PeriodOf: got %q", got)
	}
}

func TestPeriodRange(t *testing.T) {
	r := PeriodRange{From: MustParsePeriod("2025-03"), To: MustParsePeriod("2025-06")}

	tests := []struct {
		period string
		want   bool
	}{
		{"2025-02", false},
		{"2025-03", true},
		{"2025-05", true},
		{"2025-06", true},
		{"2025-07", false},
	}
	for _, tt := range tests {
		if got := r.Contains(MustParsePeriod(tt.period)); got != tt.want {
			t.Errorf("Contains(%q): got %v, want %v", tt.period, got, tt.want)
		}
	}

	open := PeriodRange{From: MustParsePeriod("2025-03")}
	if !open.Contains(MustParsePeriod("2099-12")) {
		t.Error("open-ended range should contain any later period")
	}
	if open.Contains(MustParsePeriod("2025-02")) {
		t.Error("open-ended range still bounds the From side")
	}

	var unbounded PeriodRange
	if !unbounded.IsZero() {
		t.Error("zero range should report IsZero")
	}
	if !unbounded.Contains(MustParsePeriod("2025-01")) {
		t.Error("zero range contains everything")
	}
}
