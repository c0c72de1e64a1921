package types

import (
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"PHP", PHP(3500), 3500, "php", "₱35.00"},
		{"USD", USD(4900), 4900, "usd", "$49.00"},
		{"Zero PHP", Zero("PHP"), 0, "php", "₱0.00"},
		{"ZeroPHP", ZeroPHP(), 0, "php", "₱0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return PHP(100).Add(PHP(200)) }, PHP(300)},
		{"Subtract", func() Money { return PHP(500).Subtract(PHP(200)) }, PHP(300)},
		{"Subtract below zero", func() Money { return PHP(100).Subtract(PHP(300)) }, PHP(-200)},
		{"SubtractFloor", func() Money { return PHP(500).SubtractFloor(PHP(200)) }, PHP(300)},
		{"SubtractFloor clamps", func() Money { return PHP(1000).SubtractFloor(PHP(5000)) }, PHP(0)},
		{"Multiply", func() Money { return PHP(100).Multiply(3) }, PHP(300)},
		{"Negate", func() Money { return PHP(100).Negate() }, PHP(-100)},
		{"Abs negative", func() Money { return PHP(-100).Abs() }, PHP(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	_ = PHP(100).Add(USD(100))
}

func TestMoneyComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Money
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", PHP(100), PHP(100), false, false, true},
		{"Less", PHP(50), PHP(100), true, false, false},
		{"Greater", PHP(200), PHP(100), false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestSum(t *testing.T) {
	got := Sum(PHP(1000), PHP(2500), PHP(35))
	if !got.Equal(PHP(3535)) {
		t.Errorf("Sum: got %v, want %v", got, PHP(3535))
	}

	empty := Sum()
	if !empty.Equal(ZeroPHP()) {
		t.Errorf("Sum(): got %v, want zero pesos", empty)
	}
}

func TestFormatMajor(t *testing.T) {
	tests := []struct {
		money Money
		want  string
	}{
		{PHP(3500), "35.00"},
		{PHP(5), "0.05"},
		{PHP(-1250), "-12.50"},
		{PHP(0), "0.00"},
	}

	for _, tt := range tests {
		if got := tt.money.FormatMajor(); got != tt.want {
			t.Errorf("FormatMajor(%d): got %q, want %q", tt.money.Amount, got, tt.want)
		}
	}
}
