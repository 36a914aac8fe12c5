package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"1,234.50", "1234.5", true},
		{"$40", "40", true},
		{"-1", "", false},
		{"0", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseNonNegative(t *testing.T) {
	for _, in := range []string{"", "0"} {
		got, err := ParseNonNegative(in)
		if err != nil || !got.IsZero() {
			t.Fatalf("%q expected zero, got %s (err=%v)", in, got, err)
		}
	}
	if _, err := ParseNonNegative("-3"); err == nil {
		t.Fatalf("expected error for negative input")
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"600", "$600.00"},
		{"1234.5", "$1,234.50"},
		{"1234567.891", "$1,234,567.89"},
		{"-600", "-$600.00"},
		{"0.005", "$0.01"},
	}
	for _, tc := range cases {
		if got := FormatMoney(decimal.RequireFromString(tc.in)); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	ratio := decimal.NewFromInt(1000).Div(decimal.NewFromInt(1400))
	if got := FormatPercent(ratio); got != "71.4%" {
		t.Fatalf("expected 71.4%%, got %s", got)
	}
}
