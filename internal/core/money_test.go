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
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{" -2.50 ", "-2.5", true},
		{"0", "0", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     string
	}{
		{"12.3400", "usd", "$12.34"},
		{"-5", "usd", "-$5.00"},
		{"1.005", "usd", "$1.01"},
		{"7.5", "xyz", "7.50 XYZ"},
		{"7.5", "", "7.50"},
	}
	for _, tc := range cases {
		m := NewMoney(decimal.RequireFromString(tc.amount), tc.currency)
		if got := m.String(); got != tc.want {
			t.Errorf("Money(%s %s).String() = %q, want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
}
