package core

import "testing"

func TestParseAmountToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1,23", 123, true},
		{"1.23", 123, true},
		{"1.234,56", 123456, true},
		{"R$ 12,50", 1250, true},
		{"0,01", 1, true},
		{"1,005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"R$", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmountToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestFormatBRL(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "R$ 0,00"},
		{123, "R$ 1,23"},
		{123456, "R$ 1.234,56"},
		{100000000, "R$ 1.000.000,00"},
		{-1250, "-R$ 12,50"},
	}
	for _, tc := range cases {
		if got := FormatBRL(tc.cents); got != tc.want {
			t.Fatalf("FormatBRL(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestSanitizeAmountInput(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"12,34", "12,34"},
		{"12.34", "12,34"},
		{"R$ 12,34", "12,34"},
		{"1,2,3", "1,23"},
		{"abc", ""},
	}
	for _, tc := range cases {
		if got := SanitizeAmountInput(tc.in); got != tc.want {
			t.Fatalf("SanitizeAmountInput(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
