// Package core holds the domain records shared by every layer, plus the
// money parsing and formatting helpers for pt-BR currency input.
package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmountToCents converts a user-typed amount to cents.
//
// It accepts pt-BR style ("1.234,56"), plain decimal ("1234.56") and inputs
// carrying a currency symbol ("R$ 12,50"). When both separators appear the
// comma wins as the decimal mark and dots are treated as thousand grouping.
// The value is rounded half-up on the third decimal and must be positive.
func ParseAmountToCents(s string) (int64, error) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return 0, ErrInvalidAmount
	}
	// Strip everything that is not a digit, separator or sign.
	var b strings.Builder
	for _, r := range clean {
		if r >= '0' && r <= '9' || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	clean = b.String()
	if strings.Contains(clean, "-") {
		return 0, ErrInvalidAmount
	}
	if strings.Contains(clean, ",") {
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	}
	if clean == "" || clean == "." {
		return 0, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0).IntPart()
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// FormatBRL renders cents as Brazilian currency: "R$ 1.234,56".
func FormatBRL(cents int64) string {
	if cents < 0 {
		return "-" + FormatBRL(-cents)
	}
	return "R$ " + FormatNumber(cents)
}

// FormatNumber renders cents as a pt-BR decimal without the currency symbol.
func FormatNumber(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100

	digits := strconv.FormatInt(whole, 10)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)

	out := strings.Join(groups, ".") + "," + fmt.Sprintf("%02d", frac)
	if neg {
		return "-" + out
	}
	return out
}

// SanitizeAmountInput keeps only digits and the first decimal separator, the
// same cleanup the entry forms apply while the user types.
func SanitizeAmountInput(s string) string {
	var b strings.Builder
	seenSep := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case (r == ',' || r == '.') && !seenSep:
			seenSep = true
			b.WriteRune(',')
		}
	}
	return b.String()
}

// Reais returns the amount as a float for display-only math.
func (m Money) Reais() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) String() string {
	return FormatBRL(m.Cents)
}

// Money travels on the wire as a bare integer cent count.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(m.Cents, 10)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	cents, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return ErrInvalidAmount
	}
	m.Cents = cents
	return nil
}
