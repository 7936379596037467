package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a trip carries no explicit currency.
const DefaultCurrency = "SAR"

// FormatMoney renders an amount with two decimals and thousand separators, e.g. "SAR 12,500.00".
func FormatMoney(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return currency + " " + sign + formatThousand(whole) + "." + frac
}

// ParseAmount parses "1,250.50" or "SAR 1250" into a decimal amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, ' '); i >= 0 {
		s = s[i+1:]
	}
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(s)
}

// LineTotal multiplies a unit price by a quantity, rounded to cents.
func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}

func formatThousand(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var out strings.Builder
	for i, c := range digits {
		if i != 0 && (len(digits)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	return out.String()
}
