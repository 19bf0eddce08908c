package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// WeightScale is the number of fractional digits kept for weights.
const WeightScale = 2

// ParseWeight is permissive: it reads the leading number of the field and
// ignores whatever follows, so "2.5 kg" is 2.5. Empty, unparseable or
// negative input yields zero instead of an error. A comma is accepted as the
// decimal separator when the field has no dot.
func ParseWeight(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	s = numericPrefix(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(WeightScale)
}

// numericPrefix returns the longest prefix of s shaped like a decimal
// number: optional sign, digits, an optional fraction and exponent.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	sign := s[:i]
	intEnd := skipDigits(s, i)
	whole := s[i:intEnd]
	i = intEnd
	frac := ""
	if i < len(s) && s[i] == '.' {
		j := skipDigits(s, i+1)
		frac = s[i+1 : j]
		i = j
	}
	if whole == "" && frac == "" {
		return ""
	}
	if whole == "" {
		whole = "0"
	}
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if k := skipDigits(s, j); k > j {
			out += s[i:k]
		}
	}
	if sign == "-" {
		out = sign + out
	}
	return out
}

func skipDigits(s string, i int) int {
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}
