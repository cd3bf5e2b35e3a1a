// Package money parses, formats and rounds monetary amounts.
//
// All amounts are shopspring decimals. Rounding to cents happens only in Round.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept for stored amounts.
const Places = 2

// RatePlaces is the number of fractional digits accepted for percentages.
const RatePlaces = 6

var hundred = decimal.NewFromInt(100)

// ParseError reports input that cannot be read as an amount.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse amount %q: %s", e.Input, e.Reason)
}

// Parse reads an amount written in either Brazilian ("1.234,56") or
// international ("1,234.56") notation. A currency prefix, surrounding
// whitespace and a leading minus are accepted. At most two fractional
// digits are allowed.
func Parse(s string) (decimal.Decimal, error) {
	return ParsePrecision(s, Places)
}

// ParseRate reads a percentage such as "1,5" or "0.033".
func ParseRate(s string) (decimal.Decimal, error) {
	return ParsePrecision(s, RatePlaces)
}

// ParsePrecision is Parse with a custom limit on fractional digits.
func ParsePrecision(s string, maxPlaces int) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "R$")
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' {
			return -1
		}
		return r
	}, cleaned)

	negative := false
	if strings.HasPrefix(cleaned, "-") {
		negative = true
		cleaned = cleaned[1:]
	}
	if cleaned == "" {
		return decimal.Zero, &ParseError{Input: s, Reason: "empty amount"}
	}

	for _, r := range cleaned {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return decimal.Zero, &ParseError{Input: s, Reason: fmt.Sprintf("unexpected character %q", r)}
		}
	}

	intPart, fracPart, err := splitSeparators(cleaned)
	if err != nil {
		return decimal.Zero, &ParseError{Input: s, Reason: err.Error()}
	}
	if len(fracPart) > maxPlaces {
		return decimal.Zero, &ParseError{Input: s, Reason: fmt.Sprintf("more than %d fractional digits", maxPlaces)}
	}
	if intPart == "" {
		intPart = "0"
	}

	normalized := intPart
	if fracPart != "" {
		normalized += "." + fracPart
	}
	if negative {
		normalized = "-" + normalized
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, &ParseError{Input: s, Reason: err.Error()}
	}
	return d, nil
}

// splitSeparators decides which of '.' and ',' is the decimal separator.
// When both appear the last one wins; when only one kind appears it is the
// decimal separator if it occurs once and a thousands separator otherwise.
func splitSeparators(s string) (string, string, error) {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	var decimalSep, thousandsSep string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			decimalSep, thousandsSep = ",", "."
		} else {
			decimalSep, thousandsSep = ".", ","
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 {
			decimalSep = ","
		} else {
			thousandsSep = ","
		}
	case lastDot >= 0:
		if strings.Count(s, ".") == 1 {
			decimalSep = "."
		} else {
			thousandsSep = "."
		}
	default:
		return s, "", nil
	}

	intPart, fracPart := s, ""
	if decimalSep != "" {
		idx := strings.LastIndex(s, decimalSep)
		intPart, fracPart = s[:idx], s[idx+1:]
		if strings.Contains(fracPart, ".") || strings.Contains(fracPart, ",") {
			return "", "", fmt.Errorf("separator after decimal point")
		}
	}
	if thousandsSep != "" {
		if err := checkGroups(intPart, thousandsSep); err != nil {
			return "", "", err
		}
		intPart = strings.ReplaceAll(intPart, thousandsSep, "")
	}
	if strings.ContainsAny(intPart, ".,") {
		return "", "", fmt.Errorf("mixed separators")
	}
	return intPart, fracPart, nil
}

func checkGroups(intPart, sep string) error {
	groups := strings.Split(intPart, sep)
	for i, g := range groups {
		if i == 0 {
			if g == "" || len(g) > 3 {
				return fmt.Errorf("malformed digit grouping")
			}
			continue
		}
		if len(g) != 3 {
			return fmt.Errorf("malformed digit grouping")
		}
	}
	return nil
}

// Round applies the rounding policy: half away from zero at two places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Percent returns amount * rate / 100.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Format renders an amount as "1,234.56".
func Format(d decimal.Decimal) string {
	return group(Round(d), ",", ".")
}

// FormatBRL renders an amount as "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	return "R$ " + group(Round(d), ".", ",")
}

func group(d decimal.Decimal, thousandsSep, decimalSep string) string {
	s := d.StringFixed(Places)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart, fracPart := s, ""
	if idx := strings.Index(s, "."); idx >= 0 {
		intPart, fracPart = s[:idx], s[idx+1:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(thousandsSep)
		}
		b.WriteRune(r)
	}
	return sign + b.String() + decimalSep + fracPart
}
