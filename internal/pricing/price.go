package pricing

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Price is an amount in minor currency units (pence).
type Price int64

const maxIntegerDigits = 12

var errEmptyPrice = errors.New("empty price")

// ParsePrice converts decimal text such as "17", "17.5", "£1,299.99" into a
// Price. Negative amounts and more than two fractional digits are rejected.
func ParsePrice(text string) (Price, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimLeftFunc(s, func(r rune) bool { return unicode.Is(unicode.Sc, r) })
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmptyPrice
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("price %q is negative", text)
	}

	whole, frac, hasPoint := strings.Cut(s, ".")
	whole = strings.ReplaceAll(whole, ",", "")
	if whole == "" || (hasPoint && frac == "") {
		return 0, fmt.Errorf("price %q is malformed", text)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("price %q has more than two decimal places", text)
	}
	if len(whole) > maxIntegerDigits {
		return 0, fmt.Errorf("price %q is too large", text)
	}

	var minor int64
	for _, r := range whole {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("price %q is malformed", text)
		}
		minor = minor*10 + int64(r-'0')
	}
	frac += strings.Repeat("0", 2-len(frac))
	for _, r := range frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("price %q is malformed", text)
		}
		minor = minor*10 + int64(r-'0')
	}
	return Price(minor), nil
}

// String renders the canonical two-decimal form ("17.00").
func (p Price) String() string {
	sign := ""
	v := int64(p)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// IsDrop reports whether fetched is at least thresholdPercent below stored.
func IsDrop(stored, fetched Price, thresholdPercent int) bool {
	if stored <= 0 || fetched <= 0 {
		return false
	}
	return int64(fetched)*100 <= int64(stored)*int64(100-thresholdPercent)
}
