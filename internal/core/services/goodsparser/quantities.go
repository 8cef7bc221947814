package goodsparser

import (
	"strconv"
	"strings"
)

// ExtractCapacity returns the packaging chunk (e.g. "12 SET") found before the
// first quantity marker, verbatim. The whole text is searched when no marker exists.
func (l *Library) ExtractCapacity(text string) *string {
	region := text
	if i := strings.Index(text, l.config.QuantityMarker); i >= 0 {
		region = text[:i]
	}
	m := l.capacity.FindStringSubmatch(region)
	if m == nil {
		return nil
	}
	return strPtr(m[1])
}

// ResolveUnit never returns an empty unit: the unit after the quantity marker
// wins, then the unit inside the capacity chunk, then DefaultUnit.
func (l *Library) ResolveUnit(text string, capacity *string) string {
	if m := l.unitAfterQty.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if capacity != nil {
		if m := l.unitToken.FindStringSubmatch(*capacity); m != nil {
			return m[1]
		}
	}
	return DefaultUnit
}

// FinalizeCapacity synthesises "1 <unit>" when no capacity chunk was extracted
func FinalizeCapacity(capacity *string, unit string) string {
	if capacity != nil {
		return *capacity
	}
	return "1 " + unit
}

// ResolveQuantity reads the number after the quantity marker, falling back to
// the first digit run of the finalised capacity. Nil means unknown, not zero.
func (l *Library) ResolveQuantity(text, finalizedCapacity string) *float64 {
	if m := l.quantity.FindStringSubmatch(text); m != nil {
		if qty, ok := parseNumber(strings.ReplaceAll(m[1], ",", "")); ok {
			return floatPtr(qty)
		}
	}
	if m := l.firstDigits.FindStringSubmatch(finalizedCapacity); m != nil {
		if qty, ok := parseNumber(m[1]); ok {
			return floatPtr(qty)
		}
	}
	return nil
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
