package goodsparser

import (
	"strconv"
	"strings"
)

// ClassifyMaterial returns the first material keyword found in text.
// Matching is case-sensitive; at a given position keywords are tried in configured order.
func (l *Library) ClassifyMaterial(text string) *string {
	if text == "" {
		return nil
	}
	m := l.material.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return strPtr(m[1])
}

// ExtractModelNumber runs the parenthetical, leading and anywhere tiers in order
func (l *Library) ExtractModelNumber(text string) *string {
	if text == "" {
		return nil
	}

	for _, tier := range []func(string) (string, bool){
		l.parentheticalModel,
		l.leadingModel,
		l.anywhereModel,
	} {
		if tok, ok := tier(text); ok {
			return strPtr(tok)
		}
	}
	return nil
}

// parentheticalModel only looks at the first token of each block.
// Numeric-only tokens are accepted here, unlike the leading tier.
func (l *Library) parentheticalModel(text string) (string, bool) {
	for _, block := range l.parenBlock.FindAllStringSubmatch(text, -1) {
		inner := strings.TrimSpace(strings.ToUpper(block[1]))
		tok := l.identifier.FindString(inner)
		if tok == "" {
			continue
		}
		if !l.IsStopword(tok) {
			return tok, true
		}
	}
	return "", false
}

func (l *Library) leadingModel(text string) (string, bool) {
	m := l.leadingToken.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", false
	}
	tok := strings.ToUpper(m[1])
	if l.IsStopword(tok) || isDigits(tok) {
		return "", false
	}
	return tok, true
}

func (l *Library) anywhereModel(text string) (string, bool) {
	for _, raw := range l.identifier.FindAllString(text, -1) {
		tok := strings.ToUpper(raw)
		if !l.IsStopword(tok) {
			return tok, true
		}
	}
	return "", false
}

// ExtractPrice returns the first currency code followed by an amount.
// An amount that does not parse as a number yields no price.
func (l *Library) ExtractPrice(text string) *Price {
	m := l.price.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	amount, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil
	}
	return &Price{Currency: m[1], Amount: amount}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
