package shipments

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeDescription folds compatibility forms (full-width letters and digits,
// no-break spaces) with NFKC, turns every other space into ' ' and drops
// control and format characters. Printable ASCII is returned unchanged.
func NormalizeDescription(s string) string {
	if isPrintableASCII(s) {
		return s
	}

	t := transform.Chain(
		norm.NFKC,
		runes.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return ' '
			}
			return r
		}),
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.IsControl(r) || unicode.Is(unicode.Cf, r)
		})),
	)

	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
