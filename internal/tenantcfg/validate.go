package tenantcfg

import "unicode"

// ValidRune reports whether r is allowed inside a command prefix, roll
// prefix, or alias name: no whitespace, no '$' (which introduces an
// alias reference), and none of the Unicode "separator" or "other"
// general category groups.
func ValidRune(r rune) bool {
	if r == '$' {
		return false
	}
	if unicode.IsSpace(r) {
		return false
	}
	if unicode.In(r, unicode.Zs, unicode.Zl, unicode.Zp) {
		return false
	}
	if unicode.In(r, unicode.Cc, unicode.Cf, unicode.Co, unicode.Cs, unicode.Cn) {
		return false
	}
	return true
}

// ValidToken reports whether s is non-empty and every rune satisfies
// [ValidRune]. The command parser does not call it; it reads prefixes and
// alias names rune by rune with [ValidRune] directly.
func ValidToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !ValidRune(r) {
			return false
		}
	}
	return true
}
