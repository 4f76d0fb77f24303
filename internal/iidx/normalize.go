package iidx

import "strings"

// Normalize applies spec.md §4.3's exact byte-wise rule: ASCII lowercase,
// strip ASCII punctuation, collapse whitespace runs to a single space, trim
// the ends. Non-ASCII bytes pass through unchanged. IIDX's normalisation has no
// stemming and no stop-word removal, so two documents differing only by a
// stop word produce different posting lists.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastWasSpace := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + ('a' - 'A'))
			lastWasSpace = false
		case isASCIIPunct(c):
			continue
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f':
			if !lastWasSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastWasSpace = true
			}
		default:
			b.WriteByte(c)
			lastWasSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// isASCIIPunct reports whether c is one of the 32 ASCII punctuation
// characters (the C locale's ispunct set).
func isASCIIPunct(c byte) bool {
	switch {
	case c >= '!' && c <= '/':
		return true
	case c >= ':' && c <= '@':
		return true
	case c >= '[' && c <= '`':
		return true
	case c >= '{' && c <= '~':
		return true
	default:
		return false
	}
}

// Tokenize splits normalised text on single-space boundaries, preserving
// duplicate tokens and input order, per spec.md §4.3.
func Tokenize(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, " ")
}
