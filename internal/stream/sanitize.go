package stream

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Sanitize strips control characters (except tab and newline) and
// unpaired surrogate code points from a text chunk. Malformed model
// output must never break downstream JSON encoding or the client.
func Sanitize(s string) string {
	if isClean(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			continue // invalid byte sequence
		}
		if !keepRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isClean is the fast path for chunks needing no rewriting.
func isClean(s string) bool {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return false
		}
		if !keepRune(r) {
			return false
		}
		i += size
	}
	return true
}

func keepRune(r rune) bool {
	if r == '\n' || r == '\t' || r == '\r' {
		return true
	}
	if r < 0x20 || r == 0x7f {
		return false
	}
	if utf16.IsSurrogate(r) {
		return false
	}
	return true
}
