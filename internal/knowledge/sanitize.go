package knowledge

import "strings"

// SanitizeContent strips control characters and NUL bytes from extracted
// text before it is written to the store. Postgres rejects NUL bytes in
// TEXT columns, and control characters from PDF/DOCX extraction corrupt
// prompt assembly downstream. Newlines and tabs are preserved.
func SanitizeContent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			// drop
		case r == 0xfffd:
			// drop replacement runes from broken encodings
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
