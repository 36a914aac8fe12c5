package pdf

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Replacement stands in for runes the document encoding cannot represent.
const Replacement = '?'

// encodeText converts s to Windows-1252, the encoding of the core PDF fonts.
// Accented Latin letters survive; anything else becomes Replacement.
func encodeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		b.WriteByte(Replacement)
	}
	return b.String()
}
