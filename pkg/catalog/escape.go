package catalog

import (
	"fmt"
	"strings"
)

// Title index entries are "<escapedTitle>:<itemID>". EscapeTitle must be an
// order-preserving bijection so that lexical order of the composite key
// matches lexical order of the raw title, and the separator can never occur
// inside the escaped portion.
const indexSeparator = ":"

// EscapeTitle percent-escapes the separator, the escape character itself and
// control bytes.
func EscapeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for i := 0; i < len(title); i++ {
		c := title[i]
		if c == '%' || c == indexSeparator[0] || c < 0x20 {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// UnescapeTitle inverts EscapeTitle. Malformed escapes are passed through
// verbatim rather than rejected; index entries are only ever produced by
// EscapeTitle so this is not an input-validation boundary.
func UnescapeTitle(escaped string) string {
	var b strings.Builder
	b.Grow(len(escaped))
	for i := 0; i < len(escaped); i++ {
		c := escaped[i]
		if c == '%' && i+2 < len(escaped) {
			var v int
			if _, err := fmt.Sscanf(escaped[i+1:i+3], "%02X", &v); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// IndexEntry builds the composite secondary-index member for a listing.
func IndexEntry(title, itemID string) string {
	return EscapeTitle(title) + indexSeparator + itemID
}

// TitlePrefix returns the escaped-title portion of a composite index entry.
func TitlePrefix(entry string) string {
	if i := strings.Index(entry, indexSeparator); i >= 0 {
		return entry[:i]
	}
	return entry
}
