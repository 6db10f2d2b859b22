// https://drafts.csswg.org/cssom/#common-serializing-idioms
package selector

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

func EscapeIdentifier(unescaped string) string {
	var b strings.Builder
	for i, r := range unescaped {
		switch {
		case r == 0:
			b.WriteRune(utf8.RuneError)
		case r >= 0x01 && r <= 0x1f, r == 0x7f,
			i == 0 && isDigit(r),
			i == 1 && isDigit(r) && unescaped[0] == '-':
			b.WriteString(`\` + strconv.FormatInt(int64(r), 16) + " ")
		case i == 0 && len(unescaped) == 1 && r == '-':
			b.WriteString(`\-`)
		case r == '-' || r == '_' || r >= 0x80 || isDigit(r) ||
			'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z':
			b.WriteRune(r)
		default:
			b.WriteString(`\` + string(r))
		}
	}
	return b.String()
}

func EscapeString(unescaped string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range unescaped {
		switch {
		case r == 0:
			b.WriteRune(utf8.RuneError)
		case r >= 0x01 && r <= 0x1f, r == 0x7f:
			b.WriteString(`\` + strconv.FormatInt(int64(r), 16) + " ")
		case r == '"' || r == '\\':
			b.WriteString(`\` + string(r))
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Unescape resolves css escapes. Code points outside the unicode range
// become U+FFFD; a trailing backslash is kept as is.
func Unescape(escaped string) string {
	if !strings.ContainsRune(escaped, '\\') {
		return escaped
	}
	var b strings.Builder
	for i := 0; i < len(escaped); {
		r, w := utf8.DecodeRuneInString(escaped[i:])
		i += w
		switch {
		case r != '\\' || i == len(escaped):
			b.WriteRune(r)
		case !isHexDigit(rune(escaped[i])):
			r, w := utf8.DecodeRuneInString(escaped[i:])
			b.WriteRune(r)
			i += w
		default:
			j := i
			for ; j < i+6 && j < len(escaped) && isHexDigit(rune(escaped[j])); j++ {
			}
			cp, _ := strconv.ParseUint(escaped[i:j], 16, 32)
			if cp == 0 || cp > unicode.MaxRune || 0xd800 <= cp && cp <= 0xdfff {
				cp = utf8.RuneError
			}
			b.WriteRune(rune(cp))
			if i = j; i < len(escaped) && unicode.IsSpace(rune(escaped[i])) {
				i++
			}
		}
	}
	return b.String()
}
