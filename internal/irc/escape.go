package irc

import "strings"

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\:`,
	" ", `\s`,
	"\r", `\r`,
	"\n", `\n`,
)

// EscapeTagValue encodes a tag value for the wire.
func EscapeTagValue(v string) string {
	return tagEscaper.Replace(v)
}

// UnescapeTagValue decodes a wire tag value. It accepts any input: an
// unknown escape "\x" decodes to "x" and a trailing lone backslash is
// dropped (IRCv3 message-tags).
func UnescapeTagValue(v string) string {
	if strings.IndexByte(v, '\\') == -1 {
		return v
	}

	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(v) {
			break
		}
		switch v[i] {
		case ':':
			b.WriteByte(';')
		case 's':
			b.WriteByte(' ')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		default:
			b.WriteByte(v[i])
		}
	}
	return b.String()
}
