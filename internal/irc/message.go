// Package irc decodes and encodes single IRC protocol lines with IRCv3
// message tags, as spoken by Twitch chat.
package irc

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformed is returned when a line has no command token.
var ErrMalformed = errors.New("irc: malformed line")

// Message is one parsed protocol line.
type Message struct {
	Tags    map[string]string
	Prefix  string
	Command string
	Params  []string
}

// Nick returns the nickname part of the prefix ("nick!user@host").
func (m Message) Nick() string {
	nick := m.Prefix
	if i := strings.IndexByte(nick, '!'); i != -1 {
		nick = nick[:i]
	}
	if i := strings.IndexByte(nick, '@'); i != -1 {
		nick = nick[:i]
	}
	return nick
}

// Param returns the i-th parameter or "" when absent.
func (m Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Trailing returns the last parameter or "" when there are none.
func (m Message) Trailing() string {
	return m.Param(len(m.Params) - 1)
}

// Parse decodes a single raw line. Line terminators are tolerated and
// stripped. Parse never touches I/O and always returns the same result for
// the same input.
//
// When the wire carries the same tag key twice the last occurrence wins.
func Parse(raw string) (Message, error) {
	line := strings.TrimRight(raw, "\r\n")
	msg := Message{Tags: map[string]string{}}

	if strings.HasPrefix(line, "@") {
		end := strings.IndexByte(line, ' ')
		if end == -1 {
			return Message{}, fmt.Errorf("%w: tags without command", ErrMalformed)
		}
		parseTags(line[1:end], msg.Tags)
		line = strings.TrimLeft(line[end+1:], " ")
	}

	if strings.HasPrefix(line, ":") {
		end := strings.IndexByte(line, ' ')
		if end == -1 {
			return Message{}, fmt.Errorf("%w: prefix without command", ErrMalformed)
		}
		msg.Prefix = line[1:end]
		line = strings.TrimLeft(line[end+1:], " ")
	}

	command, rest, _ := strings.Cut(line, " ")
	if !isCommand(command) {
		return Message{}, fmt.Errorf("%w: missing command in %q", ErrMalformed, raw)
	}
	msg.Command = strings.ToUpper(command)
	rest = strings.TrimLeft(rest, " ")

	for rest != "" {
		if rest[0] == ':' {
			msg.Params = append(msg.Params, rest[1:])
			break
		}
		end := strings.IndexByte(rest, ' ')
		if end == -1 {
			msg.Params = append(msg.Params, rest)
			break
		}
		msg.Params = append(msg.Params, rest[:end])
		rest = strings.TrimLeft(rest[end+1:], " ")
	}

	return msg, nil
}

// isCommand reports whether s is a verb or a numeric reply.
func isCommand(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

func parseTags(raw string, into map[string]string) {
	for _, tag := range strings.Split(raw, ";") {
		if tag == "" {
			continue
		}
		key, value, _ := strings.Cut(tag, "=")
		if key == "" {
			continue
		}
		into[key] = UnescapeTagValue(value)
	}
}

// String encodes the message back to wire form without the CRLF
// terminator. Tags are written in key order so the output is stable.
func (m Message) String() string {
	var b strings.Builder

	if len(m.Tags) > 0 {
		keys := make([]string, 0, len(m.Tags))
		for k := range m.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('@')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteString(k)
			if v := m.Tags[k]; v != "" {
				b.WriteByte('=')
				b.WriteString(EscapeTagValue(v))
			}
		}
		b.WriteByte(' ')
	}

	if m.Prefix != "" {
		b.WriteByte(':')
		b.WriteString(m.Prefix)
		b.WriteByte(' ')
	}

	b.WriteString(m.Command)

	for i, p := range m.Params {
		b.WriteByte(' ')
		last := i == len(m.Params)-1
		if last && (p == "" || strings.ContainsRune(p, ' ') || strings.HasPrefix(p, ":")) {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}

	return b.String()
}
