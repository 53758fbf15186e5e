package message

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/john/chattui/internal/irc"
)

const (
	actionPrefix = "\x01ACTION "
	actionSuffix = "\x01"
)

// Classifier turns parsed protocol messages into chat drafts for a single
// channel.
type Classifier struct {
	channel string
	palette []RGB
	now     func() time.Time
}

// NewClassifier creates a classifier for channel (with or without '#').
// palette is the optional fallback name colour set.
func NewClassifier(channel string, palette []RGB) *Classifier {
	return &Classifier{
		channel: "#" + strings.ToLower(strings.TrimPrefix(channel, "#")),
		palette: palette,
		now:     time.Now,
	}
}

// Classify projects msg to a draft. Only PRIVMSG addressed to the
// classifier's channel produces one; everything else reports false.
func (c *Classifier) Classify(msg irc.Message) (Draft, bool) {
	if msg.Command != "PRIVMSG" || len(msg.Params) < 2 {
		return Draft{}, false
	}
	if !strings.EqualFold(msg.Params[0], c.channel) {
		return Draft{}, false
	}

	login := msg.Nick()
	if login == "" {
		login = msg.Tags["login"]
	}

	sender := strings.TrimSpace(msg.Tags["display-name"])
	if sender == "" {
		sender = login
	}

	draft := Draft{
		Sender:     sender,
		Login:      login,
		Badges:     ParseBadges(msg.Tags["badges"]),
		ReceivedAt: c.timestamp(msg.Tags["tmi-sent-ts"]),
	}

	if color, ok := ParseColor(msg.Tags["color"]); ok {
		draft.Color = color
	} else {
		draft.Color = DeriveColor(login, c.palette)
		draft.Derived = true
	}

	body := msg.Trailing()
	if strings.HasPrefix(body, actionPrefix) {
		body = strings.TrimSuffix(strings.TrimPrefix(body, actionPrefix), actionSuffix)
		draft.Action = true
	}
	draft.Body = sanitize(body)

	return draft, true
}

// ParseBadges reads a "name/version,name/version" badges tag. Names without
// an icon are recorded as BadgeOther.
func ParseBadges(tag string) BadgeSet {
	var set BadgeSet
	if tag == "" {
		return set
	}
	for _, pair := range strings.Split(tag, ",") {
		name, _, _ := strings.Cut(pair, "/")
		if name == "" {
			continue
		}
		if b, ok := badgeNames[name]; ok {
			set = set.With(b)
		} else {
			set = set.With(BadgeOther)
		}
	}
	return set
}

func (c *Classifier) timestamp(tag string) time.Time {
	if tag != "" {
		if ms, err := strconv.ParseInt(tag, 10, 64); err == nil {
			return time.UnixMilli(ms)
		}
	}
	return c.now()
}

// sanitize keeps terminal control sequences in chat bodies from reaching
// the screen. Tabs become spaces, other control runes are dropped.
func sanitize(s string) string {
	clean := true
	for _, r := range s {
		if unicode.IsControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t':
			b.WriteByte(' ')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
