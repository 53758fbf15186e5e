package message

import (
	"testing"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/john/chattui/internal/irc"
)

func classify(t *testing.T, c *Classifier, line string) (Draft, bool) {
	t.Helper()
	msg, err := irc.Parse(line)
	require.NoError(t, err)
	return c.Classify(msg)
}

func TestClassifyTaggedPrivmsg(t *testing.T) {
	c := NewClassifier("bar", nil)

	draft, ok := classify(t, c, "@badges=subscriber/12,moderator/1;display-name=Foo;color=#FF0000 :foo!foo@foo.tmi.twitch.tv PRIVMSG #bar :hello world")
	require.True(t, ok)

	assert.Equal(t, "Foo", draft.Sender)
	assert.Equal(t, "foo", draft.Login)
	assert.True(t, draft.Badges.Has(BadgeSubscriber))
	assert.True(t, draft.Badges.Has(BadgeModerator))
	assert.False(t, draft.Badges.Has(BadgeVIP))
	assert.False(t, draft.Badges.Has(BadgeFounder))
	assert.False(t, draft.Badges.Has(BadgeOther))
	assert.Equal(t, RGB{R: 0xFF}, draft.Color)
	assert.Equal(t, "#FF0000", draft.Color.Hex())
	assert.False(t, draft.Derived)
	assert.Equal(t, "hello world", draft.Body)
	assert.False(t, draft.Action)
}

func TestClassifyIgnoresNonChatCommands(t *testing.T) {
	c := NewClassifier("#bar", nil)
	for _, line := range []string{
		"PING :tmi.twitch.tv",
		":tmi.twitch.tv CAP * ACK :twitch.tv/tags",
		"@emote-only=0;room-id=1 :tmi.twitch.tv ROOMSTATE #bar",
		":foo!foo@foo.tmi.twitch.tv JOIN #bar",
		"@msg-id=sub :tmi.twitch.tv USERNOTICE #bar :great stream",
		":foo!foo@foo.tmi.twitch.tv PRIVMSG #elsewhere :wrong channel",
		":foo!foo@foo.tmi.twitch.tv PRIVMSG #bar",
	} {
		_, ok := classify(t, c, line)
		assert.False(t, ok, "Classify(%q)", line)
	}
}

func TestClassifyChannelIsCaseInsensitive(t *testing.T) {
	c := NewClassifier("Bar", nil)
	_, ok := classify(t, c, ":foo!foo@foo.tmi.twitch.tv PRIVMSG #bar :hi")
	assert.True(t, ok)
}

func TestClassifyFallbacks(t *testing.T) {
	c := NewClassifier("bar", nil)

	first, ok := classify(t, c, ":someone!someone@someone.tmi.twitch.tv PRIVMSG #bar :no tags here")
	require.True(t, ok)
	assert.Equal(t, "someone", first.Sender)
	assert.True(t, first.Derived)
	assert.Equal(t, BadgeSet(0), first.Badges)

	second, ok := classify(t, c, "@color=;display-name= :someone!someone@someone.tmi.twitch.tv PRIVMSG #bar :again")
	require.True(t, ok)
	assert.Equal(t, "someone", second.Sender)
	assert.Equal(t, first.Color, second.Color, "derived colour must be stable for a sender")
	assert.Equal(t, DeriveColor("someone", nil), first.Color)
}

func TestClassifyUnknownBadges(t *testing.T) {
	c := NewClassifier("bar", nil)
	draft, ok := classify(t, c, "@badges=broadcaster/1,glhf-pledge/1,vip/1 :a!a@a PRIVMSG #bar :x")
	require.True(t, ok)
	assert.True(t, draft.Badges.Has(BadgeVIP))
	assert.True(t, draft.Badges.Has(BadgeOther))
	assert.False(t, draft.Badges.Has(BadgeSubscriber))
}

func TestClassifyAction(t *testing.T) {
	c := NewClassifier("bar", nil)
	draft, ok := classify(t, c, ":a!a@a PRIVMSG #bar :\x01ACTION waves hello\x01")
	require.True(t, ok)
	assert.True(t, draft.Action)
	assert.Equal(t, "waves hello", draft.Body)
}

func TestClassifySanitizesControlCharacters(t *testing.T) {
	c := NewClassifier("bar", nil)
	draft, ok := classify(t, c, ":a!a@a PRIVMSG #bar :red\x1b[31m\ttext\x07")
	require.True(t, ok)
	assert.Equal(t, "red[31m text", draft.Body)
}

func TestClassifyTimestamp(t *testing.T) {
	c := NewClassifier("bar", nil)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	sent, ok := classify(t, c, "@tmi-sent-ts=1700000000123 :a!a@a PRIVMSG #bar :x")
	require.True(t, ok)
	assert.Equal(t, time.UnixMilli(1700000000123), sent.ReceivedAt)

	local, ok := classify(t, c, "@tmi-sent-ts=garbage :a!a@a PRIVMSG #bar :x")
	require.True(t, ok)
	assert.Equal(t, fixed, local.ReceivedAt)
}

func TestClassifyAgreesWithTwitchReferenceParser(t *testing.T) {
	c := NewClassifier("bar", nil)
	lines := []string{
		"@badges=subscriber/12,moderator/1;display-name=Foo;color=#FF0000 :foo!foo@foo.tmi.twitch.tv PRIVMSG #bar :hello world",
		"@badges=founder/0,vip/1;display-name=Bee;color=#00FF7F :bee!bee@bee.tmi.twitch.tv PRIVMSG #bar :buzz",
		"@badges=;display-name=Plain;color= :plain!plain@plain.tmi.twitch.tv PRIVMSG #bar :nothing special",
	}
	for _, line := range lines {
		draft, ok := classify(t, c, line)
		require.True(t, ok)

		ref, ok := twitch.ParseMessage(line).(*twitch.PrivateMessage)
		require.True(t, ok)

		assert.Equal(t, ref.User.DisplayName, draft.Sender)
		assert.Equal(t, ref.Message, draft.Body)
		for name, kind := range badgeNames {
			_, has := ref.User.Badges[name]
			assert.Equal(t, has, draft.Badges.Has(kind), "badge %s in %q", name, line)
		}
		if ref.User.Color != "" {
			assert.Equal(t, ref.User.Color, draft.Color.Hex())
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want RGB
		ok   bool
	}{
		{"#FF0000", RGB{R: 255}, true},
		{"#1e90ff", RGB{R: 0x1e, G: 0x90, B: 0xff}, true},
		{"", RGB{}, false},
		{"#FFF", RGB{}, false},
		{"red", RGB{}, false},
		{"#GG0000", RGB{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseColor(tt.in)
		assert.Equal(t, tt.ok, ok, "ParseColor(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseColor(%q)", tt.in)
	}
}

func TestDeriveColorUsesPalette(t *testing.T) {
	palette := []RGB{{R: 1}, {G: 2}, {B: 3}}
	for _, login := range []string{"a", "bb", "ccc", "dddd"} {
		got := DeriveColor(login, palette)
		assert.Contains(t, palette, got)
		assert.Equal(t, got, DeriveColor(login, palette))
	}
	assert.Equal(t, DeriveColor("MixedCase", palette), DeriveColor("mixedcase", palette))
}

func TestLuminance(t *testing.T) {
	assert.InDelta(t, 0, RGB{}.Luminance(), 1e-9)
	assert.InDelta(t, 255, RGB{R: 255, G: 255, B: 255}.Luminance(), 1e-6)
	assert.Less(t, RGB{B: 255}.Luminance(), 30.0)
}
