package irc

import (
	"errors"
	"testing"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Message
	}{
		{
			name: "privmsg with tags",
			line: "@badges=subscriber/12,moderator/1;display-name=Foo;color=#FF0000 :foo!foo@foo.tmi.twitch.tv PRIVMSG #bar :hello world\r\n",
			want: Message{
				Tags: map[string]string{
					"badges":       "subscriber/12,moderator/1",
					"display-name": "Foo",
					"color":        "#FF0000",
				},
				Prefix:  "foo!foo@foo.tmi.twitch.tv",
				Command: "PRIVMSG",
				Params:  []string{"#bar", "hello world"},
			},
		},
		{
			name: "ping without tags",
			line: "PING :tmi.twitch.tv",
			want: Message{Tags: map[string]string{}, Command: "PING", Params: []string{"tmi.twitch.tv"}},
		},
		{
			name: "numeric with middle params",
			line: ":tmi.twitch.tv 001 justinfan123 :Welcome, GLHF!",
			want: Message{
				Tags:    map[string]string{},
				Prefix:  "tmi.twitch.tv",
				Command: "001",
				Params:  []string{"justinfan123", "Welcome, GLHF!"},
			},
		},
		{
			name: "cap ack",
			line: ":tmi.twitch.tv CAP * ACK :twitch.tv/tags twitch.tv/commands",
			want: Message{
				Tags:    map[string]string{},
				Prefix:  "tmi.twitch.tv",
				Command: "CAP",
				Params:  []string{"*", "ACK", "twitch.tv/tags twitch.tv/commands"},
			},
		},
		{
			name: "lowercase command and no params",
			line: "reconnect",
			want: Message{Tags: map[string]string{}, Command: "RECONNECT"},
		},
		{
			name: "empty trailing",
			line: "PRIVMSG #bar :",
			want: Message{Tags: map[string]string{}, Command: "PRIVMSG", Params: []string{"#bar", ""}},
		},
		{
			name: "escaped tag values and valueless key",
			line: `@system-msg=a\sb\:c\\d;flag;emotes= :tmi.twitch.tv USERNOTICE #bar`,
			want: Message{
				Tags:    map[string]string{"system-msg": `a b;c\d`, "flag": "", "emotes": ""},
				Prefix:  "tmi.twitch.tv",
				Command: "USERNOTICE",
				Params:  []string{"#bar"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, line := range []string{
		"",
		"\r\n",
		"@a=b",
		"@a=b ",
		":prefix.only",
		":prefix ",
		" PING :tmi.twitch.tv",
		"   ",
		"\t",
		":nick!n@host \tPRIVMSG #c :x",
		"PRIV-MSG #c :x",
	} {
		_, err := Parse(line)
		assert.Truef(t, errors.Is(err, ErrMalformed), "Parse(%q) error = %v, want ErrMalformed", line, err)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	line := "@id=1;color= :a!a@a PRIVMSG #c :x y z"
	first, err := Parse(line)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Parse(line)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// Duplicate keys are assumed to resolve last-write-wins. Twitch has not been
// observed to send duplicates, so this pins the assumption rather than a
// documented wire contract.
func TestParseDuplicateTagLastWins(t *testing.T) {
	msg, err := Parse("@color=#111111;color=#222222 PRIVMSG #c :hi")
	require.NoError(t, err)
	assert.Equal(t, "#222222", msg.Tags["color"])
}

func TestNickAndTrailing(t *testing.T) {
	msg, err := Parse(":foo!foo@foo.tmi.twitch.tv PRIVMSG #bar :hello")
	require.NoError(t, err)
	assert.Equal(t, "foo", msg.Nick())
	assert.Equal(t, "hello", msg.Trailing())
	assert.Equal(t, "#bar", msg.Param(0))
	assert.Equal(t, "", msg.Param(5))

	server, err := Parse(":tmi.twitch.tv PING")
	require.NoError(t, err)
	assert.Equal(t, "tmi.twitch.tv", server.Nick())
	assert.Equal(t, "", server.Trailing())
}

func TestStringRoundTrip(t *testing.T) {
	lines := []string{
		`@badge-info=subscriber/14;badges=subscriber/12;display-name=Foo;system-msg=Foo\ssubscribed\:\sthanks\\ :foo!foo@foo.tmi.twitch.tv PRIVMSG #bar :hello world`,
		"PING :tmi.twitch.tv",
		":tmi.twitch.tv CAP * ACK :twitch.tv/tags twitch.tv/commands",
		"PRIVMSG #bar ::)",
	}
	for _, line := range lines {
		msg, err := Parse(line)
		require.NoError(t, err)

		again, err := Parse(msg.String())
		require.NoError(t, err)
		assert.Equal(t, msg, again, "round trip of %q via %q", line, msg.String())
	}
}

func TestTwitchReferenceParserAgrees(t *testing.T) {
	lines := []string{
		"@badges=subscriber/12,moderator/1;display-name=Foo;color=#FF0000;user-id=1 :foo!foo@foo.tmi.twitch.tv PRIVMSG #bar :hello world",
		`@badges=;color=;display-name=Some\sOne;emotes=;id=abc :someone!someone@someone.tmi.twitch.tv PRIVMSG #bar :a;b c`,
		"@badges=vip/1,founder/0;display-name=V :v!v@v.tmi.twitch.tv PRIVMSG #bar :spaced out words",
	}

	for _, line := range lines {
		ours, err := Parse(line)
		require.NoError(t, err)

		ref, ok := twitch.ParseMessage(line).(*twitch.PrivateMessage)
		require.True(t, ok, "reference parser did not produce a PRIVMSG for %q", line)

		assert.Equal(t, ref.Tags, ours.Tags)
		assert.Equal(t, ref.User.Name, ours.Nick())
		assert.Equal(t, ref.Message, ours.Trailing())
		assert.Equal(t, ref.Channel, ours.Param(0)[1:])
	}
}
