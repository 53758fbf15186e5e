package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/john/chattui/internal/message"
)

// DefaultPath is read when CONFIG_PATH is not set.
const DefaultPath = "chattui.yaml"

var channelName = regexp.MustCompile(`^[a-z0-9_]{1,25}$`)

// Config holds the application configuration. It is immutable once
// loaded.
type Config struct {
	Channel    string         `yaml:"channel" toml:"channel"`
	Identity   IdentityConfig `yaml:"identity" toml:"identity"`
	Endpoint   EndpointConfig `yaml:"endpoint" toml:"endpoint"`
	Session    SessionConfig  `yaml:"session" toml:"session"`
	Icons      IconsConfig    `yaml:"icons" toml:"icons"`
	Palette    PaletteConfig  `yaml:"palette" toml:"palette"`
	Scrollback int            `yaml:"scrollback" toml:"scrollback"`
	Render     RenderConfig   `yaml:"render" toml:"render"`
	Log        LogConfig      `yaml:"log" toml:"log"`
	Status     StatusConfig   `yaml:"status" toml:"status"`
}

// IdentityConfig holds the chat login. An empty username joins
// anonymously.
type IdentityConfig struct {
	Username string `yaml:"username" toml:"username"`
	OAuth    string `yaml:"oauth" toml:"oauth"`
}

// EndpointConfig selects the chat server and transport.
type EndpointConfig struct {
	Transport string `yaml:"transport" toml:"transport"` // tcp | websocket
	Address   string `yaml:"address" toml:"address"`
	TLS       bool   `yaml:"tls" toml:"tls"`
	URL       string `yaml:"url" toml:"url"`
}

// SessionConfig holds connection lifecycle timings.
type SessionConfig struct {
	CapabilityTimeout time.Duration `yaml:"capability_timeout" toml:"capability_timeout"`
	JoinTimeout       time.Duration `yaml:"join_timeout" toml:"join_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval" toml:"ping_interval"`
	PongTimeout       time.Duration `yaml:"pong_timeout" toml:"pong_timeout"`
	Backoff           BackoffConfig `yaml:"backoff" toml:"backoff"`
}

// BackoffConfig holds the reconnect delay policy.
type BackoffConfig struct {
	Base   time.Duration `yaml:"base" toml:"base"`
	Max    time.Duration `yaml:"max" toml:"max"`
	Jitter time.Duration `yaml:"jitter" toml:"jitter"`
}

// IconConfig is the glyph for one badge and its column width.
type IconConfig struct {
	Symbol string `yaml:"symbol" toml:"symbol"`
	Width  int    `yaml:"width" toml:"width"`
}

// IconsConfig holds the badge icons.
type IconsConfig struct {
	Founder    IconConfig `yaml:"founder" toml:"founder"`
	Moderator  IconConfig `yaml:"moderator" toml:"moderator"`
	VIP        IconConfig `yaml:"vip" toml:"vip"`
	Subscriber IconConfig `yaml:"subscriber" toml:"subscriber"`
}

// PaletteConfig controls name colours.
type PaletteConfig struct {
	// Names is an optional #RRGGBB list used for senders without a colour.
	Names []string `yaml:"names" toml:"names"`
	// InvertBelowBrightness is the luminance (0-255) under which a name is
	// drawn on a light background.
	InvertBelowBrightness float64 `yaml:"invert_below_brightness" toml:"invert_below_brightness"`
}

// RenderConfig controls painting.
type RenderConfig struct {
	Tick       time.Duration `yaml:"tick" toml:"tick"`
	Timestamps bool          `yaml:"timestamps" toml:"timestamps"`
}

// LogConfig controls the log file.
type LogConfig struct {
	File       string `yaml:"file" toml:"file"`
	Level      string `yaml:"level" toml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
}

// StatusConfig controls the optional health and metrics server.
type StatusConfig struct {
	Addr string `yaml:"addr" toml:"addr"` // empty disables the server
}

// Default returns the configuration used for keys the file leaves out.
func Default() Config {
	return Config{
		Endpoint: EndpointConfig{
			Transport: "tcp",
			Address:   "irc.chat.twitch.tv:6697",
			TLS:       true,
			URL:       "wss://irc-ws.chat.twitch.tv:443",
		},
		Session: SessionConfig{
			CapabilityTimeout: 10 * time.Second,
			JoinTimeout:       10 * time.Second,
			PingInterval:      5 * time.Minute,
			PongTimeout:       10 * time.Second,
			Backoff: BackoffConfig{
				Base:   time.Second,
				Max:    time.Minute,
				Jitter: 500 * time.Millisecond,
			},
		},
		Icons: IconsConfig{
			Founder:    IconConfig{Symbol: "🥇", Width: 2},
			Moderator:  IconConfig{Symbol: "🗡", Width: 2},
			VIP:        IconConfig{Symbol: "💎", Width: 2},
			Subscriber: IconConfig{Symbol: "🌟", Width: 2},
		},
		Palette: PaletteConfig{
			InvertBelowBrightness: 30,
		},
		Scrollback: 500,
		Render: RenderConfig{
			Tick: 200 * time.Millisecond,
		},
		Log: LogConfig{
			File:       "chattui.log",
			Level:      "info",
			MaxSizeMB:  16,
			MaxBackups: 3,
		},
	}
}

// Load loads configuration from a YAML or TOML file (by extension). A
// missing file is not an error; defaults and the environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults and environment only
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := decode(path, data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.Channel = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cfg.Channel), "#"))
	cfg.Endpoint.Transport = strings.ToLower(cfg.Endpoint.Transport)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv applies environment variable overrides. Icon, palette and
// buffer keys use flat TWITCH_<KEY> names.
func applyEnv(cfg *Config) error {
	strs := []struct {
		env string
		dst *string
	}{
		{"TWITCH_CHANNEL", &cfg.Channel},
		{"TWITCH_USERNAME", &cfg.Identity.Username},
		{"TWITCH_OAUTH", &cfg.Identity.OAuth},
		{"TWITCH_TRANSPORT", &cfg.Endpoint.Transport},
		{"TWITCH_FOUNDER_SYMBOL", &cfg.Icons.Founder.Symbol},
		{"TWITCH_MOD_SYMBOL", &cfg.Icons.Moderator.Symbol},
		{"TWITCH_VIP_SYMBOL", &cfg.Icons.VIP.Symbol},
		{"TWITCH_SUBSCRIBER_SYMBOL", &cfg.Icons.Subscriber.Symbol},
		{"CHATTUI_LOG_LEVEL", &cfg.Log.Level},
		{"CHATTUI_STATUS_ADDR", &cfg.Status.Addr},
	}
	for _, o := range strs {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"TWITCH_FOUNDER_SYMBOL_WIDTH", &cfg.Icons.Founder.Width},
		{"TWITCH_MOD_SYMBOL_WIDTH", &cfg.Icons.Moderator.Width},
		{"TWITCH_VIP_SYMBOL_WIDTH", &cfg.Icons.VIP.Width},
		{"TWITCH_SUBSCRIBER_SYMBOL_WIDTH", &cfg.Icons.Subscriber.Width},
		{"TWITCH_MESSAGES_BUFFER_SIZE", &cfg.Scrollback},
	}
	for _, o := range ints {
		v := os.Getenv(o.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", o.env, v)
		}
		*o.dst = n
	}

	if v := os.Getenv("TWITCH_INVERT_BELOW_BRIGHTNESS"); v != "" {
		b, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("TWITCH_INVERT_BELOW_BRIGHTNESS: %q is not a number", v)
		}
		cfg.Palette.InvertBelowBrightness = b
	}
	return nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, cfg)
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	if c.Channel == "" {
		return fmt.Errorf("channel is required (or set TWITCH_CHANNEL env var)")
	}
	if !channelName.MatchString(c.Channel) {
		return fmt.Errorf("channel %q is not a valid Twitch channel name", c.Channel)
	}
	if c.Identity.OAuth != "" && c.Identity.Username == "" {
		return fmt.Errorf("identity.username is required when an oauth token is set")
	}

	switch c.Endpoint.Transport {
	case "tcp":
		if c.Endpoint.Address == "" {
			return fmt.Errorf("endpoint.address is required for the tcp transport")
		}
	case "websocket":
		if !strings.HasPrefix(c.Endpoint.URL, "ws://") && !strings.HasPrefix(c.Endpoint.URL, "wss://") {
			return fmt.Errorf("endpoint.url must be a ws:// or wss:// URL, got %q", c.Endpoint.URL)
		}
	default:
		return fmt.Errorf("endpoint.transport must be tcp or websocket, got %q", c.Endpoint.Transport)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"session.capability_timeout", c.Session.CapabilityTimeout},
		{"session.join_timeout", c.Session.JoinTimeout},
		{"session.ping_interval", c.Session.PingInterval},
		{"session.pong_timeout", c.Session.PongTimeout},
		{"session.backoff.base", c.Session.Backoff.Base},
		{"session.backoff.max", c.Session.Backoff.Max},
		{"render.tick", c.Render.Tick},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	if c.Session.Backoff.Max < c.Session.Backoff.Base {
		return fmt.Errorf("session.backoff.max must not be less than session.backoff.base")
	}
	if c.Session.Backoff.Jitter < 0 {
		return fmt.Errorf("session.backoff.jitter must not be negative")
	}

	if c.Scrollback <= 0 {
		return fmt.Errorf("scrollback must be positive")
	}

	for name, icon := range map[string]IconConfig{
		"founder":    c.Icons.Founder,
		"moderator":  c.Icons.Moderator,
		"vip":        c.Icons.VIP,
		"subscriber": c.Icons.Subscriber,
	} {
		if icon.Width < 0 {
			return fmt.Errorf("icons.%s.width must not be negative", name)
		}
	}

	for _, name := range c.Palette.Names {
		if _, ok := message.ParseColor(name); !ok {
			return fmt.Errorf("palette.names: %q is not a #RRGGBB colour", name)
		}
	}
	if b := c.Palette.InvertBelowBrightness; b < 0 || b > 255 {
		return fmt.Errorf("palette.invert_below_brightness must be within 0-255")
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of trace, debug, info, warn, error", c.Log.Level)
	}

	return nil
}

// PaletteColors returns the parsed fallback palette.
func (c *Config) PaletteColors() []message.RGB {
	out := make([]message.RGB, 0, len(c.Palette.Names))
	for _, name := range c.Palette.Names {
		if rgb, ok := message.ParseColor(name); ok {
			out = append(out, rgb)
		}
	}
	return out
}
