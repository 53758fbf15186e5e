package message

import (
	"hash/fnv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ParseColor parses a "#RRGGBB" colour tag. Empty or invalid input reports
// false.
func ParseColor(s string) (RGB, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[0] != '#' {
		return RGB{}, false
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, false
	}
	r, g, b := c.RGB255()
	return RGB{R: r, G: g, B: b}, true
}

// DeriveColor picks a stable colour for a sender who has not chosen one.
// With a palette the hash selects an entry, otherwise it selects a hue.
func DeriveColor(login string, palette []RGB) RGB {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(login)))
	sum := h.Sum32()

	if len(palette) > 0 {
		return palette[sum%uint32(len(palette))]
	}

	c := colorful.Hsv(float64(sum%360), 0.65, 0.95)
	r, g, b := c.Clamped().RGB255()
	return RGB{R: r, G: g, B: b}
}
