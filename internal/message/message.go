// Package message holds the chat line model shared by the classifier,
// the scrollback buffer and the renderer.
package message

import (
	"fmt"
	"time"
)

// Badge is a sender status marker shown as an icon.
type Badge uint8

const (
	BadgeSubscriber Badge = 1 << iota
	BadgeModerator
	BadgeVIP
	BadgeFounder
	// BadgeOther stands for any badge name without an icon.
	BadgeOther
)

// DisplayOrder is the fixed order badge icons are drawn in.
var DisplayOrder = []Badge{BadgeFounder, BadgeModerator, BadgeVIP, BadgeSubscriber}

// badgeNames maps the wire badge name to its kind.
var badgeNames = map[string]Badge{
	"subscriber": BadgeSubscriber,
	"moderator":  BadgeModerator,
	"vip":        BadgeVIP,
	"founder":    BadgeFounder,
}

func (b Badge) String() string {
	switch b {
	case BadgeSubscriber:
		return "subscriber"
	case BadgeModerator:
		return "moderator"
	case BadgeVIP:
		return "vip"
	case BadgeFounder:
		return "founder"
	case BadgeOther:
		return "other"
	default:
		return fmt.Sprintf("badge(%d)", uint8(b))
	}
}

// BadgeSet is a set of Badge values.
type BadgeSet uint8

// Has reports whether b is in the set.
func (s BadgeSet) Has(b Badge) bool { return s&BadgeSet(b) != 0 }

// With returns the set with b added.
func (s BadgeSet) With(b Badge) BadgeSet { return s | BadgeSet(b) }

// RGB is a 24-bit colour.
type RGB struct {
	R, G, B uint8
}

// Hex formats the colour as #RRGGBB.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Luminance is the relative luminance on a 0-255 scale.
func (c RGB) Luminance() float64 {
	return 0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)
}

// Draft is a classified chat message that has not been stored yet.
type Draft struct {
	Sender     string // display name
	Login      string // protocol-level sender identifier
	Badges     BadgeSet
	Color      RGB
	Derived    bool // Color was derived from Login, not sent by the server
	Body       string
	Action     bool // sent with /me
	ReceivedAt time.Time
}

// Line is a stored chat message. Lines are immutable once created.
type Line struct {
	Seq uint64
	Draft
}
