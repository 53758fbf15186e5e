// Package render projects scrollback snapshots onto a fixed-size terminal
// region: per-line word wrap at paint time, badge icon prefixes and name
// colouring.
package render

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/maypok86/otter/v2"

	"github.com/john/chattui/internal/message"
	"github.com/john/chattui/internal/scrollback"
)

// minBodyWidth is the narrowest body column worth indenting under the
// sender; below it the header gets a row of its own.
const minBodyWidth = 12

const timestampLayout = "15:04 "

// Icon is the glyph drawn for a badge and the columns it occupies.
type Icon struct {
	Symbol string
	Width  int
}

// Options configures a Renderer.
type Options struct {
	Icons map[message.Badge]Icon
	// InvertBelow draws names whose colour luminance (0-255) is below this
	// value on a light background.
	InvertBelow float64
	Timestamps  bool
	// HeaderCacheSize bounds the memo of rendered sender headers.
	HeaderCacheSize int
}

// Row is one terminal row of a frame.
type Row struct {
	Seq    uint64 // line the row belongs to; 0 for padding
	Text   string // plain text, for measuring and tests
	Styled string // text with ANSI styling
}

// Frame is the set of rows to paint for one viewport.
type Frame struct {
	Rows     []Row
	Viewport Viewport // the viewport after clamping
	// AtTop is true when no older rows exist above the frame.
	AtTop bool
}

type headerKey struct {
	sender string
	badges message.BadgeSet
	color  message.RGB
	action bool
}

type header struct {
	text   string
	styled string
	width  int
}

// Renderer builds frames. It is used from the UI goroutine only.
type Renderer struct {
	opts    Options
	headers *otter.Cache[headerKey, header]

	timestampStyle lipgloss.Style
	actionStyle    lipgloss.Style
	invertedBg     lipgloss.Color
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	if opts.HeaderCacheSize <= 0 {
		opts.HeaderCacheSize = 1024
	}
	return &Renderer{
		opts: opts,
		headers: otter.Must(&otter.Options[headerKey, header]{
			MaximumSize: opts.HeaderCacheSize,
		}),
		timestampStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		actionStyle:    lipgloss.NewStyle().Italic(true),
		invertedBg:     lipgloss.Color("#C0C0C0"),
	}
}

// Frame renders the newest rows of snap that fit vp, honouring the scroll
// offset. The result always has exactly vp.Height rows, newest at the
// bottom.
func (r *Renderer) Frame(snap scrollback.Snapshot, vp Viewport) Frame {
	if vp.Height <= 0 || vp.Width <= 0 {
		return Frame{Viewport: vp.Clamp(0), AtTop: true}
	}

	lines := snap.Lines()
	need := vp.Height + vp.Offset

	// Wrap newest first and stop once the window is covered.
	var reversed []Row
	for i := len(lines) - 1; i >= 0 && len(reversed) < need+1; i-- {
		rows := r.Rows(lines[i], vp.Width)
		for j := len(rows) - 1; j >= 0; j-- {
			reversed = append(reversed, rows[j])
		}
	}

	exhausted := len(reversed) <= need
	if exhausted {
		vp = vp.Clamp(len(reversed))
	}

	frame := Frame{Viewport: vp, Rows: make([]Row, vp.Height)}
	for i := 0; i < vp.Height; i++ {
		// frame row i counts up from the bottom
		src := vp.Offset + (vp.Height - 1 - i)
		if src < len(reversed) {
			frame.Rows[i] = reversed[src]
		}
	}
	frame.AtTop = len(reversed) <= vp.Offset+vp.Height

	return frame
}

// Rows wraps a single line to width columns.
func (r *Renderer) Rows(line message.Line, width int) []Row {
	h := r.header(line.Draft)

	prefixText, prefixStyled, prefixWidth := h.text, h.styled, h.width
	if r.opts.Timestamps && !line.ReceivedAt.IsZero() {
		ts := line.ReceivedAt.Local().Format(timestampLayout)
		prefixText = ts + prefixText
		prefixStyled = r.timestampStyle.Render(ts) + prefixStyled
		prefixWidth += Width(ts)
	}

	bodyStyle := func(s string) string { return s }
	if line.Action {
		bodyStyle = func(s string) string {
			if s == "" {
				return s
			}
			return r.actionStyle.Render(s)
		}
	}

	var rows []Row
	add := func(text, styled string) {
		rows = append(rows, Row{Seq: line.Seq, Text: text, Styled: styled})
	}

	if width-prefixWidth >= minBodyWidth {
		indent := strings.Repeat(" ", prefixWidth)
		for i, chunk := range Wrap(line.Body, width-prefixWidth) {
			chunk = trimHanging(chunk)
			if i == 0 {
				add(prefixText+chunk, prefixStyled+bodyStyle(chunk))
			} else {
				add(indent+chunk, indent+bodyStyle(chunk))
			}
		}
		return rows
	}

	// Narrow terminal: header on a row of its own, body below at full width.
	if head := trimHanging(prefixText); Width(head) <= width {
		add(head, trimHanging(prefixStyled))
	} else {
		head = runewidth.Truncate(head, width, "…")
		add(head, head)
	}
	for _, chunk := range Wrap(fitRunes(line.Body, width), width) {
		chunk = trimHanging(chunk)
		add(chunk, bodyStyle(chunk))
	}
	return rows
}

// fitRunes replaces runes wider than the terminal with a one-column mark.
func fitRunes(s string, width int) string {
	if width >= 2 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if runewidth.RuneWidth(r) > 1 {
			return '…'
		}
		return r
	}, s)
}

func (r *Renderer) header(d message.Draft) header {
	key := headerKey{sender: d.Sender, badges: d.Badges, color: d.Color, action: d.Action}
	if h, ok := r.headers.GetIfPresent(key); ok {
		return h
	}

	var text, styled strings.Builder
	width := 0

	for _, b := range message.DisplayOrder {
		if !d.Badges.Has(b) {
			continue
		}
		icon, ok := r.opts.Icons[b]
		if !ok || icon.Symbol == "" {
			continue
		}
		glyph := icon.Symbol
		measured := Width(glyph)
		cols := max(icon.Width, measured)
		glyph += strings.Repeat(" ", cols-measured)
		text.WriteString(glyph)
		styled.WriteString(glyph)
		width += cols
	}

	nameStyle := r.nameStyle(d.Color)

	lead, sep := "", ": "
	if d.Action {
		lead, sep = "* ", " "
	}
	text.WriteString(lead + d.Sender + sep)
	styled.WriteString(lead + nameStyle.Render(d.Sender) + sep)
	width += Width(lead + d.Sender + sep)

	h := header{text: text.String(), styled: styled.String(), width: width}
	r.headers.Set(key, h)
	return h
}

// nameStyle colours a sender name. Dark colours get a light background so
// they stay readable on dark terminals.
func (r *Renderer) nameStyle(c message.RGB) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.Hex()))
	if c.Luminance() < r.opts.InvertBelow {
		style = style.Background(r.invertedBg)
	}
	return style
}

// trimHanging drops whitespace left hanging at a wrap point.
func trimHanging(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
