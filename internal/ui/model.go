// Package ui is the bubbletea program that paints the chat view: the
// rendered scrollback window above a one-row status bar.
package ui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/john/chattui/internal/render"
	"github.com/john/chattui/internal/scrollback"
	"github.com/john/chattui/internal/twitch"
)

const (
	// fatalLinger is how long a fatal error stays on screen before exit.
	fatalLinger = 1500 * time.Millisecond
	// noticeTTL is how long a warning stays in the status bar while joined.
	noticeTTL = 30 * time.Second
	// topOffset scrolls past any realistic history; the next frame clamps it.
	topOffset = math.MaxInt32
)

// SnapshotFunc returns the current scrollback contents.
type SnapshotFunc func() scrollback.Snapshot

// StateFunc returns the current session state.
type StateFunc func() twitch.State

// SessionEndedMsg tells the program the session has stopped. A non-nil
// Err other than context cancellation is shown before the program exits.
type SessionEndedMsg struct {
	Err error
}

type tickMsg time.Time

// Options configures a Model.
type Options struct {
	Channel string
	// Tick is the repaint interval.
	Tick    time.Duration
	Notices *NoticeHandler
	Keys    *KeyMap
}

var (
	statusStyle  = lipgloss.NewStyle().Background(lipgloss.Color("#313244")).Foreground(lipgloss.Color("#CDD6F4"))
	channelStyle = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Bold(true)
	scrollStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA"))
)

// Model is the chat view.
type Model struct {
	renderer *render.Renderer
	snapshot SnapshotFunc
	state    StateFunc
	notices  *NoticeHandler
	channel  string
	tick     time.Duration
	now      func() time.Time

	keys     KeyMap
	help     help.Model
	showHelp bool

	width  int
	height int
	vp     render.Viewport
	frame  render.Frame

	ended bool
	fatal error
}

// New creates the chat view.
func New(renderer *render.Renderer, snapshot SnapshotFunc, state StateFunc, opts Options) Model {
	if opts.Tick <= 0 {
		opts.Tick = 200 * time.Millisecond
	}
	keys := DefaultKeyMap()
	if opts.Keys != nil {
		keys = *opts.Keys
	}
	return Model{
		renderer: renderer,
		snapshot: snapshot,
		state:    state,
		notices:  opts.Notices,
		channel:  strings.TrimPrefix(opts.Channel, "#"),
		tick:     opts.Tick,
		now:      time.Now,
		keys:     keys,
		help:     help.New(),
	}
}

// Init starts the repaint ticker.
func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles terminal events, repaint ticks and session shutdown.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.refresh()
		return m, m.tickCmd()

	case SessionEndedMsg:
		m.ended = true
		m.refresh()
		if msg.Err == nil || errors.Is(msg.Err, context.Canceled) {
			return m, tea.Quit
		}
		m.fatal = msg.Err
		return m, tea.Tick(fatalLinger, func(time.Time) tea.Msg { return tea.QuitMsg{} })
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := m.vp.Height - 1
	if page < 1 {
		page = 1
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
	case key.Matches(msg, m.keys.Up):
		m.vp = m.vp.Scroll(1)
	case key.Matches(msg, m.keys.Down):
		m.vp = m.vp.Scroll(-1)
	case key.Matches(msg, m.keys.PageUp):
		m.vp = m.vp.Scroll(page)
	case key.Matches(msg, m.keys.PageDown):
		m.vp = m.vp.Scroll(-page)
	case key.Matches(msg, m.keys.Home):
		m.vp.Offset = topOffset
	case key.Matches(msg, m.keys.End):
		m.vp.Offset = 0
	default:
		return m, nil
	}

	m.refresh()
	return m, nil
}

// layout sizes the chat region to what the status bar and help leave.
func (m *Model) layout() {
	height := m.height - 1
	if m.showHelp {
		m.help.ShowAll = true
		height -= lipgloss.Height(m.help.View(m.keys))
	} else {
		m.help.ShowAll = false
	}
	if height < 0 {
		height = 0
	}
	m.vp = m.vp.Resize(m.width, height)
}

func (m *Model) refresh() {
	m.frame = m.renderer.Frame(m.snapshot(), m.vp)
	m.vp = m.frame.Viewport
}

// View paints the frame computed by the last update.
func (m Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}

	var b strings.Builder
	for _, row := range m.frame.Rows {
		b.WriteString(row.Styled)
		b.WriteByte('\n')
	}
	b.WriteString(m.statusBar())
	if m.showHelp {
		b.WriteByte('\n')
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func (m Model) statusBar() string {
	st := m.state()

	left := "#" + m.channel
	leftStyled := channelStyle.Render(left)

	phase, phaseStyle := m.phaseLabel(st)
	left += " " + phase
	leftStyled += " " + phaseStyle.Render(phase)

	var right, rightStyled string
	switch {
	case m.fatal != nil:
		right = "error: " + m.fatal.Error()
		rightStyled = errorStyle.Render(right)
	case m.vp.Offset > 0:
		right = fmt.Sprintf("↑ %d rows", m.vp.Offset)
		if m.frame.AtTop {
			right += " (top)"
		}
		rightStyled = scrollStyle.Render(right)
	default:
		if n, ok := m.notice(st); ok {
			right = n.Text
			rightStyled = busyStyle.Render(right)
		}
	}

	// Drop the right side first when the terminal is too narrow.
	gap := m.width - render.Width(left) - render.Width(right) - 2
	if right != "" && gap < 1 {
		avail := m.width - render.Width(left) - 3
		if avail < 8 {
			right, rightStyled = "", ""
		} else {
			right = runewidth.Truncate(right, avail, "…")
			rightStyled = right
		}
		gap = m.width - render.Width(left) - render.Width(right) - 2
	}
	if render.Width(left)+2 > m.width {
		left = runewidth.Truncate(left, m.width-2, "…")
		leftStyled = left
		gap = 0
	}
	if gap < 0 {
		gap = 0
	}

	line := " " + leftStyled + strings.Repeat(" ", gap) + rightStyled + " "
	return statusStyle.Width(m.width).MaxWidth(m.width).Render(line)
}

func (m Model) phaseLabel(st twitch.State) (string, lipgloss.Style) {
	switch st.Phase {
	case twitch.PhaseJoined:
		return "● live", okStyle
	case twitch.PhaseReconnecting:
		return fmt.Sprintf("○ reconnecting (attempt %d)", st.Attempt), busyStyle
	case twitch.PhaseTerminated:
		return "✕ " + st.Phase.String(), errorStyle
	default:
		return "○ " + st.Phase.String(), busyStyle
	}
}

func (m Model) notice(st twitch.State) (Notice, bool) {
	if m.notices == nil {
		return Notice{}, false
	}
	n, ok := m.notices.Latest()
	if !ok {
		return Notice{}, false
	}
	if st.Phase == twitch.PhaseJoined && m.now().Sub(n.At) > noticeTTL {
		return Notice{}, false
	}
	return n, true
}
