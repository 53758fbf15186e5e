package ui

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Notice is the latest warning worth showing in the status bar.
type Notice struct {
	At    time.Time
	Level slog.Level
	Text  string
}

// NoticeHandler is a slog handler that keeps only the most recent record
// at or above its level. It is safe for concurrent use.
type NoticeHandler struct {
	level  slog.Level
	latest *atomic.Pointer[Notice]
	attrs  []slog.Attr
}

// NewNoticeHandler keeps records at level and above.
func NewNoticeHandler(level slog.Level) *NoticeHandler {
	return &NoticeHandler{level: level, latest: &atomic.Pointer[Notice]{}}
}

// Latest returns the most recent notice, if any.
func (h *NoticeHandler) Latest() (Notice, bool) {
	n := h.latest.Load()
	if n == nil {
		return Notice{}, false
	}
	return *n, true
}

func (h *NoticeHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *NoticeHandler) Handle(_ context.Context, r slog.Record) error {
	text := r.Message

	var detail string
	find := func(a slog.Attr) bool {
		if a.Key == "error" {
			detail = a.Value.String()
			return false
		}
		return true
	}
	for _, a := range h.attrs {
		if !find(a) {
			break
		}
	}
	r.Attrs(find)
	if detail != "" {
		text += ": " + detail
	}

	h.latest.Store(&Notice{
		At:    r.Time,
		Level: r.Level,
		Text:  strings.Join(strings.Fields(text), " "),
	})
	return nil
}

func (h *NoticeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *NoticeHandler) WithGroup(string) slog.Handler {
	return h
}
