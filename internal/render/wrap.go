package render

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Width is the number of terminal columns s occupies.
func Width(s string) int {
	w := 0
	for _, r := range s {
		w += runewidth.RuneWidth(r)
	}
	return w
}

// VisibleWidth is Width without trailing whitespace.
func VisibleWidth(s string) int {
	return Width(strings.TrimRightFunc(s, unicode.IsSpace))
}

// Wrap splits s into rows whose visible width is at most width columns.
// Rows break after the last whitespace that fits; a run without whitespace
// longer than width is broken at the width boundary. Whitespace at a break
// hangs at the end of the row and is not counted, so concatenating the rows
// yields s exactly.
//
// A single rune wider than width still gets a row of its own, since it
// cannot be split.
func Wrap(s string, width int) []string {
	if width < 1 {
		width = 1
	}
	if s == "" {
		return []string{""}
	}

	var rows []string
	for s != "" {
		cut, afterSpace, w := 0, 0, 0
		hanging := false
		for i := 0; i < len(s); {
			r, size := utf8.DecodeRuneInString(s[i:])
			rw := runewidth.RuneWidth(r)
			space := unicode.IsSpace(r)
			if !space && (hanging || w+rw > width) {
				break
			}
			if space && w+rw > width {
				hanging = true
			} else {
				w += rw
			}
			i += size
			cut = i
			if space {
				afterSpace = cut
			}
		}

		switch {
		case cut == 0:
			_, cut = utf8.DecodeRuneInString(s)
		case cut == len(s), afterSpace == cut:
		case afterSpace > 0:
			cut = afterSpace
		}

		rows = append(rows, s[:cut])
		s = s[cut:]
	}
	return rows
}
