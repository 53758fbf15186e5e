package render

// Viewport is the visible chat region. Offset counts wrapped rows scrolled
// back from the newest row; 0 follows the live tail.
type Viewport struct {
	Width  int
	Height int
	Offset int
}

// Clamp limits Offset to [0, max(0, total-Height)].
func (v Viewport) Clamp(total int) Viewport {
	maxOffset := total - v.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if v.Offset > maxOffset {
		v.Offset = maxOffset
	}
	if v.Offset < 0 {
		v.Offset = 0
	}
	return v
}

// Scroll moves the offset by delta rows (positive scrolls back in time).
// The result is clamped by the next frame.
func (v Viewport) Scroll(delta int) Viewport {
	v.Offset += delta
	if v.Offset < 0 {
		v.Offset = 0
	}
	return v
}

// Resize changes the dimensions and keeps the scroll offset.
func (v Viewport) Resize(width, height int) Viewport {
	v.Width = width
	v.Height = height
	return v
}
