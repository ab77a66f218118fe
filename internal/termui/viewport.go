package termui

// Viewport is a fixed-height window over the rendered message lines. It
// stays anchored to the bottom so the newest message is always visible.
type Viewport struct {
	Height int
	offset int
}

// ScrollToLatest moves the window so its last row is the last of total lines.
func (v *Viewport) ScrollToLatest(total int) {
	v.offset = max(total-v.Height, 0)
}

// Offset is the index of the first visible line.
func (v *Viewport) Offset() int { return v.offset }

// Visible returns the lines currently inside the window.
func (v *Viewport) Visible(lines []string) []string {
	if v.Height <= 0 {
		return nil
	}
	start := min(v.offset, len(lines))
	end := min(start+v.Height, len(lines))
	return lines[start:end]
}
