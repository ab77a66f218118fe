package termui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/gosuda/nestia-chat/chat"
)

const (
	title       = "NES.tia Chat"
	prompt      = "> "
	minBubble   = 10
	clearScreen = "\x1b[H\x1b[2J"
)

// Renderer draws a chat.View as a two-column terminal frame: remote
// messages on the left, local ones on the right, input line at the bottom.
type Renderer struct {
	out     io.Writer
	view    *chat.View
	avatars chat.AvatarSet
	color   bool

	mu     sync.Mutex
	width  int
	height int
	vp     Viewport
}

// NewRenderer returns a renderer for a width x height terminal.
func NewRenderer(out io.Writer, view *chat.View, avatars chat.AvatarSet, useColor bool, width, height int) *Renderer {
	if len(avatars) == 0 {
		avatars = chat.DefaultAvatars
	}
	r := &Renderer{out: out, view: view, avatars: avatars, color: useColor}
	r.Resize(width, height)
	return r
}

// Resize changes the frame size. At least one message row is always kept.
func (r *Renderer) Resize(width, height int) {
	r.mu.Lock()
	r.width = max(width, minBubble+4)
	r.height = max(height, 3)
	r.vp.Height = r.height - 2
	r.mu.Unlock()
}

// Attach redraws on every timeline change.
func (r *Renderer) Attach() {
	r.view.Timeline().Subscribe(func(chat.Change) { r.Redraw() })
}

// Redraw renders the current state and writes a full frame.
func (r *Renderer) Redraw() {
	r.mu.Lock()
	defer r.mu.Unlock()
	frame := r.frameLocked()
	_, _ = io.WriteString(r.out, clearScreen+strings.Join(frame, "\r\n"))
}

// Frame returns the frame rows without writing them.
func (r *Renderer) Frame() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameLocked()
}

func (r *Renderer) frameLocked() []string {
	lines := r.layout(r.view.Timeline().Snapshot())
	r.vp.ScrollToLatest(len(lines))
	body := r.vp.Visible(lines)

	frame := make([]string, 0, r.height)
	frame = append(frame, r.header())
	frame = append(frame, body...)
	for len(frame) < r.height-1 {
		frame = append(frame, "")
	}
	frame = append(frame, r.inputLine())
	return frame
}

func (r *Renderer) header() string {
	h := fmt.Sprintf("%s | %s | %s", title, r.view.State(), r.view.Identity())
	h = runewidth.Truncate(h, r.width, "…")
	return r.paint(color.Bold, h)
}

func (r *Renderer) inputLine() string {
	in := r.view.InputText()
	room := r.width - runewidth.StringWidth(prompt)
	// Keep the tail visible while typing past the edge.
	for runewidth.StringWidth(in) > room {
		_, size := utf8.DecodeRuneInString(in)
		in = in[size:]
	}
	return prompt + in
}

func (r *Renderer) layout(entries []chat.Entry) []string {
	bubble := max(r.width*2/3, minBubble)
	var lines []string
	for _, e := range entries {
		avatar := "[" + r.avatars.Pick(e.Sender) + "]"
		text := e.Text
		if e.Origin == chat.OriginRemote {
			text = Sanitize(text)
		}
		rows := wrap(text, bubble-runewidth.StringWidth(avatar)-1)
		for i, row := range rows {
			if e.Origin == chat.OriginLocal {
				lines = append(lines, r.rightRow(row, avatar, e.Status, i == 0))
				continue
			}
			lines = append(lines, r.leftRow(row, avatar, i == 0))
		}
	}
	return lines
}

func (r *Renderer) leftRow(text, avatar string, first bool) string {
	if !first {
		return strings.Repeat(" ", runewidth.StringWidth(avatar)+1) + text
	}
	return r.paint(color.FgCyan, avatar) + " " + text
}

func (r *Renderer) rightRow(text, avatar string, st chat.Status, first bool) string {
	marker := statusMarker(st)
	suffix := " " + avatar
	if !first {
		suffix = strings.Repeat(" ", runewidth.StringWidth(suffix))
		marker = ""
	}
	used := runewidth.StringWidth(marker + text + suffix)
	pad := max(r.width-used, 0)
	row := strings.Repeat(" ", pad)
	if marker != "" {
		row += r.paint(color.FgRed, marker)
	}
	row += text
	if first {
		return row + " " + r.paint(color.FgGreen, avatar)
	}
	return row + suffix
}

func (r *Renderer) paint(c color.Color, s string) string {
	if !r.color {
		return s
	}
	return c.Sprint(s)
}

func statusMarker(st chat.Status) string {
	switch st {
	case chat.StatusPending:
		return "… "
	case chat.StatusFailed:
		return "! "
	default:
		return ""
	}
}

// wrap splits s into rows no wider than width display cells, honouring
// embedded newlines.
func wrap(s string, width int) []string {
	width = max(width, 1)
	var rows []string
	for _, para := range strings.Split(s, "\n") {
		if para == "" {
			rows = append(rows, "")
			continue
		}
		rows = append(rows, strings.Split(runewidth.Wrap(para, width), "\n")...)
	}
	return rows
}
