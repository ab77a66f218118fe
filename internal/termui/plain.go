package termui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gosuda/nestia-chat/chat"
)

// Printer is the plain-mode output: one line per appended message, in
// timeline order, plus a line when a send fails. Nothing is ever redrawn,
// so it works on pipes and dumb terminals.
type Printer struct {
	out     io.Writer
	avatars chat.AvatarSet

	mu sync.Mutex
}

func NewPrinter(out io.Writer, avatars chat.AvatarSet) *Printer {
	if len(avatars) == 0 {
		avatars = chat.DefaultAvatars
	}
	return &Printer{out: out, avatars: avatars}
}

// Attach prints every future change of tl.
func (p *Printer) Attach(tl *chat.Timeline) {
	tl.Subscribe(p.Print)
}

// Print writes the line for one timeline change.
func (p *Printer) Print(c chat.Change) {
	line, ok := p.format(c)
	if !ok {
		return
	}
	p.mu.Lock()
	_, _ = fmt.Fprintln(p.out, line)
	p.mu.Unlock()
}

func (p *Printer) format(c chat.Change) (string, bool) {
	e := c.Entry
	avatar := "[" + p.avatars.Pick(e.Sender) + "]"
	switch c.Kind {
	case chat.ChangeAppended:
		if e.Origin == chat.OriginLocal {
			return fmt.Sprintf("%s > %s", avatar, e.Text), true
		}
		return fmt.Sprintf("%s %s: %s", avatar, e.Sender, Sanitize(e.Text)), true
	case chat.ChangeStatus:
		if e.Status == chat.StatusFailed {
			return fmt.Sprintf("! not delivered: %s", e.Text), true
		}
	}
	return "", false
}

// maxLineLen bounds one pasted input line.
const maxLineLen = 4 << 20

// ReadLines submits every line of in through the view until in ends or ctx
// is done. Blank lines are ignored by Submit itself.
func ReadLines(ctx context.Context, in io.Reader, v *chat.View) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLen)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		v.SetInput(sc.Text())
		v.Submit()
	}
	return sc.Err()
}
