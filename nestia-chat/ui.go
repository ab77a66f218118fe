package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/gosuda/nestia-chat/chat"
	"github.com/gosuda/nestia-chat/internal/termui"
)

// chatUI binds a chat.View to the terminal, either as a redrawn two-column
// frame or as plain appended lines.
type chatUI struct {
	view       *chat.View
	avatars    chat.AvatarSet
	fullscreen bool

	renderer *termui.Renderer
	restore  func()
}

// open prepares the terminal and subscribes the output to the timeline.
// It must run before the view's inbound connection starts.
func (u *chatUI) open() error {
	if !u.fullscreen {
		termui.NewPrinter(os.Stdout, u.avatars).Attach(u.view.Timeline())
		u.restore = func() {}
		return nil
	}

	inFd, outFd := int(os.Stdin.Fd()), int(os.Stdout.Fd())
	old, err := term.MakeRaw(inFd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	u.restore = func() {
		_ = term.Restore(inFd, old)
		_, _ = fmt.Fprint(os.Stdout, "\r\n")
	}

	w, h, err := term.GetSize(outFd)
	if err != nil {
		w, h = 80, 24
	}
	u.renderer = termui.NewRenderer(os.Stdout, u.view, u.avatars, color.SupportColor(), w, h)
	u.renderer.Attach()
	u.renderer.Redraw()
	return nil
}

func (u *chatUI) close() {
	if u.restore != nil {
		u.restore()
	}
}

func (u *chatUI) stateChanged(chat.ConnState) {
	if u.renderer != nil {
		u.renderer.Redraw()
	}
}

// loop drives input until the user quits, ctx ends, or the first dial
// fails.
func (u *chatUI) loop(ctx context.Context, runErr <-chan error) error {
	if u.fullscreen {
		return u.keyLoop(ctx, runErr)
	}
	return u.lineLoop(ctx, runErr)
}

func (u *chatUI) keyLoop(ctx context.Context, runErr <-chan error) error {
	keys := make(chan termui.Key)
	go func() {
		defer close(keys)
		dec := termui.NewKeys(os.Stdin)
		for {
			k, err := dec.Next()
			if err != nil {
				return
			}
			select {
			case keys <- k:
			case <-ctx.Done():
				return
			}
		}
	}()

	outFd := int(os.Stdout.Fd())
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-runErr:
			runErr = nil
			if err := inboundDone(err); err != nil {
				return err
			}
			u.renderer.Redraw()
		case k, ok := <-keys:
			if !ok || termui.Apply(u.view, k) {
				return nil
			}
			if w, h, err := term.GetSize(outFd); err == nil {
				u.renderer.Resize(w, h)
			}
			u.renderer.Redraw()
		}
	}
}

func (u *chatUI) lineLoop(ctx context.Context, runErr <-chan error) error {
	done := make(chan error, 1)
	go func() { done <- termui.ReadLines(ctx, os.Stdin, u.view) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-runErr:
			runErr = nil
			if err := inboundDone(err); err != nil {
				return err
			}
		case err := <-done:
			if err != nil {
				log.Warn().Err(err).Msg("[chat] read stdin")
			}
			return nil
		}
	}
}
