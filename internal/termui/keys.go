package termui

import (
	"io"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gosuda/nestia-chat/chat"
)

// Action is what one decoded keystroke does to the input buffer.
type Action int

const (
	ActionNone Action = iota
	ActionType
	ActionBackspace
	ActionSubmit
	ActionQuit
)

func (a Action) String() string {
	switch a {
	case ActionType:
		return "type"
	case ActionBackspace:
		return "backspace"
	case ActionSubmit:
		return "submit"
	case ActionQuit:
		return "quit"
	default:
		return "none"
	}
}

// Key is one decoded keystroke. Rune is only set for ActionType.
type Key struct {
	Action Action
	Rune   rune
}

const (
	keyCtrlC     = 0x03
	keyCtrlD     = 0x04
	keyBackspace = 0x08
	keyEscape    = 0x1b
	keyDelete    = 0x7f
)

// escapeWait is how long ESC waits for the rest of a sequence before it
// counts as a lone keypress.
const escapeWait = 50 * time.Millisecond

// Keys decodes the byte stream of a raw-mode terminal into keystrokes.
// Escape sequences (arrows, function keys) are consumed and ignored, even
// when the terminal delivers them across several reads.
type Keys struct {
	bytes   chan byte
	err     error
	pending []byte
	escWait time.Duration
}

// NewKeys starts reading r in the background. The reader goroutine ends
// when r returns an error.
func NewKeys(r io.Reader) *Keys {
	k := &Keys{bytes: make(chan byte, 256), escWait: escapeWait}
	go k.pump(r)
	return k
}

func (k *Keys) pump(r io.Reader) {
	defer close(k.bytes)
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			k.bytes <- b
		}
		if err != nil {
			k.err = err
			return
		}
	}
}

// Next blocks until the next keystroke that means something to the input
// line and returns it.
func (k *Keys) Next() (Key, error) {
	for {
		c, err := k.readRune()
		if err != nil {
			return Key{}, err
		}
		switch c {
		case keyCtrlC, keyCtrlD:
			return Key{Action: ActionQuit}, nil
		case keyBackspace, keyDelete:
			return Key{Action: ActionBackspace}, nil
		case '\r', '\n':
			return Key{Action: ActionSubmit}, nil
		case keyEscape:
			if err := k.skipEscape(); err != nil {
				return Key{}, err
			}
			continue
		case utf8.RuneError:
			continue
		}
		if unicode.IsControl(c) && c != '\t' {
			continue
		}
		return Key{Action: ActionType, Rune: c}, nil
	}
}

func (k *Keys) readByte() (byte, error) {
	if len(k.pending) > 0 {
		b := k.pending[0]
		k.pending = k.pending[1:]
		return b, nil
	}
	b, ok := <-k.bytes
	if !ok {
		return 0, k.err
	}
	return b, nil
}

// readByteWithin is readByte bounded by d. ok is false on timeout.
func (k *Keys) readByteWithin(d time.Duration) (b byte, ok bool, err error) {
	if len(k.pending) > 0 {
		b, err = k.readByte()
		return b, true, err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case b, open := <-k.bytes:
		if !open {
			return 0, false, k.err
		}
		return b, true, nil
	case <-timer.C:
		return 0, false, nil
	}
}

func (k *Keys) readRune() (rune, error) {
	b, err := k.readByte()
	if err != nil {
		return 0, err
	}
	if b < utf8.RuneSelf {
		return rune(b), nil
	}
	buf := []byte{b}
	for !utf8.FullRune(buf) {
		b, err := k.readByte()
		if err != nil {
			return 0, err
		}
		buf = append(buf, b)
	}
	r, _ := utf8.DecodeRune(buf)
	return r, nil
}

// skipEscape drops a CSI or SS3 sequence following ESC. A lone ESC, with
// nothing arriving within escWait, is dropped by itself.
func (k *Keys) skipEscape() error {
	b, ok, err := k.readByteWithin(k.escWait)
	if err != nil || !ok {
		return err
	}
	switch b {
	case '[':
		for {
			b, err := k.readByte()
			if err != nil {
				return err
			}
			if b >= 0x40 && b <= 0x7e {
				return nil
			}
		}
	case 'O':
		_, err := k.readByte()
		return err
	default:
		// Alt+key arrives as ESC followed by the key.
		k.pending = append([]byte{b}, k.pending...)
		return nil
	}
}

// Apply performs k on the view's input buffer. It reports whether the
// user asked to quit.
func Apply(v *chat.View, k Key) (quit bool) {
	switch k.Action {
	case ActionType:
		v.Type(k.Rune)
	case ActionBackspace:
		v.Backspace()
	case ActionSubmit:
		v.Submit()
	case ActionQuit:
		return true
	}
	return false
}
