package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var (
	// ErrConnectionLost is returned by Run when the inbound connection ends
	// without the view being torn down. There is no reconnect; remote
	// messages stop until a new Run.
	ErrConnectionLost = errors.New("inbound connection lost")
	// ErrAlreadyRunning is returned by Run when the view already holds an
	// inbound connection.
	ErrAlreadyRunning = errors.New("view already running")
)

// ConnState is the lifecycle state of the inbound connection.
type ConnState int32

const (
	StateClosed ConnState = iota
	StateConnecting
	StateOpen
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Sender delivers one outbound payload to the relay.
type Sender interface {
	Send(ctx context.Context, p Payload) error
}

// Inbound is a receive-only connection yielding raw text frames.
type Inbound interface {
	ReadFrame() ([]byte, error)
	Close() error
}

// Connector opens the inbound connection.
type Connector interface {
	Connect(ctx context.Context) (Inbound, error)
}

// HistorySource returns recent relay messages, oldest first.
type HistorySource interface {
	Recent(ctx context.Context) ([]Payload, error)
}

// Option configures a View.
type Option func(*View)

// WithIdentity fixes the session identity instead of generating one.
func WithIdentity(id Identity) Option {
	return func(v *View) { v.id = id }
}

// WithHistory enables Backfill from the given source.
func WithHistory(h HistorySource) Option {
	return func(v *View) { v.history = h }
}

// WithSendTimeout bounds each outbound send. Zero means no timeout.
func WithSendTimeout(d time.Duration) Option {
	return func(v *View) { v.sendTimeout = d }
}

// WithStateHook registers fn to be called on every connection state change.
func WithStateHook(fn func(ConnState)) Option {
	return func(v *View) { v.stateHook = fn }
}

// View is the chat screen: it owns the timeline, the input buffer, the
// session identity and at most one inbound connection.
type View struct {
	id          Identity
	timeline    *Timeline
	sender      Sender
	connector   Connector
	history     HistorySource
	sendTimeout time.Duration
	stateHook   func(ConnState)

	mu    sync.Mutex
	input []rune

	state    atomic.Int32
	running  atomic.Bool
	inflight sync.WaitGroup
}

func NewView(sender Sender, connector Connector, opts ...Option) *View {
	v := &View{
		timeline:  NewTimeline(),
		sender:    sender,
		connector: connector,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.id == "" {
		v.id = NewIdentity()
	}
	return v
}

func (v *View) Identity() Identity { return v.id }

func (v *View) Timeline() *Timeline { return v.timeline }

func (v *View) State() ConnState { return ConnState(v.state.Load()) }

func (v *View) setState(s ConnState) {
	if ConnState(v.state.Swap(int32(s))) == s {
		return
	}
	log.Debug().Str("state", s.String()).Msg("[chat] inbound connection state")
	if v.stateHook != nil {
		v.stateHook(s)
	}
}

// Type appends r to the input buffer.
func (v *View) Type(r rune) {
	v.mu.Lock()
	v.input = append(v.input, r)
	v.mu.Unlock()
}

// Backspace removes the last rune of the input buffer, if any.
func (v *View) Backspace() {
	v.mu.Lock()
	if n := len(v.input); n > 0 {
		v.input = v.input[:n-1]
	}
	v.mu.Unlock()
}

// SetInput replaces the input buffer.
func (v *View) SetInput(s string) {
	v.mu.Lock()
	v.input = []rune(s)
	v.mu.Unlock()
}

func (v *View) ClearInput() { v.SetInput("") }

func (v *View) InputText() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return string(v.input)
}

// Submit sends the input buffer. Whitespace-only input is a no-op. Otherwise
// the message is appended as pending right away, the buffer is cleared and
// the send runs in the background; its outcome only updates the status.
func (v *View) Submit() (Message, bool) {
	v.mu.Lock()
	text := string(v.input)
	if strings.TrimSpace(text) == "" {
		v.mu.Unlock()
		return Message{}, false
	}
	v.input = v.input[:0]
	v.mu.Unlock()

	m := newMessage(text, v.id.String(), OriginLocal)
	v.timeline.Append(m, StatusPending)

	v.inflight.Add(1)
	go v.deliver(m)
	return m, true
}

func (v *View) deliver(m Message) {
	defer v.inflight.Done()

	ctx := context.Background()
	if v.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.sendTimeout)
		defer cancel()
	}
	if err := v.sender.Send(ctx, Payload{Sender: m.Sender, Message: m.Text}); err != nil {
		log.Debug().Err(err).Str("id", m.ID).Msg("[chat] send failed")
		v.timeline.SetStatus(m.ID, StatusFailed)
		return
	}
	v.timeline.SetStatus(m.ID, StatusSent)
}

// Wait blocks until every send started by Submit has finished.
func (v *View) Wait() {
	v.inflight.Wait()
}

// HandleInbound processes one raw frame from the inbound connection.
// Decode errors are returned unchanged. Frames without text and echoes of
// our own identity are dropped; anything else is appended as remote.
func (v *View) HandleInbound(raw []byte) (Message, bool, error) {
	p, err := DecodePayload(raw)
	if err != nil {
		return Message{}, false, err
	}
	m, ok := v.ingest(p)
	return m, ok, nil
}

// HandleFrame is HandleInbound for frames that may also carry a JSON array
// of payloads, as relays that broadcast a whole block per frame send. It
// returns the messages appended, in frame order.
func (v *View) HandleFrame(raw []byte) ([]Message, error) {
	ps, err := DecodeFrame(raw)
	if err != nil {
		return nil, err
	}
	var out []Message
	for _, p := range ps {
		if m, ok := v.ingest(p); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (v *View) ingest(p Payload) (Message, bool) {
	if p.Message == "" || p.Sender == v.id.String() {
		return Message{}, false
	}
	m := newMessage(p.Message, p.Sender, OriginRemote)
	v.timeline.Append(m, StatusNone)
	return m, true
}

// Backfill appends the relay's recent history once. Entries we authored
// come back as local and already sent.
func (v *View) Backfill(ctx context.Context) (int, error) {
	if v.history == nil {
		return 0, nil
	}
	items, err := v.history.Recent(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch history: %w", err)
	}
	items = lo.Filter(items, func(p Payload, _ int) bool { return p.Message != "" })
	for _, p := range items {
		if p.Sender == v.id.String() {
			v.timeline.Append(newMessage(p.Message, p.Sender, OriginLocal), StatusSent)
			continue
		}
		v.timeline.Append(newMessage(p.Message, p.Sender, OriginRemote), StatusNone)
	}
	return len(items), nil
}

// Run opens the inbound connection and feeds every frame to HandleFrame
// until ctx is cancelled or the connection ends. The connection is closed on
// every return path. A cancelled ctx returns nil; a connection that ends on
// its own returns ErrConnectionLost.
func (v *View) Run(ctx context.Context) error {
	if !v.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer v.running.Store(false)

	v.setState(StateConnecting)
	conn, err := v.connector.Connect(ctx)
	if err != nil {
		v.setState(StateClosed)
		return fmt.Errorf("connect inbound: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
		v.setState(StateClosed)
	}()
	v.setState(StateOpen)

	for {
		raw, err := conn.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Msg("[chat] inbound connection ended")
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
		if _, err := v.HandleFrame(raw); err != nil {
			log.Warn().Err(err).Int("bytes", len(raw)).Msg("[chat] drop inbound frame")
		}
	}
}
