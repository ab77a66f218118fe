package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/nestia-chat/chat"
)

const controlWriteWait = 5 * time.Second

// ErrNotConnected is returned by ReadFrame once the socket is closed.
var ErrNotConnected = errors.New("socket not connected")

// Dialer opens receive-only sockets to the relay's WebSocket endpoint.
type Dialer struct {
	URL    string
	Header http.Header
	// HandshakeTimeout bounds the opening handshake. Zero means none.
	HandshakeTimeout time.Duration
	// PongWait, when set, closes the socket if the relay stays silent
	// (no frame and no ping) for that long.
	PongWait time.Duration
}

// Connect implements chat.Connector.
func (d *Dialer) Connect(ctx context.Context) (chat.Inbound, error) {
	s, err := d.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Dial performs the WebSocket handshake.
func (d *Dialer) Dial(ctx context.Context) (*Socket, error) {
	wd := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	conn, _, err := wd.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	log.Info().Str("url", d.URL).Msg("[chat] inbound socket open")

	s := &Socket{conn: conn, pongWait: d.PongWait}
	s.state.Store(int32(chat.StateOpen))
	if s.pongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
		conn.SetPingHandler(s.pingHandler)
	}
	return s, nil
}

// Socket is one inbound relay connection. Nothing but the final close frame
// is ever written to it.
type Socket struct {
	conn     *websocket.Conn
	pongWait time.Duration
	state    atomic.Int32
	once     sync.Once
}

func (s *Socket) State() chat.ConnState { return chat.ConnState(s.state.Load()) }

// ReadFrame blocks until the next text frame arrives. Any read error is
// terminal and leaves the socket closed.
func (s *Socket) ReadFrame() ([]byte, error) {
	if s.State() == chat.StateClosed {
		return nil, ErrNotConnected
	}
	for {
		typ, data, err := s.conn.ReadMessage()
		if err != nil {
			s.state.Store(int32(chat.StateClosed))
			return nil, err
		}
		if s.pongWait > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
		}
		if typ != websocket.TextMessage {
			log.Debug().Int("type", typ).Msg("[chat] skip non-text frame")
			continue
		}
		return data, nil
	}
}

// Close sends a normal closure and releases the connection. It is safe to
// call more than once and concurrently with ReadFrame.
func (s *Socket) Close() error {
	var err error
	s.once.Do(func() {
		s.state.Store(int32(chat.StateClosed))
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWriteWait))
		err = s.conn.Close()
		log.Debug().Msg("[chat] inbound socket closed")
	})
	return err
}

func (s *Socket) pingHandler(data string) error {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	err := s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(controlWriteWait))
	if err == nil || errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return nil
	}
	return err
}
