// Package chattest runs an in-process stand-in for the messenger relay:
// a REST endpoint accepting posted messages and a WebSocket fanning them
// back out to every connected client.
package chattest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/nestia-chat/chat"
)

const maxBacklog = 100

// Relay is a fake relay backed by an httptest.Server.
type Relay struct {
	srv *httptest.Server

	mu      sync.Mutex
	posts   []chat.Payload
	history []chat.Payload
	status  int
	echo    bool
	conns   map[*websocket.Conn]*sync.Mutex
	joined  chan struct{}
	wg      sync.WaitGroup
}

// NewRelay starts a relay. Posted messages are fanned out to sockets
// unless SetEcho(false) is called.
func NewRelay() *Relay {
	r := &Relay{
		status: http.StatusOK,
		echo:   true,
		conns:  map[*websocket.Conn]*sync.Mutex{},
		joined: make(chan struct{}, 16),
	}
	r.srv = httptest.NewServer(r.handler())
	return r
}

func (r *Relay) handler() http.Handler {
	router := chi.NewRouter()
	router.Post("/message", r.postMessage)
	router.Get("/recent", r.getRecent)
	router.Get("/ws", r.serveWS)
	return router
}

// APIURL is the REST base URL.
func (r *Relay) APIURL() string { return r.srv.URL }

// WSURL is the WebSocket endpoint URL.
func (r *Relay) WSURL() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http") + "/ws"
}

// SetStatus makes /message answer with code; 2xx codes are accepted.
func (r *Relay) SetStatus(code int) {
	r.mu.Lock()
	r.status = code
	r.mu.Unlock()
}

// SetEcho toggles fanning accepted posts out to sockets.
func (r *Relay) SetEcho(on bool) {
	r.mu.Lock()
	r.echo = on
	r.mu.Unlock()
}

// SetHistory replaces what /recent serves before any post.
func (r *Relay) SetHistory(ps []chat.Payload) {
	r.mu.Lock()
	r.history = append([]chat.Payload(nil), ps...)
	r.mu.Unlock()
}

// Posts returns every payload accepted by /message.
func (r *Relay) Posts() []chat.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Payload(nil), r.posts...)
}

// Conns is the number of open sockets.
func (r *Relay) Conns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// WaitJoin blocks until a socket connects or the timeout expires.
func (r *Relay) WaitJoin(timeout time.Duration) bool {
	select {
	case <-r.joined:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Broadcast sends p to every socket.
func (r *Relay) Broadcast(p chat.Payload) {
	r.BroadcastRaw(func(w *websocket.Conn) error { return writeJSON(w, p) })
}

// BroadcastText sends a raw text frame to every socket.
func (r *Relay) BroadcastText(s string) {
	r.BroadcastRaw(func(w *websocket.Conn) error {
		return w.WriteMessage(websocket.TextMessage, []byte(s))
	})
}

// BroadcastRaw calls write once per socket under its write lock.
func (r *Relay) BroadcastRaw(write func(*websocket.Conn) error) {
	r.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(r.conns))
	for c, mu := range r.conns {
		conns[c] = mu
	}
	r.mu.Unlock()
	for c, mu := range conns {
		mu.Lock()
		_ = c.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := write(c); err != nil {
			log.Debug().Err(err).Msg("[relay] broadcast write")
		}
		mu.Unlock()
	}
}

// DropAll closes every socket from the server side.
func (r *Relay) DropAll() {
	r.BroadcastRaw(func(c *websocket.Conn) error {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return c.Close()
	})
}

// Close drops all sockets and stops the server.
func (r *Relay) Close() {
	r.DropAll()
	r.srv.Close()
	r.wg.Wait()
}

func (r *Relay) postMessage(w http.ResponseWriter, req *http.Request) {
	var p chat.Payload
	if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	status, echo := r.status, r.echo
	if status >= 200 && status < 300 {
		r.posts = append(r.posts, p)
	}
	r.mu.Unlock()

	w.WriteHeader(status)
	if echo && status >= 200 && status < 300 {
		r.Broadcast(p)
	}
}

func (r *Relay) getRecent(w http.ResponseWriter, _ *http.Request) {
	r.mu.Lock()
	out := append(append([]chat.Payload(nil), r.history...), r.posts...)
	r.mu.Unlock()
	if len(out) > maxBacklog {
		out = out[len(out)-maxBacklog:]
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (r *Relay) serveWS(w http.ResponseWriter, req *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin:      func(*http.Request) bool { return true },
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	r.mu.Lock()
	r.conns[conn] = &sync.Mutex{}
	r.mu.Unlock()
	select {
	case r.joined <- struct{}{}:
	default:
	}

	r.wg.Add(1)
	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.conns, conn)
			r.mu.Unlock()
			_ = conn.Close()
			r.wg.Done()
		}()
		// Clients never write; reading only surfaces their close frame.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// writeJSON encodes v as one text frame without HTML escaping.
func writeJSON(conn *websocket.Conn, v chat.Payload) error {
	wr, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if err := chat.EncodePayload(wr, v); err != nil {
		return err
	}
	return wr.Close()
}
