package relay

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/nestia-chat/chat"
	"github.com/gosuda/nestia-chat/internal/chattest"
)

func dialRelay(t *testing.T, r *chattest.Relay, pongWait time.Duration) *Socket {
	t.Helper()
	d := &Dialer{URL: r.WSURL(), HandshakeTimeout: 5 * time.Second, PongWait: pongWait}
	s, err := d.Dial(context.Background())
	require.NoError(t, err)
	require.True(t, r.WaitJoin(5*time.Second))
	return s
}

func TestSocket_ReadFrame(t *testing.T) {
	r := chattest.NewRelay()
	defer r.Close()

	s := dialRelay(t, r, 0)
	defer s.Close()
	require.Equal(t, chat.StateOpen, s.State())

	r.Broadcast(chat.Payload{Sender: "user-zzz999", Message: "hi <there>"})
	raw, err := s.ReadFrame()
	require.NoError(t, err)
	p, err := chat.DecodePayload(raw)
	require.NoError(t, err)
	require.Equal(t, chat.Payload{Sender: "user-zzz999", Message: "hi <there>"}, p)

	r.BroadcastText("not json")
	raw, err = s.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, "not json", string(raw))
}

func TestSocket_SkipsBinaryFrames(t *testing.T) {
	r := chattest.NewRelay()
	defer r.Close()

	s := dialRelay(t, r, 0)
	defer s.Close()

	r.BroadcastRaw(func(c *websocket.Conn) error {
		return c.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
	})
	r.BroadcastText(`{"message":"after","sender":"x"}`)

	raw, err := s.ReadFrame()
	require.NoError(t, err)
	require.JSONEq(t, `{"message":"after","sender":"x"}`, string(raw))
}

func TestSocket_Close(t *testing.T) {
	r := chattest.NewRelay()
	defer r.Close()

	s := dialRelay(t, r, 0)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.Equal(t, chat.StateClosed, s.State())

	_, err := s.ReadFrame()
	require.ErrorIs(t, err, ErrNotConnected)
	require.Eventually(t, func() bool { return r.Conns() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestSocket_CloseUnblocksRead(t *testing.T) {
	r := chattest.NewRelay()
	defer r.Close()

	s := dialRelay(t, r, 0)
	errs := make(chan error, 1)
	go func() {
		_, err := s.ReadFrame()
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_ = s.Close()
	select {
	case err := <-errs:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ReadFrame stayed blocked after Close")
	}
}

func TestSocket_ServerClose(t *testing.T) {
	r := chattest.NewRelay()
	defer r.Close()

	s := dialRelay(t, r, 0)
	defer s.Close()

	r.DropAll()
	_, err := s.ReadFrame()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	require.Equal(t, chat.StateClosed, s.State())
}

func TestSocket_PongWait(t *testing.T) {
	r := chattest.NewRelay()
	defer r.Close()

	s := dialRelay(t, r, 50*time.Millisecond)
	defer s.Close()

	start := time.Now()
	_, err := s.ReadFrame()
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, chat.StateClosed, s.State())
}

func TestDialer_Connect(t *testing.T) {
	r := chattest.NewRelay()
	defer r.Close()

	d := &Dialer{URL: r.WSURL()}
	in, err := d.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, in.Close())
}

func TestDialer_DialFails(t *testing.T) {
	r := chattest.NewRelay()
	url := r.WSURL()
	r.Close()

	d := &Dialer{URL: url, HandshakeTimeout: time.Second}
	_, err := d.Dial(context.Background())
	require.Error(t, err)

	d = &Dialer{URL: r.APIURL() + "/nowhere"}
	_, err = d.Dial(context.Background())
	require.Error(t, err)
}
