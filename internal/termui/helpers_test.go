package termui

import (
	"context"
	"sync"

	"github.com/gosuda/nestia-chat/chat"
)

type stubSender struct {
	mu      sync.Mutex
	sent    []chat.Payload
	err     error
	release chan struct{}
}

func (s *stubSender) Send(_ context.Context, p chat.Payload) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, p)
	return s.err
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newTestView(s *stubSender) *chat.View {
	if s == nil {
		s = &stubSender{}
	}
	return chat.NewView(s, nil, chat.WithIdentity("user-abc123"))
}

func inbound(v *chat.View, sender, text string) {
	raw, _ := chat.MarshalPayload(chat.Payload{Sender: sender, Message: text})
	_, _, _ = v.HandleInbound(raw)
}

func submit(v *chat.View, text string) {
	v.SetInput(text)
	v.Submit()
}
