package chat

import "sync"

// Status is the delivery state of a local message.
type Status int

const (
	StatusNone Status = iota
	StatusPending
	StatusSent
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	default:
		return "none"
	}
}

// Entry is a message together with its current delivery status.
type Entry struct {
	Message
	Status Status
}

// ChangeKind tells observers what happened to the timeline.
type ChangeKind int

const (
	ChangeAppended ChangeKind = iota
	ChangeStatus
)

// Change is passed to timeline observers.
type Change struct {
	Kind  ChangeKind
	Index int
	Entry Entry
}

// Timeline is the ordered, append-only message history of one view.
// Messages are never edited, removed, reordered or deduplicated; only the
// delivery status kept beside them changes.
type Timeline struct {
	// notifyMu spans a change and its notification so observers see
	// changes in the order they were made.
	notifyMu  sync.Mutex
	mu        sync.RWMutex
	messages  []Message
	index     map[string]int
	status    map[string]Status
	observers []func(Change)
}

func NewTimeline() *Timeline {
	return &Timeline{
		messages: make([]Message, 0, 64),
		index:    map[string]int{},
		status:   map[string]Status{},
	}
}

// Subscribe registers fn to be called after every change. Observers run on
// the goroutine that made the change, one change at a time and in timeline
// order. They may read the timeline but must not change it.
func (t *Timeline) Subscribe(fn func(Change)) {
	t.mu.Lock()
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}

// Append adds m to the end of the timeline and returns its position.
func (t *Timeline) Append(m Message, st Status) int {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	idx := len(t.messages)
	t.messages = append(t.messages, m)
	t.index[m.ID] = idx
	if st != StatusNone {
		t.status[m.ID] = st
	}
	observers := t.observers
	t.mu.Unlock()

	t.notify(observers, Change{Kind: ChangeAppended, Index: idx, Entry: Entry{Message: m, Status: st}})
	return idx
}

// SetStatus records the delivery outcome of the message with the given id.
// It reports false when no such message exists.
func (t *Timeline) SetStatus(id string, st Status) bool {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	idx, ok := t.index[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	t.status[id] = st
	m := t.messages[idx]
	observers := t.observers
	t.mu.Unlock()

	t.notify(observers, Change{Kind: ChangeStatus, Index: idx, Entry: Entry{Message: m, Status: st}})
	return true
}

// Status returns the delivery status of the message with the given id.
func (t *Timeline) Status(id string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status[id]
}

func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Messages returns a copy of the message list in insertion order.
func (t *Timeline) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Message(nil), t.messages...)
}

// Snapshot returns a copy of every entry with its status.
func (t *Timeline) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.messages))
	for i, m := range t.messages {
		out[i] = Entry{Message: m, Status: t.status[m.ID]}
	}
	return out
}

func (t *Timeline) notify(observers []func(Change), c Change) {
	for _, fn := range observers {
		fn(c)
	}
}
