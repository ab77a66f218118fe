package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimeline_AppendKeepsOrder(t *testing.T) {
	tl := NewTimeline()
	m1 := newMessage("one", "user-a", OriginRemote)
	m2 := newMessage("two", "user-b", OriginLocal)
	m3 := newMessage("one", "user-a", OriginRemote)

	require.Equal(t, 0, tl.Append(m1, StatusNone))
	require.Equal(t, 1, tl.Append(m2, StatusPending))
	require.Equal(t, 2, tl.Append(m3, StatusNone))

	msgs := tl.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, []string{"one", "two", "one"}, []string{msgs[0].Text, msgs[1].Text, msgs[2].Text})
	require.Equal(t, 3, tl.Len())
}

func TestTimeline_SetStatus(t *testing.T) {
	tl := NewTimeline()
	m := newMessage("hello", "user-a", OriginLocal)
	tl.Append(m, StatusPending)
	require.Equal(t, StatusPending, tl.Status(m.ID))

	require.True(t, tl.SetStatus(m.ID, StatusSent))
	require.Equal(t, StatusSent, tl.Status(m.ID))
	require.False(t, tl.SetStatus("missing", StatusFailed))

	snap := tl.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, m, snap[0].Message)
	require.Equal(t, StatusSent, snap[0].Status)
}

func TestTimeline_SnapshotIsCopy(t *testing.T) {
	tl := NewTimeline()
	tl.Append(newMessage("hello", "user-a", OriginLocal), StatusNone)

	snap := tl.Snapshot()
	snap[0].Text = "changed"
	msgs := tl.Messages()
	msgs[0].Text = "changed"

	require.Equal(t, "hello", tl.Messages()[0].Text)
}

func TestTimeline_Subscribe(t *testing.T) {
	tl := NewTimeline()
	var got []Change
	tl.Subscribe(func(c Change) {
		// Observers run outside the lock and may read the timeline.
		require.Equal(t, c.Index+1, tl.Len())
		got = append(got, c)
	})

	m := newMessage("hello", "user-a", OriginLocal)
	tl.Append(m, StatusPending)
	tl.SetStatus(m.ID, StatusFailed)

	require.Len(t, got, 2)
	require.Equal(t, ChangeAppended, got[0].Kind)
	require.Equal(t, StatusPending, got[0].Entry.Status)
	require.Equal(t, ChangeStatus, got[1].Kind)
	require.Equal(t, StatusFailed, got[1].Entry.Status)
	require.Equal(t, m.ID, got[1].Entry.ID)
}

func TestTimeline_ConcurrentAppend(t *testing.T) {
	tl := NewTimeline()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		origin := OriginLocal
		if i%2 == 1 {
			origin = OriginRemote
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				tl.Append(newMessage("x", "user", origin), StatusNone)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 400, tl.Len())
}

func TestStatus_String(t *testing.T) {
	require.Equal(t, "none", StatusNone.String())
	require.Equal(t, "pending", StatusPending.String())
	require.Equal(t, "sent", StatusSent.String())
	require.Equal(t, "failed", StatusFailed.String())
}

func TestTimeline_ObserversSeeTimelineOrder(t *testing.T) {
	tl := NewTimeline()
	var seen []int
	tl.Subscribe(func(c Change) {
		if c.Kind == ChangeAppended {
			seen = append(seen, c.Index)
		}
	})

	var wg sync.WaitGroup
	for n := 0; n < 4; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				m := newMessage("x", "user", OriginLocal)
				tl.Append(m, StatusPending)
				tl.SetStatus(m.ID, StatusSent)
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, 200)
	for i, idx := range seen {
		require.Equal(t, i, idx)
	}
}
