package termui

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestViewport_ScrollToLatest(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}

	vp := Viewport{Height: 3}
	vp.ScrollToLatest(len(lines))
	require.Equal(t, 7, vp.Offset())
	require.Equal(t, []string{"line 7", "line 8", "line 9"}, vp.Visible(lines))

	vp.ScrollToLatest(2)
	require.Equal(t, 0, vp.Offset())
	require.Equal(t, []string{"line 0", "line 1"}, vp.Visible(lines[:2]))
}

func TestViewport_ZeroHeight(t *testing.T) {
	vp := Viewport{}
	vp.ScrollToLatest(5)
	require.Nil(t, vp.Visible([]string{"a", "b"}))
}
