package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecordAndRecent(t *testing.T) {
	l := openTestLog(t)

	require.NoError(t, l.Record("sprint-12", "", ActionSessionCreated, "template planning"))
	require.NoError(t, l.Record("sprint-12", "gather-info", ActionCaptured, "text"))
	require.NoError(t, l.Record("sprint-12", "gather-info", ActionExtracted, "2 fields"))

	events, err := l.Recent(10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Newest first
	assert.Equal(t, ActionExtracted, events[0].Action)
	assert.Equal(t, "gather-info", events[0].Phase)
	assert.Equal(t, ActionSessionCreated, events[2].Action)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestRecentLimit(t *testing.T) {
	l := openTestLog(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Record("s", "p", ActionCaptured, ""))
	}
	events, err := l.Recent(2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestForSession(t *testing.T) {
	l := openTestLog(t)
	require.NoError(t, l.Record("alpha", "", ActionSessionCreated, ""))
	require.NoError(t, l.Record("beta", "", ActionSessionCreated, ""))
	require.NoError(t, l.Record("alpha", "p1", ActionCaptured, ""))

	events, err := l.ForSession("alpha", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "alpha", e.Session)
	}
}

func TestReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Record("s", "", ActionSessionCreated, ""))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()

	events, err := l.Recent(10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
