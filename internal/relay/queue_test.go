package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePushAndDrain(t *testing.T) {
	q := NewQueue()

	ts1 := q.Push("s1", map[string]any{"content": "first"})
	ts2 := q.Push("s1", map[string]any{"content": "second"})
	require.GreaterOrEqual(t, ts2, ts1)

	// everything is newer than zero
	msgs := q.DrainAfter("s1", 0)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0]["content"])

	// drained messages are gone
	assert.Empty(t, q.DrainAfter("s1", 0))
}

func TestQueueDrainRetainsOlder(t *testing.T) {
	q := NewQueue()
	ts := q.Push("s1", map[string]any{"content": "old"})
	q.Push("s1", map[string]any{"content": "new"})

	msgs := q.DrainAfter("s1", ts)
	require.Len(t, msgs, 1)
	assert.Equal(t, "new", msgs[0]["content"])

	// the older message stays behind
	remaining := q.DrainAfter("s1", 0)
	require.Len(t, remaining, 1)
	assert.Equal(t, "old", remaining[0]["content"])
}

func TestQueueDropAndClear(t *testing.T) {
	q := NewQueue()
	q.Push("s1", map[string]any{"content": "x"})
	q.Push("s2", map[string]any{"content": "y"})

	q.Drop("s1")
	assert.Empty(t, q.DrainAfter("s1", 0))
	assert.Len(t, q.DrainAfter("s2", 0), 1)

	q.Push("s2", map[string]any{"content": "z"})
	q.Clear()
	assert.Empty(t, q.DrainAfter("s2", 0))
}

func TestQueueUnknownSession(t *testing.T) {
	q := NewQueue()
	assert.Nil(t, q.DrainAfter("missing", 0))
	q.Drop("missing")
}
