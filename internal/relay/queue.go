package relay

import (
	"sync"
	"time"
)

// Queue is the HTTP polling fallback for clients that cannot hold a
// websocket: messages posted over HTTP are parked here until the peer polls
// them off. Contents are opaque and live only in memory.
type Queue struct {
	mu       sync.Mutex
	messages map[string][]map[string]any
	lastTS   int64
}

func NewQueue() *Queue {
	return &Queue{messages: make(map[string][]map[string]any)}
}

// Push stamps the message with a millisecond timestamp and appends it.
// Timestamps are strictly monotonic so since-cursors never skip a message
// pushed within the same millisecond.
func (q *Queue) Push(sessionID string, msg map[string]any) int64 {
	q.mu.Lock()
	ts := time.Now().UTC().UnixMilli()
	if ts <= q.lastTS {
		ts = q.lastTS + 1
	}
	q.lastTS = ts
	msg["timestamp"] = ts
	q.messages[sessionID] = append(q.messages[sessionID], msg)
	q.mu.Unlock()
	return ts
}

// DrainAfter returns messages newer than since and removes them from the
// queue; older messages are retained for stragglers still catching up.
func (q *Queue) DrainAfter(sessionID string, since int64) []map[string]any {
	q.mu.Lock()
	defer q.mu.Unlock()
	all, ok := q.messages[sessionID]
	if !ok {
		return nil
	}
	var newer, older []map[string]any
	for _, msg := range all {
		if ts, _ := msg["timestamp"].(int64); ts > since {
			newer = append(newer, msg)
		} else {
			older = append(older, msg)
		}
	}
	q.messages[sessionID] = older
	return newer
}

// Drop discards a session's queue, if any.
func (q *Queue) Drop(sessionID string) {
	q.mu.Lock()
	delete(q.messages, sessionID)
	q.mu.Unlock()
}

// Clear empties the whole queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.messages = make(map[string][]map[string]any)
	q.mu.Unlock()
}
