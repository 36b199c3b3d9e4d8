package relay

import (
	"encoding/json"
	"time"
)

// Control event types the relay itself emits. Anything else on the wire is
// opaque participant payload and is forwarded verbatim.
const (
	EventConnected          = "connected"
	EventPing               = "ping"
	EventPong               = "pong"
	EventSessionExpired     = "session_expired"
	EventDestroyingSession  = "destroying_session"
	EventParticipantLeaving = "participant_leaving"
)

type Event struct {
	Type             string `json:"type"`
	SessionID        string `json:"session_id,omitempty"`
	ParticipantCount int    `json:"participant_count,omitempty"`
	ConnectionCount  int    `json:"connection_count,omitempty"`
	TimeLeftSeconds  int    `json:"time_left_seconds,omitempty"`
	Timestamp        string `json:"timestamp"`
}

func newEvent(typ string) Event {
	return Event{Type: typ, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

func (e Event) encode() []byte {
	b, _ := json.Marshal(e)
	return b
}
