// Package relay tracks live channels per session and fans messages out
// between them. It never looks inside participant payloads.
package relay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"
)

// Registry keeps the ordered set of live channels per session. Registration
// order matters: on forced termination the first-registered channel is told it
// is the initiating side.
type Registry struct {
	mu    sync.Mutex
	conns map[string][]*Conn
	grace time.Duration
	log   zerolog.Logger
}

func NewRegistry(grace time.Duration, log zerolog.Logger) *Registry {
	return &Registry{
		conns: make(map[string][]*Conn),
		grace: grace,
		log:   log.With().Str("component", "relay").Logger(),
	}
}

// Attach registers a channel under its session. Registering the same handle
// twice is a logged no-op. The registry itself enforces no cap; the boundary
// checks Count before attaching.
func (r *Registry) Attach(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.conns[c.SessionID] {
		if existing.ID == c.ID {
			r.log.Warn().Str("session_id", c.SessionID).Str("conn_id", c.ID).Msg("duplicate attach ignored")
			return
		}
	}
	r.conns[c.SessionID] = append(r.conns[c.SessionID], c)
	metricActiveConnections.Inc()

	n := len(r.conns[c.SessionID])
	r.log.Info().Str("session_id", c.SessionID).Int("connections", n).Msg("channel attached")
	if n == 2 {
		r.log.Info().Str("session_id", c.SessionID).Msg("both participants connected")
	}
}

// Detach removes a channel; an emptied session entry is dropped entirely.
func (r *Registry) Detach(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked(c.SessionID, c.ID)
}

func (r *Registry) detachLocked(sessionID, connID string) {
	conns := r.conns[sessionID]
	for i, existing := range conns {
		if existing.ID == connID {
			r.conns[sessionID] = append(conns[:i], conns[i+1:]...)
			metricActiveConnections.Dec()
			r.log.Info().
				Str("session_id", sessionID).
				Dur("connected_for", time.Since(existing.ConnectedAt)).
				Int("remaining", len(r.conns[sessionID])).
				Msg("channel detached")
			break
		}
	}
	if len(r.conns[sessionID]) == 0 {
		delete(r.conns, sessionID)
	}
}

// Broadcast sends payload to every channel of the session except excludeID.
// A channel whose send fails is treated as dead and detached on the spot.
func (r *Registry) Broadcast(ctx context.Context, sessionID string, payload []byte, excludeID string) {
	r.mu.Lock()
	targets := make([]*Conn, 0, 2)
	for _, c := range r.conns[sessionID] {
		if c.ID != excludeID {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	var dead []*Conn
	for _, c := range targets {
		if err := c.Write(ctx, payload); err != nil {
			r.log.Error().Err(err).Str("session_id", sessionID).Msg("broadcast send failed")
			dead = append(dead, c)
			continue
		}
		metricMessagesRelayed.Inc()
	}
	for _, c := range dead {
		r.Detach(c)
	}
}

// Terminate notifies the session's channels, gives delivery a short grace
// window, then force-closes everything and clears the entry. The
// first-registered channel receives the initiator notice.
func (r *Registry) Terminate(ctx context.Context, sessionID string) {
	r.mu.Lock()
	conns := r.conns[sessionID]
	delete(r.conns, sessionID)
	metricActiveConnections.Sub(float64(len(conns)))
	r.mu.Unlock()

	if len(conns) == 0 {
		r.log.Debug().Str("session_id", sessionID).Msg("terminate: no live channels")
		return
	}
	r.log.Info().Str("session_id", sessionID).Int("connections", len(conns)).Msg("terminating channels")
	metricSessionsTerminatedRelay.Inc()

	for i, c := range conns {
		evt := newEvent(EventParticipantLeaving)
		if i == 0 {
			evt = newEvent(EventDestroyingSession)
		}
		evt.SessionID = sessionID
		if err := c.Write(ctx, evt.encode()); err != nil {
			r.log.Error().Err(err).Str("session_id", sessionID).Msg("termination notice failed")
		}
	}

	// let the notices flush before slamming the sockets shut
	select {
	case <-time.After(r.grace):
	case <-ctx.Done():
	}

	for _, c := range conns {
		c.close(ws.StatusNormalClosure, "session terminated")
	}
}

func (r *Registry) Count(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[sessionID])
}

// ActiveSessions returns how many sessions currently hold at least one channel.
func (r *Registry) ActiveSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
