package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"

	"hush/relay/internal/session"
)

// Handler upgrades HTTP requests into relay channels and runs the per-channel
// read loop.
type Handler struct {
	store     session.Store
	reg       *Registry
	heartbeat time.Duration
	origins   []string
	log       zerolog.Logger
}

func NewHandler(store session.Store, reg *Registry, heartbeat time.Duration, origins []string, log zerolog.Logger) *Handler {
	return &Handler{
		store:     store,
		reg:       reg,
		heartbeat: heartbeat,
		origins:   origins,
		log:       log.With().Str("component", "relay_handler").Logger(),
	}
}

// Serve validates the session, accepts the websocket, and relays frames until
// the channel closes or the session dies under it.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := r.Context()
	now := time.Now().UTC()

	sess, err := h.store.Get(ctx, sessionID)
	if err != nil {
		h.rejectUpgrade(w, r, "session not found")
		return
	}
	if sess.Status.Terminal() || sess.ExpiredBy(now) {
		h.rejectUpgrade(w, r, "session expired")
		return
	}
	// Boundary enforces the two-channel cap; the registry itself does not.
	if h.reg.Count(sessionID) >= 2 {
		h.log.Warn().Str("session_id", sessionID).Msg("rejecting third channel")
		h.rejectUpgrade(w, r, "maximum connections reached")
		return
	}

	wsConn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("websocket accept failed")
		return
	}

	conn := NewConn(uuid.New().String(), sessionID, wsSender{c: wsConn})
	h.reg.Attach(conn)

	connected := newEvent(EventConnected)
	connected.SessionID = sessionID
	connected.ParticipantCount = sess.ParticipantCount
	connected.ConnectionCount = h.reg.Count(sessionID)
	connected.TimeLeftSeconds = sess.TimeLeft(now)
	if err := conn.Write(ctx, connected.encode()); err != nil {
		h.reg.Detach(conn)
		_ = wsConn.Close(ws.StatusInternalError, "handshake write failed")
		return
	}

	hbCtx, cancelHeartbeat := context.WithCancel(ctx)
	go h.runHeartbeat(hbCtx, conn)

	h.readLoop(ctx, conn, wsConn)

	cancelHeartbeat()
	h.reg.Detach(conn)
	_ = wsConn.Close(ws.StatusNormalClosure, "done")
}

func (h *Handler) readLoop(ctx context.Context, conn *Conn, wsConn *ws.Conn) {
	for {
		typ, data, err := wsConn.Read(ctx)
		if err != nil {
			h.log.Info().Str("session_id", conn.SessionID).Msg("channel closed")
			return
		}
		if typ != ws.MessageText && typ != ws.MessageBinary {
			continue
		}
		if isPong(data) {
			continue
		}

		// Lazy expiry check: the session may have died since the last frame.
		sess, err := h.store.Get(ctx, conn.SessionID)
		if err != nil || sess.Status.Terminal() || sess.ExpiredBy(time.Now().UTC()) {
			expired := newEvent(EventSessionExpired)
			expired.SessionID = conn.SessionID
			if werr := conn.Write(ctx, expired.encode()); werr != nil {
				h.log.Error().Err(werr).Str("session_id", conn.SessionID).Msg("expiry notice failed")
			}
			return
		}

		h.reg.Broadcast(ctx, conn.SessionID, data, conn.ID)
	}
}

func (h *Handler) runHeartbeat(ctx context.Context, conn *Conn) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping := newEvent(EventPing)
			if err := conn.Write(ctx, ping.encode()); err != nil {
				return
			}
			metricHeartbeatsSent.Inc()
		}
	}
}

// rejectUpgrade completes the handshake and immediately closes with a policy
// violation so browser clients get a close code instead of an HTTP error.
func (h *Handler) rejectUpgrade(w http.ResponseWriter, r *http.Request, reason string) {
	c, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		return
	}
	_ = c.Close(ws.StatusPolicyViolation, reason)
}

func isPong(data []byte) bool {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Type == EventPong
}
