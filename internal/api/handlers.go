package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"hush/relay/internal/health"
	"hush/relay/internal/relay"
	"hush/relay/internal/service"
	"hush/relay/internal/session"
	"hush/relay/internal/stream"
)

type Handlers struct {
	svc      *service.Service
	relayH   *relay.Handler
	reg      *relay.Registry
	queue    *relay.Queue
	store    session.Store
	provider stream.Client
	log      zerolog.Logger
}

func NewHandlers(svc *service.Service, relayH *relay.Handler, reg *relay.Registry, queue *relay.Queue, store session.Store, provider stream.Client, log zerolog.Logger) *Handlers {
	return &Handlers{
		svc:      svc,
		relayH:   relayH,
		reg:      reg,
		queue:    queue,
		store:    store,
		provider: provider,
		log:      log.With().Str("component", "api").Logger(),
	}
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := health.CheckAll(r.Context(), h.store, h.provider)
	code := http.StatusOK
	if !status.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Duration int `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.svc.Create(r.Context(), req.Duration)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": created.Session.ID,
		"duration":   created.Session.DurationMinutes,
		"expires_at": created.Session.ExpiresAt,
		"link":       created.Link,
		"status":     created.Session.Status,
		"code":       created.Code,
	})
}

func (h *Handlers) HandleRedeemCode(w http.ResponseWriter, r *http.Request, code string) {
	joined, err := h.svc.RedeemCode(r.Context(), code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":     joined.Session.ID,
		"encryption_key": joined.Secret,
		"status":         joined.Session.Status,
	})
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.svc.GetStatus(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":        sess.ID,
		"participant_count": sess.ParticipantCount,
		"status":            sess.Status,
		"expires_at":        sess.ExpiresAt,
		"time_left_seconds": sess.TimeLeft(time.Now().UTC()),
	})
}

func (h *Handlers) HandleJoin(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := h.svc.JoinByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"status":     sess.Status,
		"message":    "Joined successfully",
	})
}

func (h *Handlers) HandleExtend(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.svc.Extend(r.Context(), id, req.Minutes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":        sess.ID,
		"extended_by":       req.Minutes,
		"expires_at":        sess.ExpiresAt,
		"time_left_seconds": sess.TimeLeft(time.Now().UTC()),
	})
}

func (h *Handlers) HandleTerminate(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.svc.Terminate(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "terminated"})
}

func (h *Handlers) HandleWebsocket(w http.ResponseWriter, r *http.Request, id string) {
	h.relayH.Serve(w, r, id)
}

// HandlePollMessages drains queued fallback messages newer than ?since=.
func (h *Handlers) HandlePollMessages(w http.ResponseWriter, r *http.Request, id string) {
	since := parseInt64(r.URL.Query().Get("since"))
	msgs := h.queue.DrainAfter(id, since)
	if msgs == nil {
		msgs = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// HandlePostMessage parks a fallback message and mirrors it to any live
// channels so mixed websocket/polling pairs still converse.
func (h *Handlers) HandlePostMessage(w http.ResponseWriter, r *http.Request, id string) {
	var msg map[string]any
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.queue.Push(id, msg)

	payload, err := json.Marshal(msg)
	if err == nil {
		h.reg.Broadcast(r.Context(), id, payload, "")
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "sent"})
}

func (h *Handlers) HandleAdminCleanup(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.Cleanup(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.queue.Clear()
	writeJSON(w, http.StatusOK, map[string]any{"cleaned": count})
}

func (h *Handlers) HandleStreamToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "missing user_id", http.StatusBadRequest)
		return
	}

	token, err := h.provider.CreateToken(req.UserID)
	if errors.Is(err, stream.ErrDisabled) {
		http.Error(w, "stream provider not configured", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("stream token failed")
		http.Error(w, "stream token failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user_id": req.UserID})
}

func (h *Handlers) HandleStreamChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		User1ID   string `json:"user1_id"`
		User2ID   string `json:"user2_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		http.Error(w, "missing session_id", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	channelID, err := h.provider.CreateChannel(ctx, req.SessionID, req.User1ID, req.User2ID)
	if errors.Is(err, stream.ErrDisabled) {
		http.Error(w, "stream provider not configured", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("stream channel failed")
		http.Error(w, "stream channel failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channel_id": channelID})
}

// writeError maps the coordinator's error taxonomy to HTTP status codes.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrGone):
		http.Error(w, err.Error(), http.StatusGone)
	case errors.Is(err, service.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg("internal error")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt64(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
