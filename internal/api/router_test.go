package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ws "nhooyr.io/websocket"

	"hush/relay/internal/code"
	"hush/relay/internal/relay"
	"hush/relay/internal/service"
	"hush/relay/internal/session"
	"hush/relay/internal/stream"
)

type harness struct {
	srv   *httptest.Server
	store *session.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zerolog.Nop()
	store := session.NewMemoryStore()
	codes := code.NewRegistry(log)
	conns := relay.NewRegistry(20*time.Millisecond, log)
	queue := relay.NewQueue()

	svc := service.New(store, codes, conns, queue, service.Config{
		BaseURL:     "http://localhost:3000/",
		MaxDuration: 1440 * time.Minute,
		IDLength:    8,
	}, log)
	relayHandler := relay.NewHandler(store, conns, 25*time.Second, nil, log)
	provider := stream.NewClient("", "", "https://chat.example.com")

	h := NewHandlers(svc, relayHandler, conns, queue, store, provider, log)
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)

	return &harness{srv: srv, store: store}
}

func (h *harness) postJSON(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	resp, err := http.Post(h.srv.URL+path, "application/json", &buf)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (h *harness) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(h.srv.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (h *harness) delete(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, h.srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	if !strings.Contains(resp.Header.Get("Content-Type"), "json") {
		return nil
	}
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (h *harness) createSession(t *testing.T, duration int) map[string]any {
	t.Helper()
	resp, body := h.postJSON(t, "/session/create", map[string]any{"duration": duration})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body
}

func (h *harness) wsURL(id string) string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/" + id
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)

	created := h.createSession(t, 5)
	id := created["session_id"].(string)
	assert.Equal(t, "waiting", created["status"])
	assert.Equal(t, "http://localhost:3000/c/"+id, created["link"])
	assert.Len(t, created["code"].(string), 6)

	resp, status := h.get(t, "/session/"+id+"/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "waiting", status["status"])
	assert.Equal(t, float64(1), status["participant_count"])
	assert.Greater(t, status["time_left_seconds"].(float64), float64(0))

	resp, joined := h.postJSON(t, "/session/"+id+"/join", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "active", joined["status"])

	resp, _ = h.postJSON(t, "/session/"+id+"/join", map[string]any{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, extended := h.postJSON(t, "/session/"+id+"/extend", map[string]any{"minutes": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(10), extended["extended_by"])

	resp = h.delete(t, "/session/"+id)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, _ = h.get(t, "/session/"+id+"/status")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateRejectsInvalidDuration(t *testing.T) {
	h := newHarness(t)

	for _, d := range []int{0, 1441} {
		resp, _ := h.postJSON(t, "/session/create", map[string]any{"duration": d})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "duration %d", d)
	}
}

func TestRedeemCodeFlow(t *testing.T) {
	h := newHarness(t)

	created := h.createSession(t, 5)
	joinCode := created["code"].(string)

	resp, redeemed := h.postJSON(t, "/session/code/"+joinCode, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created["session_id"], redeemed["session_id"])
	assert.Equal(t, "active", redeemed["status"])
	assert.NotEmpty(t, redeemed["encryption_key"])

	resp, _ = h.postJSON(t, "/session/code/"+joinCode, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownSessionEndpoints(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.get(t, "/session/missing0/status")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.postJSON(t, "/session/missing0/join", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.delete(t, "/session/missing0")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func readEvent(t *testing.T, ctx context.Context, c *ws.Conn) relay.Event {
	t.Helper()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var evt relay.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	return evt
}

func TestWebsocketRelayEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	created := h.createSession(t, 5)
	id := created["session_id"].(string)

	resp, _ := h.postJSON(t, "/session/code/"+created["code"].(string), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	c1, _, err := ws.Dial(ctx, h.wsURL(id), nil)
	require.NoError(t, err)
	defer c1.Close(ws.StatusNormalClosure, "test done")
	evt := readEvent(t, ctx, c1)
	assert.Equal(t, relay.EventConnected, evt.Type)
	assert.Equal(t, 1, evt.ConnectionCount)

	c2, _, err := ws.Dial(ctx, h.wsURL(id), nil)
	require.NoError(t, err)
	defer c2.Close(ws.StatusNormalClosure, "test done")
	evt = readEvent(t, ctx, c2)
	assert.Equal(t, relay.EventConnected, evt.Type)
	assert.Equal(t, 2, evt.ConnectionCount)

	// a frame from one side arrives verbatim at the other, and only there
	require.NoError(t, c1.Write(ctx, ws.MessageText, []byte("hello")))
	_, data, err := c2.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, c2.Write(ctx, ws.MessageText, []byte("hi back")))
	_, data, err = c1.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi back", string(data))

	// a third channel is turned away at the door
	c3, _, err := ws.Dial(ctx, h.wsURL(id), nil)
	require.NoError(t, err)
	_, _, err = c3.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, ws.StatusPolicyViolation, ws.CloseStatus(err))

	// forced termination: one side is told it initiated, the other that its
	// peer is leaving, then both sockets close
	resp = h.delete(t, "/session/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	evt1 := readEvent(t, ctx, c1)
	evt2 := readEvent(t, ctx, c2)
	types := []string{evt1.Type, evt2.Type}
	assert.Contains(t, types, relay.EventDestroyingSession)
	assert.Contains(t, types, relay.EventParticipantLeaving)

	_, _, err = c1.Read(ctx)
	assert.Error(t, err)
	_, _, err = c2.Read(ctx)
	assert.Error(t, err)
}

func TestWebsocketRejectsUnknownSession(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, _, err := ws.Dial(ctx, h.wsURL("missing0"), nil)
	require.NoError(t, err)
	_, _, err = c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, ws.StatusPolicyViolation, ws.CloseStatus(err))
}

func TestPollingFallback(t *testing.T) {
	h := newHarness(t)

	created := h.createSession(t, 5)
	id := created["session_id"].(string)

	resp, sent := h.postJSON(t, "/session/"+id+"/message", map[string]any{"content": "hi"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sent", sent["status"])

	resp, body := h.get(t, "/session/"+id+"/messages?since=0")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].(map[string]any)["content"])

	// drained on read
	resp, body = h.get(t, "/session/"+id+"/messages?since=0")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["messages"])
}

func TestAdminCleanup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, h.store.Create(ctx, &session.Session{
		ID:               "expired1",
		CreatedAt:        now.Add(-time.Hour),
		ExpiresAt:        now.Add(-time.Minute),
		DurationMinutes:  5,
		ParticipantCount: 1,
		Status:           session.StatusWaiting,
	}))
	h.createSession(t, 60)

	resp, body := h.postJSON(t, "/admin/cleanup", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["cleaned"])

	resp, _ = h.get(t, "/session/expired1/status")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamEndpointsDisabled(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.postJSON(t, "/stream/token", map[string]any{"user_id": "u1"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = h.postJSON(t, "/stream/channel", map[string]any{
		"session_id": "s1", "user1_id": "u1", "user2_id": "u2",
	})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t)

	resp, body := h.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.createSession(t, 5)

	resp, err := http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "sessions_created_total")
}
