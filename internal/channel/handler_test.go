package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homehub/cast-server-go/internal/audio"
	"github.com/homehub/cast-server-go/internal/model"
)

type fakeSessions struct {
	mu     sync.Mutex
	live   map[string]bool
	states map[string][]model.SignalingState
}

func newFakeSessions(ids ...string) *fakeSessions {
	f := &fakeSessions{live: map[string]bool{}, states: map[string][]model.SignalingState{}}
	for _, id := range ids {
		f.live[id] = true
	}
	return f
}

func (f *fakeSessions) Get(_ context.Context, id string) *model.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live[id] {
		return nil
	}
	return &model.Session{ID: id}
}

func (f *fakeSessions) SetSignalingState(_ context.Context, id string, state model.SignalingState) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live[id] {
		return false
	}
	f.states[id] = append(f.states[id], state)
	return true
}

func (f *fakeSessions) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, id)
}

func (f *fakeSessions) statesFor(id string) []model.SignalingState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SignalingState(nil), f.states[id]...)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupChannel(t *testing.T, sessions *fakeSessions) (*Handler, *audio.Relay, string) {
	t.Helper()

	relay := audio.NewRelay(30 * time.Second)
	h := NewHandler(sessions, relay, Options{SendBuffer: 16})
	h.nowF = func() time.Time { return fixedNow }

	r := chi.NewRouter()
	r.Get("/ws/{sessionID}", h.Connect)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return h, relay, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readJSON(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	messageType, data, err := ws.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, messageType)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestConnect_UnknownSessionRejected(t *testing.T) {
	_, _, base := setupChannel(t, newFakeSessions())

	ws, resp, err := websocket.DefaultDialer.Dial(base+"missing", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Nil(t, ws)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "POLICY_VIOLATION", body["code"])
}

func TestConnect_BinaryFrameRelayedAndAcked(t *testing.T) {
	_, relay, base := setupChannel(t, newFakeSessions("s1"))
	relay.Start("s1")
	ws := dial(t, base+"s1")

	chunk := make([]byte, 16000)
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, chunk))

	reply := readJSON(t, ws)
	assert.Equal(t, "audio_ack", reply["type"])
	assert.Equal(t, float64(16000), reply["bytes"])
	assert.Equal(t, 16000, relay.Buffer("s1").Len())
}

func TestConnect_BinaryFrameWithoutStreamStillAcked(t *testing.T) {
	_, relay, base := setupChannel(t, newFakeSessions("s1"))
	ws := dial(t, base+"s1")

	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4}))

	reply := readJSON(t, ws)
	assert.Equal(t, "audio_ack", reply["type"])
	assert.Equal(t, float64(4), reply["bytes"])
	assert.Nil(t, relay.Buffer("s1"))
}

func TestConnect_TextFrameAcked(t *testing.T) {
	_, _, base := setupChannel(t, newFakeSessions("s1"))
	ws := dial(t, base+"s1")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"offer","sdp":"v=0"}`)))

	reply := readJSON(t, ws)
	assert.Equal(t, "ack", reply["type"])
	assert.Equal(t, "offer", reply["message_type"])
	assert.Equal(t, float64(fixedNow.UnixMilli()), reply["timestamp"])
}

func TestConnect_MalformedTextKeepsConnection(t *testing.T) {
	_, _, base := setupChannel(t, newFakeSessions("s1"))
	ws := dial(t, base+"s1")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	reply := readJSON(t, ws)
	assert.Equal(t, "error", reply["type"])
	assert.Equal(t, ErrMalformedJSON.Error(), reply["message"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"sdp":"v=0"}`)))
	reply = readJSON(t, ws)
	assert.Equal(t, "error", reply["type"])
	assert.Equal(t, ErrMissingType.Error(), reply["message"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"answer"}`)))
	reply = readJSON(t, ws)
	assert.Equal(t, "ack", reply["type"])
	assert.Equal(t, "answer", reply["message_type"])
}

func TestConnect_SessionGoneClosesWithPolicyViolation(t *testing.T) {
	sessions := newFakeSessions("s1")
	_, _, base := setupChannel(t, sessions)
	ws := dial(t, base+"s1")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"offer"}`)))
	readJSON(t, ws)

	sessions.remove("s1")
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2}))

	reply := readJSON(t, ws)
	assert.Equal(t, "error", reply["type"])

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestConnect_SignalingStateLifecycle(t *testing.T) {
	sessions := newFakeSessions("s1")
	h, _, base := setupChannel(t, sessions)
	ws := dial(t, base+"s1")

	require.Eventually(t, func() bool { return len(sessions.statesFor("s1")) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t,
		[]model.SignalingState{model.SignalingStateConnecting, model.SignalingStateConnected},
		sessions.statesFor("s1"))
	assert.Equal(t, 1, h.ActiveConnections())

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	assert.Eventually(t, func() bool { return h.ActiveConnections() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		states := sessions.statesFor("s1")
		return len(states) == 3 && states[2] == model.SignalingStateClosed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnect_SecondConnectionRefused(t *testing.T) {
	sessions := newFakeSessions("s1")
	h, relay, base := setupChannel(t, sessions)
	relay.Start("s1")
	first := dial(t, base+"s1")
	require.Eventually(t, func() bool { return len(sessions.statesFor("s1")) == 2 }, 2*time.Second, 10*time.Millisecond)

	ws, resp, err := websocket.DefaultDialer.Dial(base+"s1", nil)
	require.Error(t, err)
	assert.Nil(t, ws)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "POLICY_VIOLATION", body["code"])

	t.Run("open channel keeps its state and keeps relaying", func(t *testing.T) {
		assert.Equal(t,
			[]model.SignalingState{model.SignalingStateConnecting, model.SignalingStateConnected},
			sessions.statesFor("s1"))
		assert.Equal(t, 1, h.ActiveConnections())

		require.NoError(t, first.WriteMessage(websocket.BinaryMessage, make([]byte, 10)))
		assert.Equal(t, "audio_ack", readJSON(t, first)["type"])
		assert.Equal(t, 10, relay.Buffer("s1").Len())
	})

	t.Run("reconnect succeeds once the channel is closed", func(t *testing.T) {
		require.NoError(t, first.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
		require.Eventually(t, func() bool {
			states := sessions.statesFor("s1")
			return len(states) == 3 && states[2] == model.SignalingStateClosed
		}, 2*time.Second, 10*time.Millisecond)
		require.Eventually(t, func() bool { return h.ActiveConnections() == 0 }, 2*time.Second, 10*time.Millisecond)

		var second *websocket.Conn
		require.Eventually(t, func() bool {
			c, r, err := websocket.DefaultDialer.Dial(base+"s1", nil)
			if r != nil && r.Body != nil {
				r.Body.Close()
			}
			if err != nil {
				return false
			}
			second = c
			return true
		}, 2*time.Second, 10*time.Millisecond)
		t.Cleanup(func() { second.Close() })

		require.Eventually(t, func() bool { return len(sessions.statesFor("s1")) == 5 }, 2*time.Second, 10*time.Millisecond)
		states := sessions.statesFor("s1")
		assert.Equal(t, model.SignalingStateConnected, states[len(states)-1])
	})
}

func TestConnect_ConnectionsAreIsolated(t *testing.T) {
	_, relay, base := setupChannel(t, newFakeSessions("s1", "s2"))
	relay.Start("s1")
	relay.Start("s2")
	ws1 := dial(t, base+"s1")
	ws2 := dial(t, base+"s2")

	require.NoError(t, ws1.WriteMessage(websocket.BinaryMessage, make([]byte, 100)))
	readJSON(t, ws1)

	ws1.Close()

	require.NoError(t, ws2.WriteMessage(websocket.BinaryMessage, make([]byte, 40)))
	reply := readJSON(t, ws2)
	assert.Equal(t, float64(40), reply["bytes"])

	assert.Equal(t, 100, relay.Buffer("s1").Len())
	assert.Equal(t, 40, relay.Buffer("s2").Len())
}

func TestHandler_ShutdownClosesConnections(t *testing.T) {
	h, _, base := setupChannel(t, newFakeSessions("s1"))
	ws := dial(t, base+"s1")
	require.Eventually(t, func() bool { return h.ActiveConnections() == 1 }, 2*time.Second, 10*time.Millisecond)

	h.Shutdown()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	assert.Eventually(t, func() bool { return h.ActiveConnections() == 0 }, 2*time.Second, 10*time.Millisecond)
}
