// Package channel implements the per-session real-time channel: binary PCM
// frames go to the audio relay and JSON signaling messages are acknowledged.
package channel

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/homehub/cast-server-go/internal/audit"
	apperrors "github.com/homehub/cast-server-go/internal/errors"
	"github.com/homehub/cast-server-go/internal/httputil"
	"github.com/homehub/cast-server-go/internal/model"
)

// Sessions is the slice of the lifecycle manager the channel depends on.
type Sessions interface {
	Get(ctx context.Context, id string) *model.Session
	SetSignalingState(ctx context.Context, id string, state model.SignalingState) bool
}

type AudioSink interface {
	AddAudioChunk(sessionID string, chunk []byte) bool
}

type Options struct {
	ReadLimit  int64
	SendBuffer int
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 20
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	return o
}

type Handler struct {
	sessions Sessions
	audio    AudioSink
	opts     Options
	upgrader websocket.Upgrader
	nowF     func() time.Time

	mu       sync.Mutex
	conns    map[string]*Conn
	attached map[string]bool
}

func NewHandler(sessions Sessions, audio AudioSink, opts Options) *Handler {
	return &Handler{
		sessions: sessions,
		audio:    audio,
		opts:     opts.withDefaults(),
		upgrader: websocket.Upgrader{
			// Phones on the LAN connect from arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		nowF:     time.Now,
		conns:    make(map[string]*Conn),
		attached: make(map[string]bool),
	}
}

// Connect upgrades the request for the session named by the sessionID URL
// parameter. Unknown or expired sessions, and sessions that already have an
// open channel, are refused before the upgrade.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")

	if h.sessions.Get(ctx, sessionID) == nil {
		h.reject(w, r, sessionID, "unknown_session", "Session not found or expired")
		return
	}
	if !h.attach(sessionID) {
		h.reject(w, r, sessionID, "already_connected", "Session already has an open channel")
		return
	}
	// Released after the closed state is written so a reconnect cannot be
	// overwritten by it.
	defer h.detach(sessionID)

	h.sessions.SetSignalingState(ctx, sessionID, model.SignalingStateConnecting)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("channel upgrade failed")
		h.sessions.SetSignalingState(ctx, sessionID, model.SignalingStateClosed)
		return
	}

	conn := newConn(uuid.NewString(), sessionID, ws, h.opts.SendBuffer)
	h.track(conn)
	defer h.untrack(conn)

	h.sessions.SetSignalingState(ctx, sessionID, model.SignalingStateConnected)
	log.Info().
		Str("connId", conn.id).
		Str("sessionId", sessionID).
		Msg("channel connected")

	h.serve(ctx, conn)

	h.sessions.SetSignalingState(ctx, sessionID, model.SignalingStateClosed)
	log.Info().
		Str("connId", conn.id).
		Str("sessionId", sessionID).
		Msg("channel closed")
}

func (h *Handler) serve(ctx context.Context, conn *Conn) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.writePump(h.opts.WriteWait, h.opts.PingPeriod)
	}()

	h.readPump(ctx, conn)

	conn.closeSend(websocket.CloseNormalClosure, "")
	<-done
	_ = conn.ws.Close()
}

func (h *Handler) readPump(ctx context.Context, conn *Conn) {
	ws := conn.ws
	ws.SetReadLimit(h.opts.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("connId", conn.id).Msg("channel read error")
			}
			return
		}

		if !h.handleFrame(ctx, conn, DecodeFrame(messageType, data)) {
			return
		}
	}
}

// handleFrame dispatches one decoded frame. It reports false when the
// connection must end.
func (h *Handler) handleFrame(ctx context.Context, conn *Conn, frame Frame) bool {
	if h.sessions.Get(ctx, conn.sessionID) == nil {
		conn.sendJSON(ErrorReply{Type: TypeError, Message: "Session not found or expired"})
		conn.closeSend(websocket.ClosePolicyViolation, "session expired")
		log.Info().
			Str("connId", conn.id).
			Str("sessionId", conn.sessionID).
			Msg("channel session gone, closing")
		return false
	}

	switch frame.Kind {
	case FrameBinary:
		h.audio.AddAudioChunk(conn.sessionID, frame.Audio)
		conn.sendJSON(AudioAck{Type: TypeAudioAck, Bytes: len(frame.Audio)})
	case FrameText:
		// Signaling messages are acknowledged only; peer routing plugs in here.
		log.Debug().
			Str("connId", conn.id).
			Str("type", frame.Message.Type).
			Msg("signaling message")
		conn.sendJSON(Ack{
			Type:        TypeAck,
			MessageType: frame.Message.Type,
			Timestamp:   h.nowF().UnixMilli(),
		})
	default:
		conn.sendJSON(ErrorReply{Type: TypeError, Message: frame.Err.Error()})
	}
	return true
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, sessionID, reason, message string) {
	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventChannelRejected,
		SessionID: sessionID,
		Details:   map[string]interface{}{"reason": reason},
	})
	httputil.WriteError(w, apperrors.PolicyViolation(message))
}

// attach reserves the session's single channel slot.
func (h *Handler) attach(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.attached[sessionID] {
		return false
	}
	h.attached[sessionID] = true
	return true
}

func (h *Handler) detach(sessionID string) {
	h.mu.Lock()
	delete(h.attached, sessionID)
	h.mu.Unlock()
}

func (h *Handler) track(conn *Conn) {
	h.mu.Lock()
	h.conns[conn.id] = conn
	h.mu.Unlock()
}

func (h *Handler) untrack(conn *Conn) {
	h.mu.Lock()
	delete(h.conns, conn.id)
	h.mu.Unlock()
}

func (h *Handler) ActiveConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Shutdown asks every open connection to close with "going away". Hijacked
// connections are not tracked by http.Server, so this runs alongside its
// Shutdown.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if c.closeSend(websocket.CloseGoingAway, "server shutting down") {
			_ = c.ws.SetReadDeadline(time.Now().Add(h.opts.WriteWait))
		}
	}
	if len(conns) > 0 {
		log.Info().Int("count", len(conns)).Msg("channel connections closing")
	}
}
