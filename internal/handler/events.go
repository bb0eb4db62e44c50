package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/homehub/cast-server-go/internal/errors"
	"github.com/homehub/cast-server-go/internal/httputil"
	"github.com/homehub/cast-server-go/internal/service"
	"github.com/homehub/cast-server-go/internal/sse"
	"github.com/homehub/cast-server-go/internal/util"
)

// EventsHandler streams lifecycle events for one session so the hub screen
// learns when a phone pairs or the session expires.
type EventsHandler struct {
	broker         *sse.Broker
	sessionService *service.SessionService
	heartbeat      time.Duration
}

func NewEventsHandler(broker *sse.Broker, sessionService *service.SessionService) *EventsHandler {
	return &EventsHandler{
		broker:         broker,
		sessionService: sessionService,
		heartbeat:      sse.HeartbeatInterval,
	}
}

// GET /v1/cast/session/{sessionID}/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !util.IsValidSessionID(sessionID) {
		httputil.WriteError(w, apperrors.SessionNotFound())
		return
	}
	session := h.sessionService.Get(r.Context(), sessionID)
	if session == nil {
		httputil.WriteError(w, apperrors.SessionNotFound())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(sessionID)
	defer h.broker.Unsubscribe(client)

	log.Info().Str("sessionId", sessionID).Msg("sse connection established")

	if err := h.sendEvent(w, flusher, "connected", session.View(h.sessionService.Now())); err != nil {
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("sessionId", sessionID).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("sessionId", sessionID).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("sessionId", sessionID).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
