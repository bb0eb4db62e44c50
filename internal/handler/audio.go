package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/homehub/cast-server-go/internal/audio"
	apperrors "github.com/homehub/cast-server-go/internal/errors"
	"github.com/homehub/cast-server-go/internal/httputil"
	"github.com/homehub/cast-server-go/internal/service"
)

type AudioHandler struct {
	relay          *audio.Relay
	sessionService *service.SessionService
}

func NewAudioHandler(relay *audio.Relay, sessionService *service.SessionService) *AudioHandler {
	return &AudioHandler{
		relay:          relay,
		sessionService: sessionService,
	}
}

func (h *AudioHandler) Routes(r chi.Router) {
	r.Get("/audio", h.ListStreams)
	r.Get("/audio/{sessionID}", h.GetStream)
	r.Post("/audio/{sessionID}/start", h.StartStream)
	r.Post("/audio/{sessionID}/stop", h.StopStream)
	r.Post("/audio/{sessionID}/clear", h.ClearStream)

	// Paths used by earlier hub clients.
	r.Post("/audio/start/{sessionID}", h.StartStream)
	r.Post("/audio/stop/{sessionID}", h.StopStream)
}

type streamResponse struct {
	SessionID string `json:"session_id"`
	audio.Info
}

// POST /v1/cast/audio/{sessionID}/start
func (h *AudioHandler) StartStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if h.sessionService.Get(r.Context(), sessionID) == nil {
		httputil.WriteError(w, apperrors.SessionNotFound())
		return
	}

	buf := h.relay.Start(sessionID)
	writeJSON(w, http.StatusOK, streamResponse{SessionID: sessionID, Info: buf.Info()})
}

type stopResponse struct {
	SessionID       string  `json:"session_id"`
	DurationSeconds float64 `json:"duration_seconds"`
	AudioBase64     string  `json:"audio_base64"`
	Format          string  `json:"format"`
	SampleRate      int     `json:"sample_rate"`
}

// POST /v1/cast/audio/{sessionID}/stop
func (h *AudioHandler) StopStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	buf := h.relay.Stop(sessionID)
	if buf == nil {
		httputil.WriteError(w, apperrors.StreamNotFound())
		return
	}

	writeJSON(w, http.StatusOK, stopResponse{
		SessionID:       sessionID,
		DurationSeconds: buf.DurationSeconds(),
		AudioBase64:     base64.StdEncoding.EncodeToString(buf.ToWAV()),
		Format:          "wav",
		SampleRate:      audio.SampleRate,
	})
}

// GET /v1/cast/audio/{sessionID}
func (h *AudioHandler) GetStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	buf := h.relay.Buffer(sessionID)
	if buf == nil {
		httputil.WriteError(w, apperrors.StreamNotFound())
		return
	}

	writeJSON(w, http.StatusOK, streamResponse{SessionID: sessionID, Info: buf.Info()})
}

// POST /v1/cast/audio/{sessionID}/clear
func (h *AudioHandler) ClearStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !h.relay.Clear(sessionID) {
		httputil.WriteError(w, apperrors.StreamNotFound())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"cleared":    true,
	})
}

// GET /v1/cast/audio
func (h *AudioHandler) ListStreams(w http.ResponseWriter, r *http.Request) {
	ids := h.relay.ActiveSessions()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": ids,
		"count":    len(ids),
	})
}
