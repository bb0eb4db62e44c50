package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/homehub/cast-server-go/internal/config"
	apperrors "github.com/homehub/cast-server-go/internal/errors"
	"github.com/homehub/cast-server-go/internal/httputil"
	"github.com/homehub/cast-server-go/internal/model"
	"github.com/homehub/cast-server-go/internal/service"
	"github.com/homehub/cast-server-go/internal/util"
)

type SessionHandler struct {
	sessionService *service.SessionService
	version        string
}

func NewSessionHandler(sessionService *service.SessionService, version string) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		version:        version,
	}
}

// Routes mounts under /v1/cast. pairLimit guards PIN redemption.
func (h *SessionHandler) Routes(r chi.Router, pairLimit func(http.Handler) http.Handler) {
	r.Post("/session", h.CreateSession)
	r.With(pairLimit).Post("/session/pair", h.PairSession)
	r.Get("/session/{sessionID}", h.GetSession)
	r.Delete("/session/{sessionID}", h.DeleteSession)
	r.Get("/sessions", h.ListSessions)
	r.Post("/sessions/reset", h.ResetSessions)
}

type createSessionResponse struct {
	SessionID        string `json:"session_id"`
	PIN              string `json:"pin"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
	QRData           string `json:"qr_data"`
}

// POST /v1/cast/session
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.Create(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		httputil.WriteError(w, apperrors.Internal("Failed to create session"))
		return
	}

	qr, err := json.Marshal(map[string]string{
		"session_id": session.ID,
		"pin":        session.PIN,
		"service":    config.ServiceName,
		"version":    h.version,
	})
	if err != nil {
		httputil.WriteError(w, apperrors.Internal("Failed to create session"))
		return
	}

	writeJSON(w, http.StatusOK, createSessionResponse{
		SessionID:        session.ID,
		PIN:              session.PIN,
		ExpiresInSeconds: int(h.sessionService.TTL().Seconds()),
		QRData:           string(qr),
	})
}

type pairRequest struct {
	PIN        string           `json:"pin"`
	DeviceInfo model.DeviceInfo `json:"device_info"`
}

// POST /v1/cast/session/pair
func (h *SessionHandler) PairSession(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if req.PIN == "" {
		httputil.WriteError(w, apperrors.MissingRequired("pin"))
		return
	}
	if !util.IsValidPIN(req.PIN) {
		httputil.WriteError(w, apperrors.InvalidPIN())
		return
	}

	session, err := h.sessionService.RedeemPIN(r.Context(), req.PIN, req.DeviceInfo, httputil.ClientIP(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"paired":     true,
		"message":    "Device paired successfully",
	})
}

// GET /v1/cast/session/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session := h.sessionService.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if session == nil {
		httputil.WriteError(w, apperrors.SessionNotFound())
		return
	}

	writeJSON(w, http.StatusOK, session.View(h.sessionService.Now()))
}

// DELETE /v1/cast/session/{sessionID}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !h.sessionService.Unpair(r.Context(), sessionID) {
		httputil.WriteError(w, apperrors.SessionNotFound())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"removed":    true,
	})
}

// GET /v1/cast/sessions?paired=true|false
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var sessions []model.Session
	if raw := r.URL.Query().Get("paired"); raw != "" {
		paired, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, apperrors.InvalidInput("paired", "must be true or false"))
			return
		}
		if paired {
			sessions = h.sessionService.ListPaired(ctx)
		} else {
			for _, s := range h.sessionService.ListActive(ctx) {
				if !s.Paired {
					sessions = append(sessions, s)
				}
			}
		}
	} else {
		sessions = h.sessionService.ListActive(ctx)
	}

	views := sessionViews(sessions, h.sessionService.Now())
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": views,
		"count":    len(views),
	})
}

// POST /v1/cast/sessions/reset
func (h *SessionHandler) ResetSessions(w http.ResponseWriter, r *http.Request) {
	n := h.sessionService.ResetAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}
