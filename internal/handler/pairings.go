package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/homehub/cast-server-go/internal/audit"
	"github.com/homehub/cast-server-go/internal/config"
	apperrors "github.com/homehub/cast-server-go/internal/errors"
	"github.com/homehub/cast-server-go/internal/httputil"
	"github.com/homehub/cast-server-go/internal/model"
)

type PairingsHandler struct {
	recorder *audit.Recorder
}

func NewPairingsHandler(recorder *audit.Recorder) *PairingsHandler {
	return &PairingsHandler{recorder: recorder}
}

// GET /v1/cast/pairings?limit=
func (h *PairingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.recorder.Enabled() {
		httputil.WriteError(w, apperrors.ServiceUnavailable("Pairing history"))
		return
	}

	limit := ParseLimit(r, config.MaxPairingHistoryLimit)
	events, err := h.recorder.History(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to load pairing history")
		httputil.WriteError(w, apperrors.Database(err))
		return
	}
	if events == nil {
		events = []model.PairingEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pairings": events,
		"count":    len(events),
	})
}
