package handler

import (
	"net/http"

	"github.com/homehub/cast-server-go/internal/ice"
)

// ICEHandler serves the ICE configuration built once at startup.
type ICEHandler struct {
	config ice.Config
}

func NewICEHandler(config ice.Config) *ICEHandler {
	return &ICEHandler{config: config}
}

// GET /v1/cast/ice
func (h *ICEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config)
}
