package handler

import (
	"net/http"
	"time"

	"github.com/homehub/cast-server-go/internal/config"
)

// GET /healthz
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
	})
}

// Version returns the handler for GET /version.
func Version(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": config.ServiceName,
			"version": version,
		})
	}
}
