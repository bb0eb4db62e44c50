package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	apperrors "github.com/homehub/cast-server-go/internal/errors"
	"github.com/homehub/cast-server-go/internal/httputil"
	"github.com/homehub/cast-server-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.ValidationError("Request body too large")
		}
		return apperrors.ValidationError("Invalid JSON body")
	}
	return nil
}

func sessionViews(sessions []model.Session, now time.Time) []model.SessionView {
	views := make([]model.SessionView, 0, len(sessions))
	for i := range sessions {
		views = append(views, sessions[i].View(now))
	}
	return views
}
