package handler

import (
	"net/http"
	"strconv"
)

const DefaultLimit = 50

// ParseLimit reads ?limit=, falling back to DefaultLimit when absent or out
// of (0, maxLimit].
func ParseLimit(r *http.Request, maxLimit int) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > maxLimit {
		limit = min(DefaultLimit, maxLimit)
	}
	return limit
}
