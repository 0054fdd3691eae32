package video

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/httputil"
)

type progressRequest struct {
	WatchedDuration   float64 `json:"watchedDuration"`
	WatchedPercentage float64 `json:"watchedPercentage"`
}

func (h *Handler) optionalViewerID(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	tokenStr, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return ""
	}
	claims, err := auth.ValidateToken(h.hmacSecret, tokenStr)
	if err != nil || claims.TokenType != "access" {
		return ""
	}
	return claims.UserID
}

// Progress updates the open view session for the calling viewer. Updates are
// last-write-wins; reaching 100 percent closes the session so the next play
// opens a fresh one.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	videoID, _, ok := h.lookupWatchVideo(w, r)
	if !ok {
		return
	}

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.WatchedDuration < 0 || req.WatchedPercentage < 0 || req.WatchedPercentage > 100 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid progress values")
		return
	}

	viewerID := h.optionalViewerID(r)
	if viewerID == "" {
		// Anonymous viewers have no open session to update.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	_, err := h.db.Exec(r.Context(),
		`UPDATE video_views
		 SET watched_duration = $1, watched_percentage = $2, closed = ($2 >= 100)
		 WHERE video_id = $3 AND viewer_id = $4 AND NOT closed`,
		req.WatchedDuration, req.WatchedPercentage, videoID, viewerID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to record progress")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
