package video

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reelfeed/reelfeed/internal/httputil"
)

var allowedReactionEmojis = []string{"❤️", "👍", "😂", "😮", "😢", "🔥"}
var allowedReactionSet = buildReactionSet()

func buildReactionSet() map[string]bool {
	set := make(map[string]bool, len(allowedReactionEmojis))
	for _, emoji := range allowedReactionEmojis {
		set[emoji] = true
	}
	return set
}

// AddReaction records a reaction for the calling viewer. Reacting twice with
// the same emoji is benign; the duplicate insert is absorbed.
func (h *Handler) AddReaction(w http.ResponseWriter, r *http.Request) {
	videoID, _, ok := h.lookupWatchVideo(w, r)
	if !ok {
		return
	}

	emoji := chi.URLParam(r, "emoji")
	if !allowedReactionSet[emoji] {
		httputil.WriteError(w, http.StatusBadRequest, "unsupported reaction")
		return
	}

	hash := viewerHash(clientIP(r), r.UserAgent())
	_, err := h.db.Exec(r.Context(),
		`INSERT INTO reactions (video_id, viewer_hash, emoji) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		videoID, hash, emoji,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to record reaction")
		return
	}

	h.publish("reactions", videoID)
	w.WriteHeader(http.StatusNoContent)
}

// RemoveReaction deletes the calling viewer's reaction. Removing a reaction
// that was never recorded is also benign.
func (h *Handler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	videoID, _, ok := h.lookupWatchVideo(w, r)
	if !ok {
		return
	}

	emoji := chi.URLParam(r, "emoji")
	if !allowedReactionSet[emoji] {
		httputil.WriteError(w, http.StatusBadRequest, "unsupported reaction")
		return
	}

	hash := viewerHash(clientIP(r), r.UserAgent())
	_, err := h.db.Exec(r.Context(),
		`DELETE FROM reactions WHERE video_id = $1 AND viewer_hash = $2 AND emoji = $3`,
		videoID, hash, emoji,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to remove reaction")
		return
	}

	h.publish("reactions", videoID)
	w.WriteHeader(http.StatusNoContent)
}
