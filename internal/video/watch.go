package video

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reelfeed/reelfeed/internal/httputil"
)

type watchResponse struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Duration     int              `json:"duration"`
	AuthorID     string           `json:"authorId"`
	AuthorName   string           `json:"authorName"`
	PlaybackURL  string           `json:"playbackUrl"`
	ThumbnailURL string           `json:"thumbnailUrl,omitempty"`
	Views        int64            `json:"views"`
	Reactions    map[string]int64 `json:"reactions"`
	CommentMode  string           `json:"commentMode"`
	CreatedAt    string           `json:"createdAt"`
}

// lookupWatchVideo resolves a share token to a playable video and enforces
// the password gate. Every public watch endpoint goes through it.
func (h *Handler) lookupWatchVideo(w http.ResponseWriter, r *http.Request) (videoID, ownerID string, ok bool) {
	shareToken := chi.URLParam(r, "shareToken")

	var sharePassword *string
	err := h.db.QueryRow(r.Context(),
		`SELECT id, user_id, share_password FROM videos WHERE share_token = $1 AND status = 'ready'`,
		shareToken,
	).Scan(&videoID, &ownerID, &sharePassword)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return "", "", false
	}

	if sharePassword != nil {
		if !hasValidWatchCookie(r, h.hmacSecret, shareToken, *sharePassword) {
			httputil.WriteError(w, http.StatusForbidden, "password required")
			return "", "", false
		}
	}

	return videoID, ownerID, true
}

func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	shareToken := chi.URLParam(r, "shareToken")

	var resp watchResponse
	var fileKey string
	var thumbnailKey *string
	var sharePassword *string
	var createdAt time.Time
	err := h.db.QueryRow(r.Context(),
		`SELECT v.id, v.title, v.description, v.duration, v.file_key, v.thumbnail_key,
		        v.share_password, v.comment_mode, v.user_id, p.name, v.created_at,
		        (SELECT COUNT(*) FROM video_views vv WHERE vv.video_id = v.id) AS views
		 FROM videos v
		 JOIN profiles p ON p.id = v.user_id
		 WHERE v.share_token = $1 AND v.status = 'ready'`,
		shareToken,
	).Scan(&resp.ID, &resp.Title, &resp.Description, &resp.Duration, &fileKey, &thumbnailKey,
		&sharePassword, &resp.CommentMode, &resp.AuthorID, &resp.AuthorName, &createdAt, &resp.Views)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	if sharePassword != nil {
		if !hasValidWatchCookie(r, h.hmacSecret, shareToken, *sharePassword) {
			httputil.WriteError(w, http.StatusForbidden, "password required")
			return
		}
	}

	playbackURL, err := h.storage.GenerateDownloadURL(r.Context(), fileKey, 1*time.Hour)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate playback URL")
		return
	}
	resp.PlaybackURL = playbackURL
	resp.CreatedAt = createdAt.Format(time.RFC3339)
	if thumbnailKey != nil {
		resp.ThumbnailURL = h.baseURL + "/api/watch/" + shareToken + "/thumbnail"
	}

	resp.Reactions = make(map[string]int64)
	reactionRows, err := h.db.Query(r.Context(),
		`SELECT emoji, COUNT(*) FROM reactions WHERE video_id = $1 GROUP BY emoji`,
		resp.ID,
	)
	if err == nil {
		defer reactionRows.Close()
		for reactionRows.Next() {
			var emoji string
			var count int64
			if err := reactionRows.Scan(&emoji, &count); err == nil {
				resp.Reactions[emoji] = count
			}
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Thumbnail redirects to a short-lived presigned URL for the thumbnail object.
func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	shareToken := chi.URLParam(r, "shareToken")

	var thumbnailKey *string
	err := h.db.QueryRow(r.Context(),
		`SELECT thumbnail_key FROM videos WHERE share_token = $1 AND status = 'ready'`,
		shareToken,
	).Scan(&thumbnailKey)
	if err != nil || thumbnailKey == nil {
		httputil.WriteError(w, http.StatusNotFound, "thumbnail not found")
		return
	}

	url, err := h.storage.GenerateDownloadURL(r.Context(), *thumbnailKey, 15*time.Minute)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate thumbnail URL")
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}
