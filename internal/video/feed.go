package video

import (
	"net/http"
	"strconv"
	"time"

	"github.com/reelfeed/reelfeed/internal/httputil"
)

const defaultFeedLimit = 20
const maxFeedLimit = 50

type feedItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Duration     int    `json:"duration"`
	ShareToken   string `json:"shareToken"`
	AuthorID     string `json:"authorId"`
	AuthorName   string `json:"authorName"`
	Views        int64  `json:"views"`
	PlaybackURL  string `json:"playbackUrl"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	NextVideoID  string `json:"nextVideoId,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

type feedResponse struct {
	Items      []feedItem `json:"items"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// Feed returns the public video feed, newest first, with each entry carrying
// the id of the one after it so players can arm auto-advance without a second
// round trip.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	limit := defaultFeedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n > maxFeedLimit {
			n = maxFeedLimit
		}
		limit = n
	}

	var cursor time.Time
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		cursor = t
	}

	query := `SELECT v.id, v.title, v.description, v.duration, v.share_token, v.file_key, v.thumbnail_key,
	        v.user_id, p.name, v.created_at,
	        (SELECT COUNT(*) FROM video_views vv WHERE vv.video_id = v.id) AS views
	 FROM videos v
	 JOIN profiles p ON p.id = v.user_id
	 WHERE v.status = 'ready' AND v.share_password IS NULL`
	args := []any{}
	if !cursor.IsZero() {
		query += ` AND v.created_at < $1`
		args = append(args, cursor)
	}
	query += ` ORDER BY v.created_at DESC LIMIT ` + strconv.Itoa(limit+1)

	rows, err := h.db.Query(r.Context(), query, args...)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load feed")
		return
	}
	defer rows.Close()

	type feedRow struct {
		item         feedItem
		fileKey      string
		thumbnailKey *string
		createdAt    time.Time
	}

	fetched := make([]feedRow, 0, limit+1)
	for rows.Next() {
		var fr feedRow
		if err := rows.Scan(&fr.item.ID, &fr.item.Title, &fr.item.Description, &fr.item.Duration,
			&fr.item.ShareToken, &fr.fileKey, &fr.thumbnailKey, &fr.item.AuthorID, &fr.item.AuthorName,
			&fr.createdAt, &fr.item.Views); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan feed")
			return
		}
		fetched = append(fetched, fr)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read feed")
		return
	}

	nextCursor := ""
	if len(fetched) > limit {
		nextCursor = fetched[limit-1].createdAt.Format(time.RFC3339Nano)
		fetched = fetched[:limit]
	}

	items := make([]feedItem, 0, len(fetched))
	for i, fr := range fetched {
		playbackURL, err := h.storage.GenerateDownloadURL(r.Context(), fr.fileKey, 1*time.Hour)
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to generate playback URL")
			return
		}
		fr.item.PlaybackURL = playbackURL
		fr.item.CreatedAt = fr.createdAt.Format(time.RFC3339)
		if fr.thumbnailKey != nil {
			fr.item.ThumbnailURL = h.baseURL + "/api/watch/" + fr.item.ShareToken + "/thumbnail"
		}
		if i+1 < len(fetched) {
			fr.item.NextVideoID = fetched[i+1].item.ID
		}
		items = append(items, fr.item)
	}

	httputil.WriteJSON(w, http.StatusOK, feedResponse{Items: items, NextCursor: nextCursor})
}
