package video

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/validate"
)

type playlistItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	VideoCount  int64  `json:"videoCount"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type playlistVideoItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Duration     int    `json:"duration"`
	ShareToken   string `json:"shareToken"`
	Status       string `json:"status"`
	Position     int    `json:"position"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

type playlistDetail struct {
	playlistItem
	Videos []playlistVideoItem `json:"videos"`
}

type playlistRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *Handler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		httputil.WriteError(w, http.StatusBadRequest, "playlist title is required")
		return
	}
	if msg := validate.PlaylistTitle(title); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	description := strings.TrimSpace(req.Description)
	if msg := validate.PlaylistDescription(description); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	var item playlistItem
	var createdAt, updatedAt time.Time
	err := h.db.QueryRow(r.Context(),
		`INSERT INTO playlists (user_id, title, description)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		userID, title, description,
	).Scan(&item.ID, &createdAt, &updatedAt)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create playlist")
		return
	}

	item.Title = title
	item.Description = description
	item.CreatedAt = createdAt.Format(time.RFC3339)
	item.UpdatedAt = updatedAt.Format(time.RFC3339)

	h.publish("playlists", item.ID)
	httputil.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	rows, err := h.db.Query(r.Context(),
		`SELECT p.id, p.title, p.description, p.created_at, p.updated_at,
		        (SELECT COUNT(*) FROM playlist_videos pv WHERE pv.playlist_id = p.id) AS video_count
		 FROM playlists p
		 WHERE p.user_id = $1
		 ORDER BY p.created_at DESC`,
		userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list playlists")
		return
	}
	defer rows.Close()

	items := make([]playlistItem, 0)
	for rows.Next() {
		var item playlistItem
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &createdAt, &updatedAt, &item.VideoCount); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan playlist")
			return
		}
		item.CreatedAt = createdAt.Format(time.RFC3339)
		item.UpdatedAt = updatedAt.Format(time.RFC3339)
		items = append(items, item)
	}

	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	playlistID := chi.URLParam(r, "id")

	var detail playlistDetail
	var createdAt, updatedAt time.Time
	err := h.db.QueryRow(r.Context(),
		`SELECT p.id, p.title, p.description, p.created_at, p.updated_at
		 FROM playlists p
		 WHERE p.id = $1 AND p.user_id = $2`,
		playlistID, userID,
	).Scan(&detail.ID, &detail.Title, &detail.Description, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httputil.WriteError(w, http.StatusNotFound, "playlist not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to get playlist")
		return
	}

	detail.CreatedAt = createdAt.Format(time.RFC3339)
	detail.UpdatedAt = updatedAt.Format(time.RFC3339)

	rows, err := h.db.Query(r.Context(),
		`SELECT v.id, v.title, v.duration, v.share_token, v.status, v.thumbnail_key, v.created_at, pv.position
		 FROM playlist_videos pv
		 JOIN videos v ON v.id = pv.video_id AND v.status != 'deleted'
		 WHERE pv.playlist_id = $1
		 ORDER BY pv.position, v.created_at`,
		playlistID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list playlist videos")
		return
	}
	defer rows.Close()

	detail.Videos = make([]playlistVideoItem, 0)
	for rows.Next() {
		var v playlistVideoItem
		var thumbnailKey *string
		var videoCreatedAt time.Time
		if err := rows.Scan(&v.ID, &v.Title, &v.Duration, &v.ShareToken, &v.Status, &thumbnailKey, &videoCreatedAt, &v.Position); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan playlist video")
			return
		}
		v.CreatedAt = videoCreatedAt.Format(time.RFC3339)
		if thumbnailKey != nil {
			v.ThumbnailURL = h.baseURL + "/api/watch/" + v.ShareToken + "/thumbnail"
		}
		detail.Videos = append(detail.Videos, v)
	}

	detail.VideoCount = int64(len(detail.Videos))
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) UpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	playlistID := chi.URLParam(r, "id")

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		httputil.WriteError(w, http.StatusBadRequest, "playlist title is required")
		return
	}
	if msg := validate.PlaylistTitle(title); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	description := strings.TrimSpace(req.Description)
	if msg := validate.PlaylistDescription(description); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	tag, err := h.db.Exec(r.Context(),
		`UPDATE playlists SET title = $1, description = $2, updated_at = now()
		 WHERE id = $3 AND user_id = $4`,
		title, description, playlistID, userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update playlist")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "playlist not found")
		return
	}

	h.publish("playlists", playlistID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	playlistID := chi.URLParam(r, "id")

	tag, err := h.db.Exec(r.Context(),
		`DELETE FROM playlists WHERE id = $1 AND user_id = $2`,
		playlistID, userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete playlist")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "playlist not found")
		return
	}

	h.publish("playlists", playlistID)
	w.WriteHeader(http.StatusNoContent)
}

type addPlaylistVideoRequest struct {
	VideoID string `json:"videoId"`
}

func (h *Handler) AddPlaylistVideo(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	playlistID := chi.URLParam(r, "id")

	var req addPlaylistVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VideoID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "videoId is required")
		return
	}

	// Ownership of both the playlist and the video is checked in one insert.
	tag, err := h.db.Exec(r.Context(),
		`INSERT INTO playlist_videos (playlist_id, video_id, position)
		 SELECT p.id, v.id, (SELECT COALESCE(MAX(position), -1) + 1 FROM playlist_videos WHERE playlist_id = p.id)
		 FROM playlists p, videos v
		 WHERE p.id = $1 AND p.user_id = $2 AND v.id = $3 AND v.user_id = $2 AND v.status != 'deleted'
		 ON CONFLICT DO NOTHING`,
		playlistID, userID, req.VideoID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to add video to playlist")
		return
	}
	if tag.RowsAffected() == 0 {
		// Either not found or already a member; membership is idempotent.
		var exists bool
		if err := h.db.QueryRow(r.Context(),
			`SELECT EXISTS (SELECT 1 FROM playlist_videos WHERE playlist_id = $1 AND video_id = $2)`,
			playlistID, req.VideoID,
		).Scan(&exists); err != nil || !exists {
			httputil.WriteError(w, http.StatusNotFound, "playlist or video not found")
			return
		}
	}

	h.publish("playlists", playlistID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemovePlaylistVideo(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	playlistID := chi.URLParam(r, "id")
	videoID := chi.URLParam(r, "videoId")

	tag, err := h.db.Exec(r.Context(),
		`DELETE FROM playlist_videos pv USING playlists p
		 WHERE pv.playlist_id = $1 AND pv.video_id = $2 AND p.id = pv.playlist_id AND p.user_id = $3`,
		playlistID, videoID, userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to remove video from playlist")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "playlist video not found")
		return
	}

	h.publish("playlists", playlistID)
	w.WriteHeader(http.StatusNoContent)
}

type reorderPlaylistRequest struct {
	VideoIDs []string `json:"videoIds"`
}

// ReorderPlaylist rewrites positions to match the submitted order. Videos not
// listed keep their relative order after the listed ones.
func (h *Handler) ReorderPlaylist(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	playlistID := chi.URLParam(r, "id")

	var req reorderPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.VideoIDs) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "videoIds is required")
		return
	}

	var owned bool
	if err := h.db.QueryRow(r.Context(),
		`SELECT EXISTS (SELECT 1 FROM playlists WHERE id = $1 AND user_id = $2)`,
		playlistID, userID,
	).Scan(&owned); err != nil || !owned {
		httputil.WriteError(w, http.StatusNotFound, "playlist not found")
		return
	}

	for i, videoID := range req.VideoIDs {
		if _, err := h.db.Exec(r.Context(),
			`UPDATE playlist_videos SET position = $1 WHERE playlist_id = $2 AND video_id = $3`,
			i, playlistID, videoID,
		); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to reorder playlist")
			return
		}
	}

	h.publish("playlists", playlistID)
	w.WriteHeader(http.StatusNoContent)
}
