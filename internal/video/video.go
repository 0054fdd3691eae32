package video

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/validate"
)

type videoItem struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	DescriptionStatus string `json:"descriptionStatus"`
	Duration          int    `json:"duration"`
	ShareToken        string `json:"shareToken"`
	ShareURL          string `json:"shareUrl"`
	Status            string `json:"status"`
	HasPassword       bool   `json:"hasPassword"`
	CommentMode       string `json:"commentMode"`
	Views             int64  `json:"views"`
	ThumbnailURL      string `json:"thumbnailUrl,omitempty"`
	CreatedAt         string `json:"createdAt"`
}

type updateVideoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	rows, err := h.db.Query(r.Context(),
		`SELECT v.id, v.title, v.description, v.description_status, v.duration, v.share_token, v.status,
		        v.share_password IS NOT NULL, v.comment_mode, v.thumbnail_key, v.created_at,
		        (SELECT COUNT(*) FROM video_views vv WHERE vv.video_id = v.id) AS views
		 FROM videos v
		 WHERE v.user_id = $1 AND v.status != 'deleted'
		 ORDER BY v.created_at DESC`,
		userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	defer rows.Close()

	items := make([]videoItem, 0)
	for rows.Next() {
		var item videoItem
		var thumbnailKey *string
		var createdAt time.Time
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.DescriptionStatus,
			&item.Duration, &item.ShareToken, &item.Status, &item.HasPassword, &item.CommentMode,
			&thumbnailKey, &createdAt, &item.Views); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan video")
			return
		}
		item.CreatedAt = createdAt.Format(time.RFC3339)
		item.ShareURL = h.baseURL + "/watch/" + item.ShareToken
		if thumbnailKey != nil {
			item.ThumbnailURL = h.baseURL + "/api/watch/" + item.ShareToken + "/thumbnail"
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read videos")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var item videoItem
	var thumbnailKey *string
	var createdAt time.Time
	err := h.db.QueryRow(r.Context(),
		`SELECT v.id, v.title, v.description, v.description_status, v.duration, v.share_token, v.status,
		        v.share_password IS NOT NULL, v.comment_mode, v.thumbnail_key, v.created_at,
		        (SELECT COUNT(*) FROM video_views vv WHERE vv.video_id = v.id) AS views
		 FROM videos v
		 WHERE v.id = $1 AND v.user_id = $2 AND v.status != 'deleted'`,
		videoID, userID,
	).Scan(&item.ID, &item.Title, &item.Description, &item.DescriptionStatus,
		&item.Duration, &item.ShareToken, &item.Status, &item.HasPassword, &item.CommentMode,
		&thumbnailKey, &createdAt, &item.Views)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	item.CreatedAt = createdAt.Format(time.RFC3339)
	item.ShareURL = h.baseURL + "/watch/" + item.ShareToken
	if thumbnailKey != nil {
		item.ThumbnailURL = h.baseURL + "/api/watch/" + item.ShareToken + "/thumbnail"
	}

	httputil.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var req updateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == nil && req.Description == nil {
		httputil.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if req.Title != nil {
		if *req.Title == "" {
			httputil.WriteError(w, http.StatusBadRequest, "title is required")
			return
		}
		if msg := validate.Title(*req.Title); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		tag, err := h.db.Exec(r.Context(),
			`UPDATE videos SET title = $1, updated_at = now()
			 WHERE id = $2 AND user_id = $3 AND status != 'deleted'`,
			*req.Title, videoID, userID,
		)
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to update video")
			return
		}
		if tag.RowsAffected() == 0 {
			httputil.WriteError(w, http.StatusNotFound, "video not found")
			return
		}
	}

	if req.Description != nil {
		if msg := validate.Description(*req.Description); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		tag, err := h.db.Exec(r.Context(),
			`UPDATE videos SET description = $1, description_status = 'none', updated_at = now()
			 WHERE id = $2 AND user_id = $3 AND status != 'deleted'`,
			*req.Description, videoID, userID,
		)
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to update video")
			return
		}
		if tag.RowsAffected() == 0 {
			httputil.WriteError(w, http.StatusNotFound, "video not found")
			return
		}
	}

	h.publish("videos", videoID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var fileKey string
	var thumbnailKey *string
	err := h.db.QueryRow(r.Context(),
		`UPDATE videos SET status = 'deleted', updated_at = now()
		 WHERE id = $1 AND user_id = $2 AND status != 'deleted'
		 RETURNING file_key, thumbnail_key`,
		videoID, userID,
	).Scan(&fileKey, &thumbnailKey)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	h.publish("videos", videoID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := deleteWithRetry(ctx, h.storage, fileKey, 3); err != nil {
			slog.Error("video: all delete retries failed", "key", fileKey, "error", err)
			return
		}
		if thumbnailKey != nil {
			if err := deleteWithRetry(ctx, h.storage, *thumbnailKey, 3); err != nil {
				slog.Error("video: thumbnail delete failed", "key", *thumbnailKey, "error", err)
			}
		}
		if _, err := h.db.Exec(ctx,
			`UPDATE videos SET file_purged_at = now() WHERE file_key = $1`,
			fileKey,
		); err != nil {
			slog.Error("video: failed to mark file_purged_at", "key", fileKey, "error", err)
		}
	}()

	w.WriteHeader(http.StatusNoContent)
}

type setCommentModeRequest struct {
	CommentMode string `json:"commentMode"`
}

var validCommentModes = map[string]bool{
	"disabled":      true,
	"anonymous":     true,
	"name_required": true,
}

func (h *Handler) SetCommentMode(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var req setCommentModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !validCommentModes[req.CommentMode] {
		httputil.WriteError(w, http.StatusBadRequest, "invalid comment mode")
		return
	}

	tag, err := h.db.Exec(r.Context(),
		`UPDATE videos SET comment_mode = $1 WHERE id = $2 AND user_id = $3`,
		req.CommentMode, videoID, userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "could not update comment mode")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
