package video

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/validate"
)

func readFormValue(part *multipart.Part, maxBytes int64) string {
	raw, err := io.ReadAll(io.LimitReader(part, maxBytes))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

var allowedVideoTypes = map[string]bool{
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
}

type uploadResponse struct {
	ID           string `json:"id"`
	ShareToken   string `json:"shareToken"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// discardUpload removes objects stored for a request that will not produce a
// video row. The cleanup loop only sees keys referenced by deleted rows, so
// anything left here would never be reclaimed. Runs on its own context; the
// client may already be gone.
func (h *Handler) discardUpload(fileKey string, thumbnailKey *string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if fileKey != "" {
		if err := deleteWithRetry(ctx, h.storage, fileKey, 3); err != nil {
			slog.Error("upload: failed to discard orphaned file", "key", fileKey, "error", err)
		}
	}
	if thumbnailKey != nil {
		if err := deleteWithRetry(ctx, h.storage, *thumbnailKey, 3); err != nil {
			slog.Error("upload: failed to discard orphaned thumbnail", "key", *thumbnailKey, "error", err)
		}
	}
}

// Upload accepts a multipart upload (video binary plus metadata) and streams
// the file straight to object storage before the row is inserted. A failed
// upload leaves no video row behind and discards whatever was streamed.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "multipart form required")
		return
	}

	shareToken, err := generateShareToken()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate share token")
		return
	}

	var title, description string
	var fileKey, contentType string
	var thumbnailKey *string
	for {
		part, err := reader.NextPart()
		if err != nil {
			break
		}
		switch part.FormName() {
		case "title":
			title = readFormValue(part, 512)
		case "description":
			description = readFormValue(part, 8192)
		case "video":
			contentType = part.Header.Get("Content-Type")
			if !allowedVideoTypes[contentType] {
				h.discardUpload("", thumbnailKey)
				httputil.WriteError(w, http.StatusBadRequest, "only video/mp4, video/webm, and video/quicktime uploads are supported")
				return
			}
			fileKey = videoFileKey(userID, shareToken, contentType)
			if err := h.storage.UploadObject(r.Context(), fileKey, part, contentType); err != nil {
				h.discardUpload("", thumbnailKey)
				httputil.WriteError(w, http.StatusInternalServerError, "failed to store video")
				return
			}
		case "thumbnail":
			k := thumbnailFileKey(userID, shareToken)
			if err := h.storage.UploadObject(r.Context(), k, part, "image/jpeg"); err != nil {
				h.discardUpload(fileKey, nil)
				httputil.WriteError(w, http.StatusInternalServerError, "failed to store thumbnail")
				return
			}
			thumbnailKey = &k
		}
		part.Close()
	}

	if fileKey == "" {
		httputil.WriteError(w, http.StatusBadRequest, "video file is required")
		return
	}

	size, _, err := h.storage.HeadObject(r.Context(), fileKey)
	if err != nil || size <= 0 {
		h.discardUpload(fileKey, thumbnailKey)
		httputil.WriteError(w, http.StatusBadRequest, "could not verify upload")
		return
	}
	if h.maxUploadBytes > 0 && size > h.maxUploadBytes {
		h.discardUpload(fileKey, thumbnailKey)
		httputil.WriteError(w, http.StatusBadRequest, "file too large")
		return
	}

	if title == "" {
		title = "Untitled Video"
	}
	if msg := validate.Title(title); msg != "" {
		h.discardUpload(fileKey, thumbnailKey)
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Description(description); msg != "" {
		h.discardUpload(fileKey, thumbnailKey)
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	descriptionStatus := "none"
	if description == "" && h.aiEnabled {
		descriptionStatus = "pending"
	}

	var videoID string
	err = h.db.QueryRow(r.Context(),
		`INSERT INTO videos (user_id, title, description, description_status, file_size, file_key, thumbnail_key, content_type, share_token, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'ready') RETURNING id`,
		userID, title, description, descriptionStatus, size, fileKey, thumbnailKey, contentType, shareToken,
	).Scan(&videoID)
	if err != nil {
		h.discardUpload(fileKey, thumbnailKey)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create video")
		return
	}

	h.publish("videos", videoID)

	resp := uploadResponse{
		ID:          videoID,
		ShareToken:  shareToken,
		Title:       title,
		Description: description,
	}
	if thumbnailKey != nil {
		resp.ThumbnailURL = h.baseURL + "/api/watch/" + shareToken + "/thumbnail"
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}
