package video

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/httputil"
)

// downloadFilename turns a video title into something safe for a
// Content-Disposition header.
func downloadFilename(title, contentType string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '-'
		default:
			return -1
		}
	}, title)
	name = strings.Trim(name, "-")
	if name == "" {
		name = "video"
	}
	return name + extensionForContentType(contentType)
}

// Download redirects the owner to a presigned URL that serves the original
// file as an attachment.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	var fileKey, title, contentType string
	err := h.db.QueryRow(r.Context(),
		`SELECT file_key, title, content_type FROM videos
		 WHERE id = $1 AND user_id = $2 AND status != 'deleted'`,
		videoID, userID,
	).Scan(&fileKey, &title, &contentType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httputil.WriteError(w, http.StatusNotFound, "video not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to get video")
		return
	}

	url, err := h.storage.GenerateDownloadURLWithDisposition(r.Context(), fileKey, downloadFilename(title, contentType), 1*time.Hour)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate download URL")
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}
