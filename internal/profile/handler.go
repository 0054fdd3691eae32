package profile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/database"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/validate"
)

// AvatarStorage covers what the profile handlers need from object storage:
// serving existing avatars and presigning direct uploads for new ones.
type AvatarStorage interface {
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	GenerateUploadURL(ctx context.Context, key string, contentType string, contentLength int64, expiry time.Duration) (string, error)
}

type Handler struct {
	db      database.DBTX
	storage AvatarStorage
}

func NewHandler(db database.DBTX, storage AvatarStorage) *Handler {
	return &Handler{db: db, storage: storage}
}

type profileResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Bio        string `json:"bio"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
	VideoCount int64  `json:"videoCount"`
	CreatedAt  string `json:"createdAt"`
}

// Get returns the public profile for a user id. Only videos that are publicly
// playable count toward the video total.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "id")

	var resp profileResponse
	var avatarKey *string
	var createdAt time.Time
	err := h.db.QueryRow(r.Context(),
		`SELECT p.id, p.name, p.bio, p.avatar_key, p.created_at,
		        (SELECT COUNT(*) FROM videos v
		         WHERE v.user_id = p.id AND v.status = 'ready' AND v.share_password IS NULL) AS video_count
		 FROM profiles p
		 WHERE p.id = $1`,
		profileID,
	).Scan(&resp.ID, &resp.Name, &resp.Bio, &avatarKey, &createdAt, &resp.VideoCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httputil.WriteError(w, http.StatusNotFound, "profile not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}

	resp.CreatedAt = createdAt.Format(time.RFC3339)
	if avatarKey != nil && h.storage != nil {
		if url, err := h.storage.GenerateDownloadURL(r.Context(), *avatarKey, 15*time.Minute); err == nil {
			resp.AvatarURL = url
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

type updateProfileRequest struct {
	Name *string `json:"name"`
	Bio  *string `json:"bio"`
}

// UpdateMe patches the authenticated user's own profile. Absent fields are
// left untouched.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == nil && req.Bio == nil {
		httputil.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			httputil.WriteError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		if msg := validate.ProfileName(name); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		req.Name = &name
	}
	if req.Bio != nil {
		bio := strings.TrimSpace(*req.Bio)
		if msg := validate.ProfileBio(bio); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		req.Bio = &bio
	}

	tag, err := h.db.Exec(r.Context(),
		`UPDATE profiles SET
		    name = COALESCE($1, name),
		    bio = COALESCE($2, bio),
		    updated_at = now()
		 WHERE id = $3`,
		req.Name, req.Bio, userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "profile not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

const maxAvatarBytes = 5 << 20

var allowedAvatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type avatarUploadRequest struct {
	ContentType   string `json:"contentType"`
	ContentLength int64  `json:"contentLength"`
}

type avatarUploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// CreateAvatarUpload presigns a direct upload for the user's avatar and
// records the key. The client PUTs the image to the returned URL itself.
func (h *Handler) CreateAvatarUpload(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req avatarUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ext, ok := allowedAvatarTypes[req.ContentType]
	if !ok {
		httputil.WriteError(w, http.StatusBadRequest, "avatar must be a jpeg, png, or webp image")
		return
	}
	if req.ContentLength <= 0 || req.ContentLength > maxAvatarBytes {
		httputil.WriteError(w, http.StatusBadRequest, "avatar must be between 1 byte and 5 MB")
		return
	}

	key := "avatars/" + userID + ext
	uploadURL, err := h.storage.GenerateUploadURL(r.Context(), key, req.ContentType, req.ContentLength, 15*time.Minute)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate upload URL")
		return
	}

	if _, err := h.db.Exec(r.Context(),
		`UPDATE profiles SET avatar_key = $1, updated_at = now() WHERE id = $2`,
		key, userID,
	); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to save avatar")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, avatarUploadResponse{UploadURL: uploadURL, Key: key})
}
