package video

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/validate"
)

type postCommentRequest struct {
	AuthorName string `json:"authorName"`
	Body       string `json:"body"`
}

type commentResponse struct {
	ID         string `json:"id"`
	AuthorName string `json:"authorName"`
	Body       string `json:"body"`
	CreatedAt  string `json:"createdAt"`
}

func (h *Handler) watchCommentMode(r *http.Request, videoID string) (string, error) {
	var mode string
	err := h.db.QueryRow(r.Context(),
		`SELECT comment_mode FROM videos WHERE id = $1`, videoID,
	).Scan(&mode)
	return mode, err
}

func (h *Handler) PostWatchComment(w http.ResponseWriter, r *http.Request) {
	videoID, _, ok := h.lookupWatchVideo(w, r)
	if !ok {
		return
	}

	mode, err := h.watchCommentMode(r, videoID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "could not load comment settings")
		return
	}
	if mode == "disabled" {
		httputil.WriteError(w, http.StatusForbidden, "comments are disabled")
		return
	}

	var req postCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Body = strings.TrimSpace(req.Body)
	req.AuthorName = strings.TrimSpace(req.AuthorName)

	if req.Body == "" {
		httputil.WriteError(w, http.StatusBadRequest, "comment body is required")
		return
	}
	if msg := validate.CommentBody(req.Body); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.AuthorName(req.AuthorName); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if mode == "name_required" && req.AuthorName == "" {
		httputil.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	hash := viewerHash(clientIP(r), r.UserAgent())

	var commentID string
	var createdAt time.Time
	err = h.db.QueryRow(r.Context(),
		`INSERT INTO comments (video_id, viewer_hash, author_name, body)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		videoID, hash, req.AuthorName, req.Body,
	).Scan(&commentID, &createdAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Same viewer reposting the identical text is a duplicate submit.
			httputil.WriteError(w, http.StatusConflict, "comment already exists")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "could not save comment")
		return
	}

	h.publish("comments", videoID)

	httputil.WriteJSON(w, http.StatusCreated, commentResponse{
		ID:         commentID,
		AuthorName: req.AuthorName,
		Body:       req.Body,
		CreatedAt:  createdAt.Format(time.RFC3339),
	})
}

type listCommentsResponseBody struct {
	Comments    []commentResponse `json:"comments"`
	CommentMode string            `json:"commentMode"`
}

func (h *Handler) ListWatchComments(w http.ResponseWriter, r *http.Request) {
	videoID, _, ok := h.lookupWatchVideo(w, r)
	if !ok {
		return
	}

	mode, err := h.watchCommentMode(r, videoID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "could not load comment settings")
		return
	}
	if mode == "disabled" {
		httputil.WriteJSON(w, http.StatusOK, listCommentsResponseBody{
			Comments:    []commentResponse{},
			CommentMode: mode,
		})
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT id, author_name, body, created_at
		 FROM comments WHERE video_id = $1
		 ORDER BY created_at ASC`,
		videoID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "could not fetch comments")
		return
	}
	defer rows.Close()

	comments := make([]commentResponse, 0)
	for rows.Next() {
		var c commentResponse
		var createdAt time.Time
		if err := rows.Scan(&c.ID, &c.AuthorName, &c.Body, &createdAt); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "could not scan comment")
			return
		}
		c.CreatedAt = createdAt.Format(time.RFC3339)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "could not read comments")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, listCommentsResponseBody{
		Comments:    comments,
		CommentMode: mode,
	})
}

// DeleteComment removes a comment from one of the owner's videos.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")
	commentID := chi.URLParam(r, "commentId")

	tag, err := h.db.Exec(r.Context(),
		`DELETE FROM comments c USING videos v
		 WHERE c.id = $1 AND c.video_id = $2 AND v.id = c.video_id AND v.user_id = $3`,
		commentID, videoID, userID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "could not delete comment")
		return
	}
	if tag.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "comment not found")
		return
	}

	h.publish("comments", videoID)
	w.WriteHeader(http.StatusNoContent)
}
