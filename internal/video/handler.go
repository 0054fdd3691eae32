package video

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/reelfeed/reelfeed/internal/database"
)

type ObjectStorage interface {
	UploadObject(ctx context.Context, key string, body io.Reader, contentType string) error
	GenerateUploadURL(ctx context.Context, key string, contentType string, contentLength int64, expiry time.Duration) (string, error)
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	GenerateDownloadURLWithDisposition(ctx context.Context, key string, filename string, expiry time.Duration) (string, error)
	DeleteObject(ctx context.Context, key string) error
	HeadObject(ctx context.Context, key string) (int64, string, error)
}

// Publisher fans out change notifications to realtime subscribers. Payloads
// carry only the table and row id; consumers re-fetch what they care about.
type Publisher interface {
	Publish(table, id string)
}

type Handler struct {
	db             database.DBTX
	storage        ObjectStorage
	baseURL        string
	maxUploadBytes int64
	hmacSecret     string
	secureCookies  bool
	publisher      Publisher
	aiEnabled      bool
}

func NewHandler(db database.DBTX, s ObjectStorage, baseURL string, maxUploadBytes int64, hmacSecret string, secureCookies bool) *Handler {
	return &Handler{
		db:             db,
		storage:        s,
		baseURL:        baseURL,
		maxUploadBytes: maxUploadBytes,
		hmacSecret:     hmacSecret,
		secureCookies:  secureCookies,
	}
}

func (h *Handler) SetPublisher(p Publisher) {
	h.publisher = p
}

func (h *Handler) SetAIEnabled(enabled bool) {
	h.aiEnabled = enabled
}

// publish notifies realtime subscribers after a successful write.
func (h *Handler) publish(table, id string) {
	if h.publisher == nil {
		return
	}
	h.publisher.Publish(table, id)
}

func generateShareToken() (string, error) {
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func extensionForContentType(ct string) string {
	switch ct {
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ".mp4"
	}
}

func videoFileKey(userID, shareToken, contentType string) string {
	return fmt.Sprintf("videos/%s/%s%s", userID, shareToken, extensionForContentType(contentType))
}

func thumbnailFileKey(userID, shareToken string) string {
	return fmt.Sprintf("videos/%s/%s_thumb.jpg", userID, shareToken)
}
