package video

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pashagolub/pgxmock/v4"
	"golang.org/x/crypto/bcrypt"
)

func watchRouter(handler *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/watch/{shareToken}", handler.Watch)
	r.Get("/api/watch/{shareToken}/thumbnail", handler.Thumbnail)
	return r
}

func watchQueryRows(sharePassword *string) *pgxmock.Rows {
	thumb := "videos/u1/tok1_thumb.jpg"
	return pgxmock.NewRows([]string{
		"id", "title", "description", "duration", "file_key", "thumbnail_key",
		"share_password", "comment_mode", "user_id", "name", "created_at", "views",
	}).AddRow("video-1", "City ride", "dusk commute", 34, "videos/u1/tok1.mp4", &thumb,
		sharePassword, "anonymous", testUserID, "Avery", time.Now(), int64(120))
}

func TestWatch_ReturnsPlayablePayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	storage := &mockStorage{downloadURL: "https://cdn.example.com/signed/tok1"}
	handler := NewHandler(mock, storage, testBaseURL, 0, testJWTSecret, false)

	mock.ExpectQuery(`FROM videos v\s+JOIN profiles p`).
		WithArgs("tok1").
		WillReturnRows(watchQueryRows(nil))
	mock.ExpectQuery(`SELECT emoji, COUNT\(\*\) FROM reactions`).
		WithArgs("video-1").
		WillReturnRows(pgxmock.NewRows([]string{"emoji", "count"}).
			AddRow("❤️", int64(12)).
			AddRow("🔥", int64(3)))

	rec := httptest.NewRecorder()
	watchRouter(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watch/tok1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp watchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.ID != "video-1" || resp.AuthorName != "Avery" || resp.Views != 120 {
		t.Errorf("unexpected payload: %+v", resp)
	}
	if resp.PlaybackURL != "https://cdn.example.com/signed/tok1" {
		t.Errorf("unexpected playback URL: %q", resp.PlaybackURL)
	}
	if resp.ThumbnailURL != testBaseURL+"/api/watch/tok1/thumbnail" {
		t.Errorf("unexpected thumbnail URL: %q", resp.ThumbnailURL)
	}
	if resp.Reactions["❤️"] != 12 || resp.Reactions["🔥"] != 3 {
		t.Errorf("unexpected reactions: %v", resp.Reactions)
	}
}

func TestWatch_PasswordGateWithoutCookie(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock, &mockStorage{}, testBaseURL, 0, testJWTSecret, false)

	hash, err := bcrypt.GenerateFromPassword([]byte("opensesame"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatal(err)
	}
	hashStr := string(hash)
	mock.ExpectQuery(`FROM videos v\s+JOIN profiles p`).
		WithArgs("tok1").
		WillReturnRows(watchQueryRows(&hashStr))

	rec := httptest.NewRecorder()
	watchRouter(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watch/tok1", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
	if msg := parseErrorResponse(t, rec.Body.Bytes()); msg != "password required" {
		t.Errorf("unexpected error message: %q", msg)
	}
}

func TestWatch_PasswordGateWithCookie(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	storage := &mockStorage{downloadURL: "https://cdn.example.com/signed/tok1"}
	handler := NewHandler(mock, storage, testBaseURL, 0, testJWTSecret, false)

	hash, err := bcrypt.GenerateFromPassword([]byte("opensesame"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatal(err)
	}
	hashStr := string(hash)
	mock.ExpectQuery(`FROM videos v\s+JOIN profiles p`).
		WithArgs("tok1").
		WillReturnRows(watchQueryRows(&hashStr))
	mock.ExpectQuery(`SELECT emoji, COUNT\(\*\) FROM reactions`).
		WithArgs("video-1").
		WillReturnRows(pgxmock.NewRows([]string{"emoji", "count"}))

	req := httptest.NewRequest(http.MethodGet, "/api/watch/tok1", nil)
	req.AddCookie(&http.Cookie{
		Name:  watchCookieName("tok1"),
		Value: signWatchCookie(testJWTSecret, "tok1", hashStr),
	})

	rec := httptest.NewRecorder()
	watchRouter(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestThumbnail_RedirectsToPresignedURL(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	storage := &mockStorage{downloadURL: "https://cdn.example.com/signed/thumb"}
	handler := NewHandler(mock, storage, testBaseURL, 0, testJWTSecret, false)

	thumb := "videos/u1/tok1_thumb.jpg"
	mock.ExpectQuery(`SELECT thumbnail_key FROM videos`).
		WithArgs("tok1").
		WillReturnRows(pgxmock.NewRows([]string{"thumbnail_key"}).AddRow(&thumb))

	rec := httptest.NewRecorder()
	watchRouter(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watch/tok1/thumbnail", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected status %d, got %d", http.StatusFound, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://cdn.example.com/signed/thumb" {
		t.Errorf("unexpected redirect target: %q", loc)
	}
}

func TestThumbnail_MissingThumbnail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock, &mockStorage{}, testBaseURL, 0, testJWTSecret, false)

	mock.ExpectQuery(`SELECT thumbnail_key FROM videos`).
		WithArgs("tok1").
		WillReturnRows(pgxmock.NewRows([]string{"thumbnail_key"}).AddRow(nil))

	rec := httptest.NewRecorder()
	watchRouter(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watch/tok1/thumbnail", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
