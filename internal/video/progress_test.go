package video

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func TestProgress_UpdatesOpenSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock, &mockStorage{}, testBaseURL, 0, testJWTSecret, false)

	watchVideoLookup(mock, "tok123", "video-1")
	mock.ExpectExec(`UPDATE video_views`).
		WithArgs(12.5, 40.0, "video-1", testUserID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	body, _ := json.Marshal(progressRequest{WatchedDuration: 12.5, WatchedPercentage: 40})

	r := chi.NewRouter()
	r.Post("/api/watch/{shareToken}/progress", handler.Progress)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodPost, "/api/watch/tok123/progress", body))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestProgress_AnonymousIsNoOp(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock, &mockStorage{}, testBaseURL, 0, testJWTSecret, false)

	watchVideoLookup(mock, "tok123", "video-1")

	body, _ := json.Marshal(progressRequest{WatchedDuration: 5, WatchedPercentage: 10})

	r := chi.NewRouter()
	r.Post("/api/watch/{shareToken}/progress", handler.Progress)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/watch/tok123/progress", strings.NewReader(string(body))))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rec.Code, rec.Body.String())
	}
	// The anonymous path never touches video_views.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

func TestProgress_RejectsInvalidValues(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock, &mockStorage{}, testBaseURL, 0, testJWTSecret, false)

	watchVideoLookup(mock, "tok123", "video-1")

	body, _ := json.Marshal(progressRequest{WatchedDuration: -1, WatchedPercentage: 10})

	r := chi.NewRouter()
	r.Post("/api/watch/{shareToken}/progress", handler.Progress)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authenticatedRequest(t, http.MethodPost, "/api/watch/tok123/progress", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
	}
}
