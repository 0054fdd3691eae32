package playback

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func TestRecorder_AnonymousViewerIsNoOp(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	rec := NewRecorder(mock, nil)
	counted, err := rec.RecordView(context.Background(), "video-1", "", ViewMeta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counted {
		t.Error("anonymous view must not count")
	}
	// No database call at all for anonymous viewers.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database activity: %v", err)
	}
}

func TestRecorder_InsertsViewSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO video_views`).
		WithArgs("video-1", "viewer-1", pgxmock.AnyArg(), "direct", "unknown", "unknown", "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := NewRecorder(mock, nil)
	counted, err := rec.RecordView(context.Background(), "video-1", "viewer-1", ViewMeta{IP: "203.0.113.9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !counted {
		t.Error("expected view to count")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestRecorder_DuplicateOpenSessionStillCounts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	// ON CONFLICT DO NOTHING reports zero rows affected for the duplicate.
	mock.ExpectExec(`INSERT INTO video_views`).
		WithArgs("video-1", "viewer-1", pgxmock.AnyArg(), "direct", "unknown", "unknown", "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	rec := NewRecorder(mock, nil)
	counted, err := rec.RecordView(context.Background(), "video-1", "viewer-1", ViewMeta{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !counted {
		t.Error("duplicate open session must be success-equivalent")
	}
}

func TestRecorder_DatabaseError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO video_views`).
		WithArgs("video-1", "viewer-1", pgxmock.AnyArg(), "direct", "unknown", "unknown", "", "").
		WillReturnError(errors.New("connection reset"))

	rec := NewRecorder(mock, nil)
	counted, err := rec.RecordView(context.Background(), "video-1", "viewer-1", ViewMeta{})
	if err == nil {
		t.Fatal("expected error")
	}
	if counted {
		t.Error("failed record must not count")
	}
}

func TestViewMetaFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/player/session", nil)
	r.RemoteAddr = "198.51.100.7:51234"
	r.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)")
	r.Header.Set("Referer", "https://www.google.com/search?q=reelfeed")

	meta := ViewMetaFromRequest(r)
	if meta.IP != "198.51.100.7" {
		t.Errorf("expected IP without port, got %q", meta.IP)
	}
	if meta.Referrer == "" {
		t.Error("expected referrer to be captured")
	}
}

func TestViewMetaFromRequest_ForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/player/session", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	meta := ViewMetaFromRequest(r)
	if meta.IP != "203.0.113.9" {
		t.Errorf("expected first forwarded IP, got %q", meta.IP)
	}
}

func TestCategorizeReferrer(t *testing.T) {
	cases := map[string]string{
		"":                                  "direct",
		"https://www.google.com/search":     "search",
		"https://duckduckgo.com/?q=x":       "search",
		"https://x.com/somebody/status/1":   "social",
		"https://www.reddit.com/r/videos":   "social",
		"https://news.example.com/article":  "other",
	}
	for ref, want := range cases {
		if got := categorizeReferrer(ref); got != want {
			t.Errorf("categorizeReferrer(%q) = %q, want %q", ref, got, want)
		}
	}
}
