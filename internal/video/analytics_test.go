package video

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func analyticsRouter(handler *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/videos/{id}", func(r chi.Router) {
		r.Use(newAuthMiddleware())
		r.Get("/analytics", handler.Analytics)
		r.Get("/analytics/export", handler.AnalyticsExport)
	})
	return r
}

func expectOwnsVideo(mock pgxmock.PgxPoolIface, videoID string) {
	mock.ExpectQuery(`SELECT id FROM videos WHERE id = \$1 AND user_id = \$2`).
		WithArgs(videoID, testUserID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(videoID))
}

func TestAnalytics_ZeroFillsRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock, &mockStorage{}, testBaseURL, 0, testJWTSecret, false)

	expectOwnsVideo(mock, "video-1")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	mock.ExpectQuery(`GROUP BY day ORDER BY day`).
		WithArgs("video-1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"day", "views", "unique_views"}).
			AddRow(today.AddDate(0, 0, -2), int64(10), int64(7)).
			AddRow(today, int64(4), int64(3)))
	mock.ExpectQuery(`SELECT COALESCE\(AVG\(watched_percentage\), 0\)`).
		WithArgs("video-1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"avg"}).AddRow(62.34))
	for range 3 {
		mock.ExpectQuery(`GROUP BY .* ORDER BY cnt DESC`).
			WithArgs("video-1", pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"name", "cnt"}).
				AddRow("direct", int64(9)).
				AddRow("social", int64(5)))
	}

	rec := httptest.NewRecorder()
	analyticsRouter(handler).ServeHTTP(rec,
		authenticatedRequest(t, http.MethodGet, "/api/videos/video-1/analytics?range=7d", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp analyticsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Daily) != 7 {
		t.Fatalf("expected 7 daily entries for range=7d, got %d", len(resp.Daily))
	}
	if resp.Daily[6].Date != today.Format("2006-01-02") || resp.Daily[6].Views != 4 {
		t.Errorf("unexpected last entry: %+v", resp.Daily[6])
	}
	if resp.Daily[5].Views != 0 {
		t.Errorf("day without views should zero-fill, got %+v", resp.Daily[5])
	}
	if resp.Summary.TotalViews != 14 || resp.Summary.ViewsToday != 4 {
		t.Errorf("unexpected summary: %+v", resp.Summary)
	}
	if resp.Summary.PeakDayViews != 10 {
		t.Errorf("expected peak of 10 views, got %d", resp.Summary.PeakDayViews)
	}
	if resp.Summary.AvgCompletion != 62.3 {
		t.Errorf("expected avg completion 62.3, got %v", resp.Summary.AvgCompletion)
	}
	if len(resp.Referrers) != 2 || resp.Referrers[0].Percentage != 64.3 {
		t.Errorf("unexpected referrer breakdown: %+v", resp.Referrers)
	}
}

func TestAnalytics_InvalidRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock, &mockStorage{}, testBaseURL, 0, testJWTSecret, false)

	expectOwnsVideo(mock, "video-1")

	rec := httptest.NewRecorder()
	analyticsRouter(handler).ServeHTTP(rec,
		authenticatedRequest(t, http.MethodGet, "/api/videos/video-1/analytics?range=14d", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestComputeSummary(t *testing.T) {
	daily := []dailyViews{
		{Date: "2026-08-29", Views: 6, UniqueViews: 4},
		{Date: "2026-08-30", Views: 12, UniqueViews: 9},
		{Date: "2026-08-31", Views: 3, UniqueViews: 2},
	}

	s := computeSummary(daily, "2026-08-31")

	if s.TotalViews != 21 || s.UniqueViews != 15 {
		t.Errorf("unexpected totals: %+v", s)
	}
	if s.ViewsToday != 3 {
		t.Errorf("expected 3 views today, got %d", s.ViewsToday)
	}
	if s.PeakDay != "2026-08-30" || s.PeakDayViews != 12 {
		t.Errorf("unexpected peak: %s/%d", s.PeakDay, s.PeakDayViews)
	}
	if s.AverageDailyViews != 7.0 {
		t.Errorf("expected average 7.0, got %v", s.AverageDailyViews)
	}
}

func TestAnalyticsExport_CSV(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewHandler(mock, &mockStorage{}, testBaseURL, 0, testJWTSecret, false)

	expectOwnsVideo(mock, "video-1")

	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`GROUP BY day ORDER BY day`).
		WithArgs("video-1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"day", "views", "unique_views"}).
			AddRow(day, int64(10), int64(7)))

	rec := httptest.NewRecorder()
	analyticsRouter(handler).ServeHTTP(rec,
		authenticatedRequest(t, http.MethodGet, "/api/videos/video-1/analytics/export", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected text/csv, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "analytics.csv") {
		t.Errorf("unexpected disposition: %q", cd)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || lines[0] != "Date,Views,Unique Views" || lines[1] != "2026-08-30,10,7" {
		t.Errorf("unexpected CSV body: %q", rec.Body.String())
	}
}

func TestParseRangeDays(t *testing.T) {
	cases := map[string]int{"7d": 7, "30d": 30, "90d": 90, "all": 0, "": 7}
	for param, want := range cases {
		target := "/api/videos/video-1/analytics"
		if param != "" {
			target += "?range=" + param
		}
		r := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		got, ok := parseRangeDays(rec, r)
		if !ok || got != want {
			t.Errorf("range %q: expected %d, got %d (ok=%v)", param, want, got, ok)
		}
	}
}
