package video

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/httputil"
)

type analyticsSummary struct {
	TotalViews        int64   `json:"totalViews"`
	UniqueViews       int64   `json:"uniqueViews"`
	ViewsToday        int64   `json:"viewsToday"`
	AverageDailyViews float64 `json:"averageDailyViews"`
	PeakDay           string  `json:"peakDay"`
	PeakDayViews      int64   `json:"peakDayViews"`
	AvgCompletion     float64 `json:"avgCompletion"`
}

type dailyViews struct {
	Date        string `json:"date"`
	Views       int64  `json:"views"`
	UniqueViews int64  `json:"uniqueViews"`
}

type breakdownItem struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

type analyticsResponse struct {
	Summary   analyticsSummary `json:"summary"`
	Daily     []dailyViews     `json:"daily"`
	Referrers []breakdownItem  `json:"referrers"`
	Browsers  []breakdownItem  `json:"browsers"`
	Devices   []breakdownItem  `json:"devices"`
}

func parseRangeDays(w http.ResponseWriter, r *http.Request) (int, bool) {
	rangeParam := r.URL.Query().Get("range")
	if rangeParam == "" {
		rangeParam = "7d"
	}
	switch rangeParam {
	case "7d":
		return 7, true
	case "30d":
		return 30, true
	case "90d":
		return 90, true
	case "all":
		return 0, true
	default:
		httputil.WriteError(w, http.StatusBadRequest, "invalid range: must be 7d, 30d, 90d, or all")
		return 0, false
	}
}

func rangeSince(now time.Time, days int) time.Time {
	if days > 0 {
		return now.AddDate(0, 0, -(days - 1))
	}
	return time.Time{}
}

func (h *Handler) ownsVideo(r *http.Request, videoID, userID string) bool {
	var id string
	err := h.db.QueryRow(r.Context(),
		`SELECT id FROM videos WHERE id = $1 AND user_id = $2 AND status != 'deleted'`,
		videoID, userID,
	).Scan(&id)
	return err == nil
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	if !h.ownsVideo(r, videoID, userID) {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	days, ok := parseRangeDays(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	since := rangeSince(now, days)

	rows, err := h.db.Query(r.Context(),
		`SELECT date_trunc('day', created_at)::date AS day, COUNT(*) AS views, COUNT(DISTINCT viewer_hash) AS unique_views
		 FROM video_views WHERE video_id = $1 AND created_at >= $2
		 GROUP BY day ORDER BY day`,
		videoID, since,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to query analytics")
		return
	}
	defer rows.Close()

	dataByDate := make(map[string]dailyViews)
	for rows.Next() {
		var day time.Time
		var views, uniqueViews int64
		if err := rows.Scan(&day, &views, &uniqueViews); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan analytics")
			return
		}
		dateStr := day.Format("2006-01-02")
		dataByDate[dateStr] = dailyViews{Date: dateStr, Views: views, UniqueViews: uniqueViews}
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read analytics")
		return
	}

	daily := make([]dailyViews, 0)
	if days > 0 {
		for i := days - 1; i >= 0; i-- {
			dateStr := now.AddDate(0, 0, -i).Format("2006-01-02")
			if entry, ok := dataByDate[dateStr]; ok {
				daily = append(daily, entry)
			} else {
				daily = append(daily, dailyViews{Date: dateStr})
			}
		}
	} else {
		for _, entry := range dataByDate {
			daily = append(daily, entry)
		}
		sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })
	}

	var avgCompletion float64
	_ = h.db.QueryRow(r.Context(),
		`SELECT COALESCE(AVG(watched_percentage), 0) FROM video_views
		 WHERE video_id = $1 AND created_at >= $2`,
		videoID, since,
	).Scan(&avgCompletion)

	summary := computeSummary(daily, now.Format("2006-01-02"))
	summary.AvgCompletion = math.Round(avgCompletion*10) / 10

	httputil.WriteJSON(w, http.StatusOK, analyticsResponse{
		Summary:   summary,
		Daily:     daily,
		Referrers: h.viewBreakdown(r, videoID, since, "referrer"),
		Browsers:  h.viewBreakdown(r, videoID, since, "browser"),
		Devices:   h.viewBreakdown(r, videoID, since, "device"),
	})
}

func computeSummary(daily []dailyViews, today string) analyticsSummary {
	var s analyticsSummary
	for _, d := range daily {
		s.TotalViews += d.Views
		s.UniqueViews += d.UniqueViews
		if d.Date == today {
			s.ViewsToday = d.Views
		}
		if d.Views > s.PeakDayViews {
			s.PeakDayViews = d.Views
			s.PeakDay = d.Date
		}
	}
	if len(daily) > 0 {
		s.AverageDailyViews = math.Round(float64(s.TotalViews)/float64(len(daily))*10) / 10
	}
	return s
}

// viewBreakdown groups views in the range by one of the categorical columns
// and returns percentage shares, largest first.
func (h *Handler) viewBreakdown(r *http.Request, videoID string, since time.Time, column string) []breakdownItem {
	items := make([]breakdownItem, 0)

	rows, err := h.db.Query(r.Context(),
		fmt.Sprintf(`SELECT %s, COUNT(*) AS cnt
		 FROM video_views WHERE video_id = $1 AND created_at >= $2
		 GROUP BY %s ORDER BY cnt DESC`, column, column),
		videoID, since,
	)
	if err != nil {
		return items
	}
	defer rows.Close()

	type countedItem struct {
		name  string
		count int64
	}
	var counts []countedItem
	var total int64
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err == nil {
			counts = append(counts, countedItem{name, count})
			total += count
		}
	}
	if total > 0 {
		for _, c := range counts {
			items = append(items, breakdownItem{
				Name:       c.name,
				Percentage: math.Round(float64(c.count)/float64(total)*1000) / 10,
			})
		}
	}
	return items
}

func (h *Handler) AnalyticsExport(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	if !h.ownsVideo(r, videoID, userID) {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	days, ok := parseRangeDays(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	since := rangeSince(now, days)

	rows, err := h.db.Query(r.Context(),
		`SELECT date_trunc('day', created_at)::date AS day, COUNT(*) AS views, COUNT(DISTINCT viewer_hash) AS unique_views
		 FROM video_views WHERE video_id = $1 AND created_at >= $2
		 GROUP BY day ORDER BY day`,
		videoID, since,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to query")
		return
	}
	defer rows.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=analytics.csv")
	fmt.Fprintln(w, "Date,Views,Unique Views")
	for rows.Next() {
		var day time.Time
		var views, uv int64
		if err := rows.Scan(&day, &views, &uv); err == nil {
			fmt.Fprintf(w, "%s,%d,%d\n", day.Format("2006-01-02"), views, uv)
		}
	}
}
