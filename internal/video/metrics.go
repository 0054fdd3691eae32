package video

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/database"
	"github.com/reelfeed/reelfeed/internal/httputil"
)

type metricsRow struct {
	Day                  string  `json:"day"`
	Views                int64   `json:"views"`
	UniqueViewers        int64   `json:"uniqueViewers"`
	AvgWatchedPercentage float64 `json:"avgWatchedPercentage"`
	Completions          int64   `json:"completions"`
}

// Metrics returns the rolled-up daily performance rows for one video.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	videoID := chi.URLParam(r, "id")

	if !h.ownsVideo(r, videoID, userID) {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	rows, err := h.db.Query(r.Context(),
		`SELECT day, views, unique_viewers, avg_watched_percentage, completions
		 FROM performance_metrics
		 WHERE video_id = $1
		 ORDER BY day DESC
		 LIMIT 90`,
		videoID,
	)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to query metrics")
		return
	}
	defer rows.Close()

	items := make([]metricsRow, 0)
	for rows.Next() {
		var m metricsRow
		var day time.Time
		if err := rows.Scan(&day, &m.Views, &m.UniqueViewers, &m.AvgWatchedPercentage, &m.Completions); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to scan metrics")
			return
		}
		m.Day = day.Format("2006-01-02")
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read metrics")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, items)
}

// RollupDailyMetrics recomputes performance_metrics for the current and
// previous day. The upsert makes reruns harmless.
func RollupDailyMetrics(ctx context.Context, db database.DBTX) {
	since := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -1)

	if _, err := db.Exec(ctx,
		`INSERT INTO performance_metrics (video_id, day, views, unique_viewers, avg_watched_percentage, completions, computed_at)
		 SELECT video_id,
		        date_trunc('day', created_at)::date AS day,
		        COUNT(*),
		        COUNT(DISTINCT viewer_hash),
		        COALESCE(AVG(watched_percentage), 0),
		        COUNT(*) FILTER (WHERE watched_percentage >= 100),
		        now()
		 FROM video_views
		 WHERE created_at >= $1
		 GROUP BY video_id, day
		 ON CONFLICT (video_id, day) DO UPDATE SET
		        views = EXCLUDED.views,
		        unique_viewers = EXCLUDED.unique_viewers,
		        avg_watched_percentage = EXCLUDED.avg_watched_percentage,
		        completions = EXCLUDED.completions,
		        computed_at = now()`,
		since,
	); err != nil {
		slog.Error("metrics-worker: rollup failed", "error", err)
	}
}

func StartMetricsWorker(ctx context.Context, db database.DBTX, interval time.Duration) {
	go func() {
		slog.Info("metrics-worker: started")
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("metrics-worker: shutting down")
				return
			case <-ticker.C:
				RollupDailyMetrics(ctx, db)
			}
		}
	}()
}
