package playback

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
	"github.com/reelfeed/reelfeed/internal/database"
	"github.com/reelfeed/reelfeed/internal/geoip"
)

// ViewMeta is the request-scoped context attached to every recorded view.
type ViewMeta struct {
	IP        string
	UserAgent string
	Referrer  string
}

// ViewMetaFromRequest captures recorder metadata from the HTTP request that
// opened the session.
func ViewMetaFromRequest(r *http.Request) ViewMeta {
	return ViewMeta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  r.Header.Get("Referer"),
	}
}

// Recorder writes view sessions to the database. A uniqueness conflict (the
// viewer already has an open session for the video) is success-equivalent:
// the intent is at-most-one-open-session, not strict exactly-once.
type Recorder struct {
	db  database.DBTX
	geo *geoip.Resolver
}

func NewRecorder(db database.DBTX, geo *geoip.Resolver) *Recorder {
	return &Recorder{db: db, geo: geo}
}

// RecordView inserts a session-started marker with zero watched duration and
// percentage. Anonymous viewers are a documented no-op: no write, no counter.
func (r *Recorder) RecordView(ctx context.Context, videoID, viewerID string, meta ViewMeta) (bool, error) {
	if viewerID == "" {
		return false, nil
	}

	country, city := r.geo.Lookup(meta.IP)
	_, err := r.db.Exec(ctx,
		`INSERT INTO video_views (video_id, viewer_id, viewer_hash, referrer, browser, device, country, city)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT DO NOTHING`,
		videoID, viewerID, viewerHash(meta.IP, meta.UserAgent),
		categorizeReferrer(meta.Referrer), parseBrowser(meta.UserAgent), parseDevice(meta.UserAgent),
		country, city,
	)
	if err != nil {
		return false, fmt.Errorf("insert view session: %w", err)
	}
	return true, nil
}

// Bind fixes the request metadata so the result satisfies ViewRecorder.
func (r *Recorder) Bind(meta ViewMeta) ViewRecorder {
	return boundRecorder{rec: r, meta: meta}
}

type boundRecorder struct {
	rec  *Recorder
	meta ViewMeta
}

func (b boundRecorder) RecordView(ctx context.Context, videoID, viewerID string) (bool, error) {
	return b.rec.RecordView(ctx, videoID, viewerID, b.meta)
}

func viewerHash(ip, ua string) string {
	h := sha256.Sum256([]byte(ip + "|" + ua))
	return fmt.Sprintf("%x", h[:8])
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

func parseBrowser(ua string) string {
	if ua == "" {
		return "unknown"
	}
	name, _ := useragent.New(ua).Browser()
	if name == "" {
		return "unknown"
	}
	return name
}

func parseDevice(ua string) string {
	if ua == "" {
		return "unknown"
	}
	if useragent.New(ua).Mobile() {
		return "mobile"
	}
	return "desktop"
}

func categorizeReferrer(ref string) string {
	if ref == "" {
		return "direct"
	}
	lowered := strings.ToLower(ref)
	switch {
	case strings.Contains(lowered, "google."):
		return "search"
	case strings.Contains(lowered, "bing.") || strings.Contains(lowered, "duckduckgo."):
		return "search"
	case strings.Contains(lowered, "twitter.") || strings.Contains(lowered, "x.com"):
		return "social"
	case strings.Contains(lowered, "facebook.") || strings.Contains(lowered, "instagram.") || strings.Contains(lowered, "tiktok."):
		return "social"
	case strings.Contains(lowered, "linkedin.") || strings.Contains(lowered, "reddit."):
		return "social"
	default:
		return "other"
	}
}
