package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/reelfeed/reelfeed/internal/auth"
	"github.com/reelfeed/reelfeed/internal/database"
	"github.com/reelfeed/reelfeed/internal/geoip"
	"github.com/reelfeed/reelfeed/internal/httputil"
	"github.com/reelfeed/reelfeed/internal/playback"
	"github.com/reelfeed/reelfeed/internal/profile"
	"github.com/reelfeed/reelfeed/internal/ratelimit"
	"github.com/reelfeed/reelfeed/internal/realtime"
	"github.com/reelfeed/reelfeed/internal/validate"
	"github.com/reelfeed/reelfeed/internal/video"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB               database.DBTX
	Pinger           Pinger
	Storage          video.ObjectStorage
	Geo              *geoip.Resolver
	Hub              *realtime.Hub
	JWTSecret        string
	BaseURL          string
	MaxUploadBytes   int64
	S3PublicEndpoint string
	AIEnabled        bool
}

type Server struct {
	router         chi.Router
	pinger         Pinger
	identity       *auth.Identity
	videoHandler   *video.Handler
	profileHandler *profile.Handler
	prefsHandler   *playback.PreferencesHandler
	socketHandler  *playback.SocketHandler
	hub            *realtime.Hub
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:         cfg.BaseURL,
		StorageEndpoint: cfg.S3PublicEndpoint,
	}))

	s := &Server{router: r, pinger: cfg.Pinger, hub: cfg.Hub}

	if cfg.DB != nil {
		if cfg.JWTSecret == "" {
			log.Fatal("JWT_SECRET is required; set the environment variable")
		}

		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}
		secureCookies := strings.HasPrefix(baseURL, "https://")

		s.identity = auth.New(cfg.JWTSecret)
		s.videoHandler = video.NewHandler(cfg.DB, cfg.Storage, baseURL, cfg.MaxUploadBytes, cfg.JWTSecret, secureCookies)
		s.videoHandler.SetAIEnabled(cfg.AIEnabled)
		if cfg.Hub != nil {
			s.videoHandler.SetPublisher(cfg.Hub)
		}
		s.profileHandler = profile.NewHandler(cfg.DB, cfg.Storage)

		recorder := playback.NewRecorder(cfg.DB, cfg.Geo)
		prefs := playback.NewPreferenceStore(cfg.DB)
		s.prefsHandler = playback.NewPreferencesHandler(prefs)
		s.socketHandler = playback.NewSocketHandler(recorder, prefs, s.identity)
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/limits", s.handleLimits)

	if s.videoHandler == nil {
		return
	}

	// Owner surface, authenticated.
	videoLimiter := ratelimit.NewLimiter(2, 10)
	s.router.Route("/api/videos", func(r chi.Router) {
		r.Use(videoLimiter.Middleware)
		r.Use(s.identity.Middleware)
		r.Post("/", s.videoHandler.Upload)
		r.Get("/", s.videoHandler.List)
		r.Get("/{id}", s.videoHandler.Get)
		r.Patch("/{id}", s.videoHandler.Update)
		r.Delete("/{id}", s.videoHandler.Delete)
		r.Get("/{id}/download", s.videoHandler.Download)
		r.Put("/{id}/comment-mode", s.videoHandler.SetCommentMode)
		r.Put("/{id}/password", s.videoHandler.SetSharePassword)
		r.Delete("/{id}/comments/{commentId}", s.videoHandler.DeleteComment)
		r.Get("/{id}/analytics", s.videoHandler.Analytics)
		r.Get("/{id}/analytics/export", s.videoHandler.AnalyticsExport)
		r.Get("/{id}/metrics", s.videoHandler.Metrics)
	})

	s.router.Route("/api/playlists", func(r chi.Router) {
		r.Use(videoLimiter.Middleware)
		r.Use(s.identity.Middleware)
		r.Post("/", s.videoHandler.CreatePlaylist)
		r.Get("/", s.videoHandler.ListPlaylists)
		r.Get("/{id}", s.videoHandler.GetPlaylist)
		r.Put("/{id}", s.videoHandler.UpdatePlaylist)
		r.Delete("/{id}", s.videoHandler.DeletePlaylist)
		r.Post("/{id}/videos", s.videoHandler.AddPlaylistVideo)
		r.Delete("/{id}/videos/{videoId}", s.videoHandler.RemovePlaylistVideo)
		r.Put("/{id}/order", s.videoHandler.ReorderPlaylist)
	})

	// Public watch surface, share-token addressed.
	watchLimiter := ratelimit.NewLimiter(10, 30)
	s.router.Route("/api/watch/{shareToken}", func(r chi.Router) {
		r.Use(watchLimiter.Middleware)
		r.Get("/", s.videoHandler.Watch)
		r.Get("/thumbnail", s.videoHandler.Thumbnail)
		r.Post("/verify-password", s.videoHandler.VerifyWatchPassword)
		r.Post("/progress", s.videoHandler.Progress)
		r.Put("/reactions/{emoji}", s.videoHandler.AddReaction)
		r.Delete("/reactions/{emoji}", s.videoHandler.RemoveReaction)
		r.Get("/comments", s.videoHandler.ListWatchComments)
		r.Post("/comments", s.videoHandler.PostWatchComment)
	})

	s.router.Get("/api/feed", s.videoHandler.Feed)

	s.router.Route("/api/profiles", func(r chi.Router) {
		r.With(s.identity.Middleware).Patch("/me", s.profileHandler.UpdateMe)
		r.With(s.identity.Middleware).Post("/me/avatar", s.profileHandler.CreateAvatarUpload)
		r.Get("/{id}", s.profileHandler.Get)
	})

	s.router.Get("/api/player/session", s.socketHandler.ServeHTTP)
	s.router.Get("/api/player/preferences", s.prefsHandler.Get)
	s.router.Patch("/api/player/preferences", s.prefsHandler.Patch)

	if s.hub != nil {
		s.router.Get("/api/realtime", s.hub.ServeHTTP)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, validate.FieldLimits())
}
