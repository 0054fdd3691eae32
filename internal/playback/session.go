// Package playback coordinates video playback across a device's feed: it
// enforces the single-active-player invariant, drives auto-advance once a
// watch threshold is crossed, records view sessions at-most-once per play
// start, and loads durable playback preferences.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const recordTimeout = 30 * time.Second

// Handle controls one mounted, playable video surface. The session holds a
// non-owning reference; the owner must Unregister before tearing the surface
// down.
type Handle interface {
	Pause()
}

// ViewRecorder persists a "viewer started watching" fact. The counted result
// reports whether the optimistic view counter should advance; anonymous
// viewers yield (false, nil) without any write.
type ViewRecorder interface {
	RecordView(ctx context.Context, videoID, viewerID string) (counted bool, err error)
}

// Notifier is the user-notification channel for non-fatal failures.
type Notifier func(message string)

// Session coordinates playback for the lifetime of one feed view on one
// device. It is created when the feed opens and torn down when it closes;
// nothing about it survives a restart.
type Session struct {
	mu       sync.Mutex
	viewerID string
	recorder ViewRecorder
	notify   Notifier
	onCount  func(videoID string, count int64)

	handles map[string]Handle
	playing string
	counts  map[string]int64
}

type SessionOption func(*Session)

// WithNotifier routes recorder failures to the given user-notification channel.
func WithNotifier(n Notifier) SessionOption {
	return func(s *Session) { s.notify = n }
}

// WithCountListener is called whenever an optimistic view counter advances.
func WithCountListener(fn func(videoID string, count int64)) SessionOption {
	return func(s *Session) { s.onCount = fn }
}

func NewSession(viewerID string, recorder ViewRecorder, opts ...SessionOption) *Session {
	s := &Session{
		viewerID: viewerID,
		recorder: recorder,
		handles:  make(map[string]Handle),
		counts:   make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds or replaces the handle for a video. Registering the same id
// twice is not an error; the last handle wins.
func (s *Session) Register(videoID string, h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[videoID] = h
}

// Unregister removes the handle. If the video was the one currently playing,
// the playing marker is cleared; no other video is promoted.
func (s *Session) Unregister(videoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, videoID)
	if s.playing == videoID {
		s.playing = ""
	}
}

// NotifyPlayStarted marks videoID as the active player. The previously
// playing handle, if still registered, is paused before the new one is
// marked, so there is never a window with two active players. The view-record
// side effect runs fire-and-forget; its failure never reaches the caller.
func (s *Session) NotifyPlayStarted(videoID string) {
	s.mu.Lock()
	if s.playing == videoID {
		// Resume of the already-active video: no pause, no second view.
		s.mu.Unlock()
		return
	}
	if s.playing != "" {
		if prev, ok := s.handles[s.playing]; ok {
			prev.Pause()
		}
	}
	s.playing = videoID
	s.mu.Unlock()

	go s.recordView(videoID)
}

func (s *Session) recordView(videoID string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	counted, err := s.recorder.RecordView(ctx, videoID, s.viewerID)
	if err != nil {
		slog.Error("playback: failed to record view", "video_id", videoID, "error", err)
		if s.notify != nil {
			s.notify("view could not be recorded")
		}
		return
	}
	if !counted {
		return
	}

	s.mu.Lock()
	s.counts[videoID]++
	count := s.counts[videoID]
	onCount := s.onCount
	s.mu.Unlock()

	if onCount != nil {
		onCount(videoID, count)
	}
}

// CurrentlyPlaying returns the id of the active video, or "" if none.
func (s *Session) CurrentlyPlaying() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Registered reports whether a handle is held for videoID.
func (s *Session) Registered(videoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handles[videoID]
	return ok
}

// SeedViewCount initializes the optimistic counter from a fetched total.
// Later increments drift ahead of the backing store and are never reconciled.
func (s *Session) SeedViewCount(videoID string, count int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counts[videoID]; !ok {
		s.counts[videoID] = count
	}
}

// ViewCount returns the session-local optimistic view count.
func (s *Session) ViewCount(videoID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[videoID]
}
