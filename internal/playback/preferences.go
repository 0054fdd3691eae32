package playback

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reelfeed/reelfeed/internal/database"
)

// Preferences are playback settings keyed by device, not by user. The full
// object is persisted on every change.
type Preferences struct {
	Volume          float64 `json:"volume"`
	PlaybackSpeed   float64 `json:"playbackSpeed"`
	AutoScroll      bool    `json:"autoScroll"`
	ScrollThreshold float64 `json:"scrollThreshold"`
	ScrollSpeed     int     `json:"scrollSpeed"` // milliseconds
}

// AllowedSpeeds is the speed-selector widget's value set. Values are not
// enforced server-side; clients are expected to pick from fixed controls.
var AllowedSpeeds = []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 1.75, 2}

func DefaultPreferences() Preferences {
	return Preferences{
		Volume:          1,
		PlaybackSpeed:   1,
		AutoScroll:      true,
		ScrollThreshold: 0.8,
		ScrollSpeed:     1000,
	}
}

// PreferenceStore persists per-device playback preferences. The stored row is
// one JSON document; an absent or unparseable row loads as the full default
// object, never a partial merge and never an error.
type PreferenceStore struct {
	db database.DBTX
}

func NewPreferenceStore(db database.DBTX) *PreferenceStore {
	return &PreferenceStore{db: db}
}

func (s *PreferenceStore) Load(ctx context.Context, deviceID string) Preferences {
	var raw string
	err := s.db.QueryRow(ctx,
		`SELECT prefs FROM player_preferences WHERE device_id = $1`,
		deviceID,
	).Scan(&raw)
	if err != nil {
		return DefaultPreferences()
	}

	var p Preferences
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return DefaultPreferences()
	}
	return p
}

func (s *PreferenceStore) SetVolume(ctx context.Context, deviceID string, volume float64) (Preferences, error) {
	return s.apply(ctx, deviceID, func(p *Preferences) { p.Volume = volume })
}

func (s *PreferenceStore) SetPlaybackSpeed(ctx context.Context, deviceID string, speed float64) (Preferences, error) {
	return s.apply(ctx, deviceID, func(p *Preferences) { p.PlaybackSpeed = speed })
}

func (s *PreferenceStore) SetAutoScroll(ctx context.Context, deviceID string, enabled bool) (Preferences, error) {
	return s.apply(ctx, deviceID, func(p *Preferences) { p.AutoScroll = enabled })
}

func (s *PreferenceStore) SetScrollThreshold(ctx context.Context, deviceID string, threshold float64) (Preferences, error) {
	return s.apply(ctx, deviceID, func(p *Preferences) { p.ScrollThreshold = threshold })
}

func (s *PreferenceStore) SetScrollSpeed(ctx context.Context, deviceID string, ms int) (Preferences, error) {
	return s.apply(ctx, deviceID, func(p *Preferences) { p.ScrollSpeed = ms })
}

// apply loads the current preferences, mutates one field, and persists the
// whole object immediately.
func (s *PreferenceStore) apply(ctx context.Context, deviceID string, mutate func(*Preferences)) (Preferences, error) {
	p := s.Load(ctx, deviceID)
	mutate(&p)

	raw, err := json.Marshal(p)
	if err != nil {
		return p, fmt.Errorf("marshal preferences: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO player_preferences (device_id, prefs) VALUES ($1, $2)
		 ON CONFLICT (device_id) DO UPDATE SET prefs = EXCLUDED.prefs, updated_at = now()`,
		deviceID, string(raw),
	)
	if err != nil {
		return p, fmt.Errorf("persist preferences: %w", err)
	}
	return p, nil
}
