package playback

import (
	"encoding/json"
	"net/http"

	"github.com/reelfeed/reelfeed/internal/httputil"
)

// PreferencesHandler exposes the device preference document over HTTP for
// clients that are not holding a player socket open.
type PreferencesHandler struct {
	store *PreferenceStore
}

func NewPreferencesHandler(store *PreferenceStore) *PreferencesHandler {
	return &PreferencesHandler{store: store}
}

func deviceIDFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	deviceID := r.URL.Query().Get("device")
	if deviceID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "device query parameter is required")
		return "", false
	}
	return deviceID, true
}

func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceIDFromRequest(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.store.Load(r.Context(), deviceID))
}

type patchPreferencesRequest struct {
	Volume          *float64 `json:"volume"`
	PlaybackSpeed   *float64 `json:"playbackSpeed"`
	AutoScroll      *bool    `json:"autoScroll"`
	ScrollThreshold *float64 `json:"scrollThreshold"`
	ScrollSpeed     *int     `json:"scrollSpeed"`
}

// Patch applies the submitted fields one at a time through the store, so each
// change persists the full document just as the socket path does.
func (h *PreferencesHandler) Patch(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceIDFromRequest(w, r)
	if !ok {
		return
	}

	var req patchPreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Volume == nil && req.PlaybackSpeed == nil && req.AutoScroll == nil &&
		req.ScrollThreshold == nil && req.ScrollSpeed == nil {
		httputil.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	prefs := h.store.Load(r.Context(), deviceID)
	var err error
	if req.Volume != nil {
		prefs, err = h.store.SetVolume(r.Context(), deviceID, *req.Volume)
	}
	if err == nil && req.PlaybackSpeed != nil {
		prefs, err = h.store.SetPlaybackSpeed(r.Context(), deviceID, *req.PlaybackSpeed)
	}
	if err == nil && req.AutoScroll != nil {
		prefs, err = h.store.SetAutoScroll(r.Context(), deviceID, *req.AutoScroll)
	}
	if err == nil && req.ScrollThreshold != nil {
		prefs, err = h.store.SetScrollThreshold(r.Context(), deviceID, *req.ScrollThreshold)
	}
	if err == nil && req.ScrollSpeed != nil {
		prefs, err = h.store.SetScrollSpeed(r.Context(), deviceID, *req.ScrollSpeed)
	}
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, prefs)
}
