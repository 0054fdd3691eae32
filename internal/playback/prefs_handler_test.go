package playback

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

func TestPreferencesHandler_GetRequiresDevice(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewPreferencesHandler(NewPreferenceStore(mock))

	rec := httptest.NewRecorder()
	handler.Get(rec, httptest.NewRequest(http.MethodGet, "/api/player/preferences", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestPreferencesHandler_GetReturnsDefaultsForNewDevice(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewPreferencesHandler(NewPreferenceStore(mock))

	mock.ExpectQuery(`SELECT prefs FROM player_preferences`).
		WithArgs("device-1").
		WillReturnError(pgx.ErrNoRows)

	rec := httptest.NewRecorder()
	handler.Get(rec, httptest.NewRequest(http.MethodGet, "/api/player/preferences?device=device-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var prefs Preferences
	if err := json.Unmarshal(rec.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if prefs != DefaultPreferences() {
		t.Errorf("expected defaults, got %+v", prefs)
	}
}

func TestPreferencesHandler_PatchPersistsFields(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewPreferencesHandler(NewPreferenceStore(mock))

	// Initial load for the handler, then one load+save per submitted field.
	mock.ExpectQuery(`SELECT prefs FROM player_preferences`).
		WithArgs("device-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT prefs FROM player_preferences`).
		WithArgs("device-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO player_preferences`).
		WithArgs("device-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	body := strings.NewReader(`{"volume":0.5}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/player/preferences?device=device-1", body)
	rec := httptest.NewRecorder()
	handler.Patch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var prefs Preferences
	if err := json.Unmarshal(rec.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if prefs.Volume != 0.5 {
		t.Errorf("expected volume 0.5, got %v", prefs.Volume)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestPreferencesHandler_PatchNothingToUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	handler := NewPreferencesHandler(NewPreferenceStore(mock))

	req := httptest.NewRequest(http.MethodPatch, "/api/player/preferences?device=device-1", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.Patch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}
