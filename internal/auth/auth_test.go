package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const testSecret = "test-secret-for-auth-tests"

func echoUserID(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(UserIDFromContext(r.Context())))
}

func TestMiddleware_RejectsMissingHeader(t *testing.T) {
	identity := New(testSecret)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	identity.Middleware(http.HandlerFunc(echoUserID)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestMiddleware_RejectsMalformedHeader(t *testing.T) {
	identity := New(testSecret)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")

	identity.Middleware(http.HandlerFunc(echoUserID)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestMiddleware_AcceptsValidToken(t *testing.T) {
	identity := New(testSecret)
	token, err := GenerateAccessToken(testSecret, "user-42")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	identity.Middleware(http.HandlerFunc(echoUserID)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if rec.Body.String() != "user-42" {
		t.Errorf("expected user id %q in context, got %q", "user-42", rec.Body.String())
	}
}

func TestMiddleware_RejectsTokenSignedWithOtherSecret(t *testing.T) {
	identity := New(testSecret)
	token, err := GenerateAccessToken("a-different-secret", "user-42")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	identity.Middleware(http.HandlerFunc(echoUserID)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestOptionalMiddleware_AnonymousPassesThrough(t *testing.T) {
	identity := New(testSecret)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	identity.OptionalMiddleware(http.HandlerFunc(echoUserID)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if rec.Body.String() != "" {
		t.Errorf("expected empty viewer id for anonymous request, got %q", rec.Body.String())
	}
}

func TestViewerIDFromToken(t *testing.T) {
	identity := New(testSecret)
	token, err := GenerateAccessToken(testSecret, "user-7")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if got := identity.ViewerIDFromToken(token); got != "user-7" {
		t.Errorf("expected %q, got %q", "user-7", got)
	}
	if got := identity.ViewerIDFromToken(""); got != "" {
		t.Errorf("expected empty viewer for empty token, got %q", got)
	}
	if got := identity.ViewerIDFromToken("garbage"); got != "" {
		t.Errorf("expected empty viewer for garbage token, got %q", got)
	}
}
