package httputil

import (
	"context"
	"testing"
)

func TestGenerateNonce_ReturnsNonEmptyString(t *testing.T) {
	nonce := GenerateNonce()
	if nonce == "" {
		t.Error("expected non-empty nonce")
	}
}

func TestGenerateNonce_ReturnsUniqueValues(t *testing.T) {
	a := GenerateNonce()
	b := GenerateNonce()
	if a == b {
		t.Errorf("expected unique nonces, got %q twice", a)
	}
}

func TestNonceFromContext_RoundTrip(t *testing.T) {
	ctx := ContextWithNonce(context.Background(), "test-nonce-abc")
	if got := NonceFromContext(ctx); got != "test-nonce-abc" {
		t.Errorf("expected %q, got %q", "test-nonce-abc", got)
	}
}

func TestNonceFromContext_ReturnsEmptyWhenMissing(t *testing.T) {
	if got := NonceFromContext(context.Background()); got != "" {
		t.Errorf("expected empty nonce, got %q", got)
	}
}
