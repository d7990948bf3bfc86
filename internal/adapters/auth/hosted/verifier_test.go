package hosted

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"medication-adherence/internal/ports/auth"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != "anon" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer patient-token":
			_, _ = w.Write([]byte(`{"id":"u1","email":"p@example.com","role":"authenticated","user_metadata":{}}`))
		case "Bearer caretaker-token":
			_, _ = w.Write([]byte(`{"id":"c1","email":"c@example.com","role":"authenticated","user_metadata":{"role":"caretaker"}}`))
		case "Bearer broken":
			_, _ = w.Write([]byte(`{"email":"x@example.com"}`))
		default:
			http.Error(w, `{"msg":"invalid JWT"}`, http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newVerifier(t *testing.T, baseURL string) *Verifier {
	t.Helper()
	c, err := NewClient(Config{BaseURL: baseURL, APIKey: "anon"})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	return NewVerifier(c)
}

func TestVerify_MapsUserAndRole(t *testing.T) {
	v := newVerifier(t, newServer(t).URL)

	claims, err := v.Verify(context.Background(), "patient-token")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "p@example.com" || claims.Role != auth.RolePatient {
		t.Fatalf("unexpected claims %#v", claims)
	}

	claims, err = v.Verify(context.Background(), "caretaker-token")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.Role != auth.RoleCaretaker {
		t.Fatalf("expected caretaker role from user_metadata, got %q", claims.Role)
	}
}

func TestVerify_Errors(t *testing.T) {
	v := newVerifier(t, newServer(t).URL)

	if _, err := v.Verify(context.Background(), "expired"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on 401, got %v", err)
	}
	if _, err := v.Verify(context.Background(), "  "); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on empty token, got %v", err)
	}
	if _, err := v.Verify(context.Background(), "broken"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream when id is missing, got %v", err)
	}

	unconfigured := NewVerifier(&Client{})
	if _, err := unconfigured.Verify(context.Background(), "t"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
