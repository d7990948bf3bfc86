package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewWithBaseURL(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewWithBaseURL error: %v", err)
	}
	c.InitialInterval = time.Millisecond
	return c
}

func TestDoJSON_DecodesAndSendsHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "k" {
			http.Error(w, "missing apikey", http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad content type", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.DoJSON(context.Background(), http.MethodPost, "items", map[string]string{"apikey": "k"}, map[string]string{"a": "b"}, &out)
	if err != nil {
		t.Fatalf("DoJSON error: %v", err)
	}
	if !out.OK {
		t.Fatalf("expected ok=true")
	}
}

func TestDoJSON_RetriesServerErrorsOnIdempotentMethods(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	if err := c.DoJSON(context.Background(), http.MethodGet, "/items", nil, nil, nil); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestDoJSON_DoesNotRetryPostOnServerError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.DoJSON(context.Background(), http.MethodPost, "/items", nil, map[string]int{"n": 1}, nil)
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected HTTPError 500, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("a POST must not be replayed after a 500, got %d attempts", calls.Load())
	}
}

func TestDoJSON_DoesNotRetryPostOnServiceUnavailable(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	})

	err := c.DoJSON(context.Background(), http.MethodPost, "/medication_logs", nil, map[string]string{"medication_id": "m1"}, nil)
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTPError 503, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("a POST must not be replayed after a 503, got %d attempts", calls.Load())
	}

	calls.Store(0)
	_ = c.DoJSON(context.Background(), http.MethodPatch, "/medications", nil, map[string]string{"dosage": "2mg"}, nil)
	if calls.Load() != 1 {
		t.Fatalf("a PATCH must not be replayed after a 503, got %d attempts", calls.Load())
	}
}

func TestDoJSON_RetriesTooManyRequestsForAnyMethod(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})

	if err := c.DoJSON(context.Background(), http.MethodPost, "/items", nil, map[string]int{"n": 1}, nil); err != nil {
		t.Fatalf("expected success after 429, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestDoJSON_ClientErrorsArePermanent(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound} {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, `{"message":"nope"}`, status)
		})

		err := c.DoJSON(context.Background(), http.MethodGet, "/items", nil, nil, nil)
		var herr *HTTPError
		if !errors.As(err, &herr) || herr.StatusCode != status {
			t.Fatalf("status %d: expected HTTPError, got %v", status, err)
		}
		if calls.Load() != 1 {
			t.Fatalf("status %d: expected a single attempt, got %d", status, calls.Load())
		}
	}
}

func TestDoJSON_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	c.MaxRetries = 1

	err := c.DoJSON(context.Background(), http.MethodGet, "/items", nil, nil, nil)
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected last HTTPError, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestDoJSON_TransportErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(time.Second)
	c.MaxRetries = 0

	err := c.DoJSON(context.Background(), http.MethodGet, url+"/x", nil, nil, nil)
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T %v", err, err)
	}
}

func TestDoJSON_RelativePathRequiresBaseURL(t *testing.T) {
	c := New(time.Second)
	if err := c.DoJSON(context.Background(), http.MethodGet, "/x", nil, nil, nil); err == nil {
		t.Fatalf("expected error without BaseURL")
	}
}
