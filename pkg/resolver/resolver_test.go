package resolver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"nameglass/models"
	"nameglass/pkg/cache"
	"nameglass/pkg/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupResolver(t *testing.T, handler http.Handler) (*Resolver, *cache.Cache, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := cache.New(s)
	return New(server.URL, c, s, 5*time.Second, testLogger()), c, s
}

func TestResolve_Success(t *testing.T) {
	r, c, _ := setupResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/users/torvalds" {
			t.Errorf("path = %q, want /users/torvalds", req.URL.Path)
		}
		w.Write([]byte(`{"login":"torvalds","name":"Linus Torvalds"}`))
	}))

	if got := r.Resolve(context.Background(), "torvalds"); got != "Linus Torvalds" {
		t.Errorf("Resolve() = %q, want %q", got, "Linus Torvalds")
	}
	entry, ok := c.Get("torvalds")
	if !ok || entry.Label != "Linus Torvalds" {
		t.Errorf("cache entry = (%+v, %t), want warmed with label", entry, ok)
	}
}

func TestResolve_NullNameFallsBackToHandle(t *testing.T) {
	r, _, _ := setupResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"login":"ghost","name":null}`))
	}))

	if got := r.Resolve(context.Background(), "ghost"); got != "ghost" {
		t.Errorf("Resolve() = %q, want handle fallback", got)
	}
}

func TestResolve_FailureIsCached(t *testing.T) {
	r, c, _ := setupResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	if got := r.Resolve(context.Background(), "nope"); got != "nope" {
		t.Errorf("Resolve() = %q, want %q", got, "nope")
	}
	// The failure is a cache hit from now on; the pipeline checks the cache
	// first, so no further remote calls are needed to reproduce it.
	entry, ok := c.Get("nope")
	if !ok || entry.Label != "nope" {
		t.Errorf("cache entry = (%+v, %t), want handle-as-label", entry, ok)
	}
}

func TestResolve_MalformedPayload(t *testing.T) {
	r, c, _ := setupResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"name": `))
	}))

	if got := r.Resolve(context.Background(), "broken"); got != "broken" {
		t.Errorf("Resolve() = %q, want handle fallback", got)
	}
	if entry, ok := c.Get("broken"); !ok || entry.Label != "broken" {
		t.Errorf("cache entry = (%+v, %t), want handle-as-label", entry, ok)
	}
}

func TestResolve_AuthSchemeByTokenShape(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"classic token", "ghp_abc123", "token ghp_abc123"},
		{"fine-grained token", "github_pat_abc123", "Bearer github_pat_abc123"},
		{"no token", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAuth string
			r, _, s := setupResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				gotAuth = req.Header.Get("Authorization")
				w.Write([]byte(`{"name":"X"}`))
			}))
			if tt.token != "" {
				if err := s.SetToken(tt.token); err != nil {
					t.Fatalf("SetToken() error = %v", err)
				}
			}
			r.Resolve(context.Background(), "someone")
			if gotAuth != tt.want {
				t.Errorf("Authorization = %q, want %q", gotAuth, tt.want)
			}
		})
	}
}

func TestResolve_RecordsRateLimitSnapshot(t *testing.T) {
	r, _, s := setupResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "13")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.Write([]byte(`{"name":"X"}`))
	}))

	r.Resolve(context.Background(), "someone")

	snap, ok, err := s.RateLimit()
	if err != nil {
		t.Fatalf("RateLimit() error = %v", err)
	}
	if !ok {
		t.Fatal("RateLimit() ok = false, want persisted snapshot")
	}
	if snap.Limit != 60 || snap.Remaining != 13 || snap.ResetAt.Unix() != 1700000000 {
		t.Errorf("snapshot = %+v, want {60 13 1700000000}", snap)
	}
}

func TestResolve_SkipsWhenExhausted(t *testing.T) {
	var calls atomic.Int64
	r, c, s := setupResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"name":"X"}`))
	}))

	now := time.Now()
	r.now = func() time.Time { return now }
	err := s.SetRateLimit(models.RateLimitSnapshot{Limit: 60, Remaining: 0, ResetAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("SetRateLimit() error = %v", err)
	}

	if got := r.Resolve(context.Background(), "someone"); got != "someone" {
		t.Errorf("Resolve() = %q, want immediate handle fallback", got)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("remote calls = %d, want 0 while exhausted", n)
	}
	// Not cached: the lookup is retried naturally once the window resets.
	if _, ok := c.Get("someone"); ok {
		t.Error("exhausted skip was cached, want uncached")
	}
}

func TestResolve_RetriesAfterReset(t *testing.T) {
	var calls atomic.Int64
	r, _, s := setupResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"name":"Someone"}`))
	}))

	now := time.Now()
	r.now = func() time.Time { return now }
	err := s.SetRateLimit(models.RateLimitSnapshot{Limit: 60, Remaining: 0, ResetAt: now.Add(-time.Minute)})
	if err != nil {
		t.Fatalf("SetRateLimit() error = %v", err)
	}

	if got := r.Resolve(context.Background(), "someone"); got != "Someone" {
		t.Errorf("Resolve() = %q, want lookup past reset", got)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("remote calls = %d, want 1", n)
	}
}
