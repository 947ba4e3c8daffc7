package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"nameglass/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetLabel(t *testing.T) {
	s := setupTestStore(t)

	entry := models.CacheEntry{
		Handle:     "torvalds",
		Label:      "Linus Torvalds",
		ResolvedAt: time.Now(),
	}
	if err := s.PutLabel(entry); err != nil {
		t.Fatalf("PutLabel() error = %v", err)
	}

	got, ok, err := s.GetLabel("torvalds")
	if err != nil {
		t.Fatalf("GetLabel() error = %v", err)
	}
	if !ok {
		t.Fatal("GetLabel() ok = false, want true")
	}
	if got.Label != "Linus Torvalds" {
		t.Errorf("label = %q, want %q", got.Label, "Linus Torvalds")
	}
}

func TestGetLabel_Absent(t *testing.T) {
	s := setupTestStore(t)

	_, ok, err := s.GetLabel("nobody")
	if err != nil {
		t.Fatalf("GetLabel() error = %v", err)
	}
	if ok {
		t.Error("GetLabel() ok = true for absent handle, want false")
	}
}

func TestPutLabel_EmptyLabelFallsBackToHandle(t *testing.T) {
	s := setupTestStore(t)

	if err := s.PutLabel(models.CacheEntry{Handle: "ghost", ResolvedAt: time.Now()}); err != nil {
		t.Fatalf("PutLabel() error = %v", err)
	}
	got, _, err := s.GetLabel("ghost")
	if err != nil {
		t.Fatalf("GetLabel() error = %v", err)
	}
	if got.Label != "ghost" {
		t.Errorf("label = %q, want handle fallback %q", got.Label, "ghost")
	}
}

func TestPutLabel_ReservedKeyRejected(t *testing.T) {
	s := setupTestStore(t)

	for _, reserved := range []string{KeyEnabled, KeyToken, KeyRateLimit} {
		err := s.PutLabel(models.CacheEntry{Handle: reserved, Label: "x", ResolvedAt: time.Now()})
		if !errors.Is(err, ErrReservedKey) {
			t.Errorf("PutLabel(%q) error = %v, want ErrReservedKey", reserved, err)
		}
	}
}

func TestReservedKeysSurvivePurgeAndClear(t *testing.T) {
	s := setupTestStore(t)

	if err := s.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if err := s.SetToken("ghp_abc"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	old := models.CacheEntry{Handle: "stale", Label: "Old", ResolvedAt: time.Now().Add(-30 * 24 * time.Hour)}
	if err := s.PutLabel(old); err != nil {
		t.Fatalf("PutLabel() error = %v", err)
	}

	if _, err := s.PurgeExpired(time.Now().Add(-7 * 24 * time.Hour)); err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if err := s.ClearLabels(); err != nil {
		t.Fatalf("ClearLabels() error = %v", err)
	}

	enabled, err := s.Enabled()
	if err != nil {
		t.Fatalf("Enabled() error = %v", err)
	}
	if enabled {
		t.Error("Enabled() = true after purge+clear, want persisted false")
	}
	token, err := s.Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "ghp_abc" {
		t.Errorf("Token() = %q, want %q", token, "ghp_abc")
	}
}

func TestPurgeExpired_CutoffRespected(t *testing.T) {
	s := setupTestStore(t)

	now := time.Now()
	fresh := models.CacheEntry{Handle: "fresh", Label: "Fresh", ResolvedAt: now.Add(-time.Hour)}
	stale := models.CacheEntry{Handle: "stale", Label: "Stale", ResolvedAt: now.Add(-8 * 24 * time.Hour)}
	for _, e := range []models.CacheEntry{fresh, stale} {
		if err := s.PutLabel(e); err != nil {
			t.Fatalf("PutLabel(%q) error = %v", e.Handle, err)
		}
	}

	removed, err := s.PurgeExpired(now.Add(-7 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("PurgeExpired() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("PurgeExpired() removed = %d, want 1", removed)
	}

	if _, ok, _ := s.GetLabel("fresh"); !ok {
		t.Error("fresh entry was purged, want kept")
	}
	if _, ok, _ := s.GetLabel("stale"); ok {
		t.Error("stale entry survived purge, want removed")
	}
}

func TestEnabled_DefaultTrue(t *testing.T) {
	s := setupTestStore(t)

	enabled, err := s.Enabled()
	if err != nil {
		t.Fatalf("Enabled() error = %v", err)
	}
	if !enabled {
		t.Error("Enabled() = false with no setting, want default true")
	}
}

func TestRateLimitRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	if _, ok, err := s.RateLimit(); err != nil || ok {
		t.Fatalf("RateLimit() before set: ok = %t, err = %v, want absent", ok, err)
	}

	snap := models.RateLimitSnapshot{Limit: 60, Remaining: 42, ResetAt: time.Unix(1700000000, 0)}
	if err := s.SetRateLimit(snap); err != nil {
		t.Fatalf("SetRateLimit() error = %v", err)
	}

	got, ok, err := s.RateLimit()
	if err != nil {
		t.Fatalf("RateLimit() error = %v", err)
	}
	if !ok {
		t.Fatal("RateLimit() ok = false, want true")
	}
	if got.Limit != 60 || got.Remaining != 42 || !got.ResetAt.Equal(snap.ResetAt) {
		t.Errorf("RateLimit() = %+v, want %+v", got, snap)
	}
}

func TestAllLabels(t *testing.T) {
	s := setupTestStore(t)

	handles := []string{"alpha", "beta", "gamma"}
	for _, h := range handles {
		if err := s.PutLabel(models.CacheEntry{Handle: h, Label: "Label " + h, ResolvedAt: time.Now()}); err != nil {
			t.Fatalf("PutLabel(%q) error = %v", h, err)
		}
	}

	entries, err := s.AllLabels()
	if err != nil {
		t.Fatalf("AllLabels() error = %v", err)
	}
	if len(entries) != len(handles) {
		t.Errorf("AllLabels() returned %d entries, want %d", len(entries), len(handles))
	}
}
