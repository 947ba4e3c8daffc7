// Package store is the durable tier: a SQLite-backed key/value store holding
// resolved handle entries and a small set of reserved configuration keys.
//
// Reserved keys and handle entries live in separate tables, so a handle can
// never shadow or evict configuration no matter what it is named. PutLabel
// additionally rejects handles that collide with reserved names, keeping the
// two keyspaces disjoint at write time.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite"

	"nameglass/models"
)

// Reserved configuration keys.
const (
	KeyEnabled   = "enabled"
	KeyToken     = "token"
	KeyRateLimit = "rate_limit"
)

// ErrReservedKey is returned when a handle entry would collide with a
// reserved configuration name.
var ErrReservedKey = errors.New("handle collides with a reserved settings key")

// IsReserved reports whether key names a reserved configuration entry.
func IsReserved(key string) bool {
	switch key {
	case KeyEnabled, KeyToken, KeyRateLimit:
		return true
	}
	return false
}

// Store wraps the SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA temp_store = MEMORY;

-- Resolved handle entries. resolved_at is unix seconds.
CREATE TABLE IF NOT EXISTS handles (
    handle TEXT PRIMARY KEY,
    label TEXT NOT NULL,
    resolved_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_handles_resolved_at ON handles(resolved_at);

-- Reserved configuration: enabled flag, credential, rate-limit snapshot.
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// DefaultPath returns the store location inside the XDG data directory.
func DefaultPath() (string, error) {
	path, err := xdg.DataFile(filepath.Join("nameglass", "nameglass.db"))
	if err != nil {
		return "", fmt.Errorf("failed to locate data dir: %w", err)
	}
	return path, nil
}

// Open opens or creates the store at path. An empty path uses DefaultPath.
func Open(path string) (*Store, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetLabel returns the entry for handle, or ok=false when absent.
func (s *Store) GetLabel(handle string) (models.CacheEntry, bool, error) {
	var label string
	var resolvedAt int64
	err := s.db.QueryRow(
		"SELECT label, resolved_at FROM handles WHERE handle = ?", handle,
	).Scan(&label, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("failed to read handle %q: %w", handle, err)
	}
	return models.CacheEntry{
		Handle:     handle,
		Label:      label,
		ResolvedAt: time.Unix(resolvedAt, 0),
	}, true, nil
}

// PutLabel upserts a handle entry. Handles named like reserved settings keys
// are rejected with ErrReservedKey.
func (s *Store) PutLabel(entry models.CacheEntry) error {
	if IsReserved(entry.Handle) {
		return fmt.Errorf("refusing to store %q: %w", entry.Handle, ErrReservedKey)
	}
	if entry.Label == "" {
		entry.Label = entry.Handle
	}
	_, err := s.db.Exec(`
		INSERT INTO handles (handle, label, resolved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(handle) DO UPDATE SET label = excluded.label, resolved_at = excluded.resolved_at
	`, entry.Handle, entry.Label, entry.ResolvedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store handle %q: %w", entry.Handle, err)
	}
	return nil
}

// AllLabels returns every handle entry, used to preload the memory tier.
func (s *Store) AllLabels() ([]models.CacheEntry, error) {
	rows, err := s.db.Query("SELECT handle, label, resolved_at FROM handles")
	if err != nil {
		return nil, fmt.Errorf("failed to list handles: %w", err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		var handle, label string
		var resolvedAt int64
		if err := rows.Scan(&handle, &label, &resolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan handle row: %w", err)
		}
		entries = append(entries, models.CacheEntry{
			Handle:     handle,
			Label:      label,
			ResolvedAt: time.Unix(resolvedAt, 0),
		})
	}
	return entries, rows.Err()
}

// PurgeExpired deletes handle entries older than cutoff and returns how many
// were removed. The settings table is never touched.
func (s *Store) PurgeExpired(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM handles WHERE resolved_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge handles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged handles: %w", err)
	}
	return n, nil
}

// ClearLabels removes every handle entry. Used by cache refresh.
func (s *Store) ClearLabels() error {
	if _, err := s.db.Exec("DELETE FROM handles"); err != nil {
		return fmt.Errorf("failed to clear handles: %w", err)
	}
	return nil
}

// GetSetting returns the raw value of a reserved key, or ok=false when unset.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return value, true, nil
}

// SetSetting upserts a reserved key.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return nil
}

// DeleteSetting removes a reserved key.
func (s *Store) DeleteSetting(key string) error {
	if _, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting %q: %w", key, err)
	}
	return nil
}

// Enabled reads the global enabled flag. Unset defaults to true.
func (s *Store) Enabled() (bool, error) {
	value, ok, err := s.GetSetting(KeyEnabled)
	if err != nil {
		return true, err
	}
	if !ok {
		return true, nil
	}
	return value == "true", nil
}

// SetEnabled persists the global enabled flag.
func (s *Store) SetEnabled(enabled bool) error {
	value := "false"
	if enabled {
		value = "true"
	}
	return s.SetSetting(KeyEnabled, value)
}

// Token reads the optional API credential. Empty string means none.
func (s *Store) Token() (string, error) {
	value, _, err := s.GetSetting(KeyToken)
	return value, err
}

// SetToken persists the API credential; empty clears it.
func (s *Store) SetToken(token string) error {
	if token == "" {
		return s.DeleteSetting(KeyToken)
	}
	return s.SetSetting(KeyToken, token)
}

// RateLimit reads the last observed rate-limit snapshot, if any.
func (s *Store) RateLimit() (models.RateLimitSnapshot, bool, error) {
	value, ok, err := s.GetSetting(KeyRateLimit)
	if err != nil || !ok {
		return models.RateLimitSnapshot{}, false, err
	}
	var snap models.RateLimitSnapshot
	if err := json.Unmarshal([]byte(value), &snap); err != nil {
		return models.RateLimitSnapshot{}, false, fmt.Errorf("failed to parse rate-limit snapshot: %w", err)
	}
	return snap, true, nil
}

// SetRateLimit persists the snapshot observed on the latest response.
func (s *Store) SetRateLimit(snap models.RateLimitSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode rate-limit snapshot: %w", err)
	}
	return s.SetSetting(KeyRateLimit, string(data))
}
