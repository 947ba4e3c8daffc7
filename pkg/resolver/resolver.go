// Package resolver performs the remote handle lookup. Resolve never fails:
// any error degrades to the handle itself, and that degradation is written
// through to the cache so repeated failures stop generating remote calls.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"nameglass/models"
	"nameglass/pkg/cache"
	"nameglass/pkg/store"
)

// Resolver looks up display names for handles.
type Resolver struct {
	base     string
	client   *http.Client
	cache    *cache.Cache
	settings *store.Store
	logger   *slog.Logger
	group    singleflight.Group
	now      func() time.Time
}

// New creates a resolver against the given API base URL.
func New(base string, c *cache.Cache, settings *store.Store, timeout time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		base:     strings.TrimRight(base, "/"),
		client:   &http.Client{Timeout: timeout},
		cache:    c,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// userResponse is the subset of the lookup payload we care about.
type userResponse struct {
	Name *string `json:"name"`
}

// Resolve fetches the display name for handle and writes it through to the
// cache. On any failure it returns the handle itself. Concurrent calls for
// the same handle are collapsed into one request.
func (r *Resolver) Resolve(ctx context.Context, handle string) string {
	label, _, _ := r.group.Do(handle, func() (interface{}, error) {
		return r.resolveOnce(ctx, handle), nil
	})
	return label.(string)
}

func (r *Resolver) resolveOnce(ctx context.Context, handle string) string {
	// Skip requests the remote is guaranteed to reject. Nothing is cached so
	// the lookup is retried naturally once the window resets.
	if snap, ok, _ := r.settings.RateLimit(); ok && snap.Exhausted(r.now()) {
		r.logger.Warn("rate limit exhausted, skipping lookup",
			"handle", handle, "reset_at", snap.ResetAt)
		return handle
	}

	label, err := r.lookup(ctx, handle)
	if err != nil {
		r.logger.Warn("lookup failed, caching handle as label", "handle", handle, "error", err)
		label = handle
	}

	if err := r.cache.Put(handle, label); err != nil {
		r.logger.Error("cache write failed", "handle", handle, "error", err)
	}
	return label
}

func (r *Resolver) lookup(ctx context.Context, handle string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"/users/"+handle, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	token, err := r.settings.Token()
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", authScheme(token)+" "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	r.recordRateLimit(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		// Fall through to decode.
	case http.StatusUnauthorized:
		if token == "" {
			return "", fmt.Errorf("unauthorized: no credential supplied")
		}
		return "", fmt.Errorf("unauthorized: credential rejected")
	case http.StatusForbidden, http.StatusTooManyRequests:
		return "", fmt.Errorf("forbidden or rate limited (status %d)", resp.StatusCode)
	default:
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var user userResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("malformed payload: %w", err)
	}
	if user.Name == nil || *user.Name == "" {
		return handle, nil
	}
	return *user.Name, nil
}

// authScheme picks the Authorization convention from the credential's shape.
// Fine-grained tokens use Bearer; classic tokens use the token scheme. The
// two formats are mutually exclusive by prefix.
func authScheme(token string) string {
	if strings.HasPrefix(token, "github_pat_") {
		return "Bearer"
	}
	return "token"
}

// recordRateLimit persists the rate-limit headers from resp, when present.
// The snapshot is informational plus the exhaustion guard in resolveOnce.
func (r *Resolver) recordRateLimit(resp *http.Response) {
	limit, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))
	if err != nil {
		return
	}
	remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return
	}

	snap := models.RateLimitSnapshot{
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Unix(reset, 0),
	}
	if err := r.settings.SetRateLimit(snap); err != nil {
		r.logger.Error("failed to persist rate-limit snapshot", "error", err)
	}
}
