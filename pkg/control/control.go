// Package control handles the inbound control surface: the global enable
// toggle, state queries, and cache refresh. Each operation returns only after
// the document has been brought consistent, which is the completion ack the
// message sender waits on.
package control

import (
	"context"
	"log/slog"

	"nameglass/models"
	"nameglass/pkg/cache"
	"nameglass/pkg/pipeline"
	"nameglass/pkg/store"
)

// State is the answer to a state query.
type State struct {
	Enabled   bool
	RateLimit *models.RateLimitSnapshot
}

// Controller coordinates the durable flag, the cache and the pipeline.
type Controller struct {
	store    *store.Store
	cache    *cache.Cache
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// New creates a controller over an already-initialized pipeline.
func New(st *store.Store, c *cache.Cache, p *pipeline.Pipeline, logger *slog.Logger) *Controller {
	return &Controller{store: st, cache: c, pipeline: p, logger: logger}
}

// SetEnabled persists the flag, re-renders every marked node from its cached
// label, then rescans the whole document once to classify nodes that were
// skipped while disabled. The render step is idempotent, so toggles issued in
// quick succession converge on the last one's state.
func (c *Controller) SetEnabled(ctx context.Context, enabled bool) error {
	if err := c.store.SetEnabled(enabled); err != nil {
		return err
	}
	c.pipeline.SetEnabled(enabled)
	c.pipeline.RenderAll()
	c.pipeline.Scan(ctx)
	c.logger.Info("toggled", "enabled", enabled)
	return nil
}

// State reports the enabled flag and the last observed rate-limit snapshot.
func (c *Controller) State() (State, error) {
	enabled, err := c.store.Enabled()
	if err != nil {
		return State{}, err
	}
	s := State{Enabled: enabled}
	if snap, ok, err := c.store.RateLimit(); err == nil && ok {
		s.RateLimit = &snap
	}
	return s, nil
}

// RefreshCache clears both cache tiers and the marker table, then runs a full
// reclassification and re-resolution pass. Marked nodes are rendered back to
// their handles first — classification matches node text against the link
// target, so a node still showing a label would otherwise be unrecognizable.
func (c *Controller) RefreshCache(ctx context.Context) error {
	if err := c.cache.Clear(); err != nil {
		return err
	}
	c.pipeline.RenderAll()
	c.pipeline.ResetMarkers()
	c.pipeline.Scan(ctx)
	c.logger.Info("cache refreshed")
	return nil
}
