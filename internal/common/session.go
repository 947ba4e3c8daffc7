// Package common holds setup shared across the CLI actions: logger
// construction and the wiring of a full annotation session over one document.
package common

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/PuerkitoBio/goquery"
	"github.com/urfave/cli/v2"

	"nameglass/models"
	"nameglass/pkg/cache"
	"nameglass/pkg/control"
	"nameglass/pkg/pipeline"
	"nameglass/pkg/resolver"
	"nameglass/pkg/store"
)

// NewLogger builds the JSON logger used by every action.
func NewLogger(quiet bool) *slog.Logger {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// LoadConfig reads the config file named by the --config flag and applies
// flag overrides.
func LoadConfig(c *cli.Context) (*models.Config, error) {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("api-base") {
		cfg.APIBase = c.String("api-base")
	}
	if c.IsSet("store") {
		cfg.StorePath = c.String("store")
	}
	return cfg, nil
}

// Session bundles everything a running document session needs.
type Session struct {
	Store      *store.Store
	Cache      *cache.Cache
	Resolver   *resolver.Resolver
	Pipeline   *pipeline.Pipeline
	Controller *control.Controller
	Doc        *goquery.Document
}

// NewSession opens the store, preloads the cache, and wires the pipeline over
// an already-parsed document.
func NewSession(cfg *models.Config, doc *goquery.Document, logger *slog.Logger) (*Session, error) {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	ch := cache.New(st)
	if err := ch.Preload(); err != nil {
		_ = st.Close()
		return nil, err
	}

	enabled, err := st.Enabled()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	res := resolver.New(cfg.APIBase, ch, st, cfg.RequestTimeout, logger)
	pipe := pipeline.New(doc, ch, res, enabled, cfg.BatchSize, logger)
	ctrl := control.New(st, ch, pipe, logger)

	return &Session{
		Store:      st,
		Cache:      ch,
		Resolver:   res,
		Pipeline:   pipe,
		Controller: ctrl,
		Doc:        doc,
	}, nil
}

// Close releases the session's durable store.
func (s *Session) Close() error {
	return s.Store.Close()
}
