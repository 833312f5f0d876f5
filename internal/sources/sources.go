// Package sources builds the configured shop crawlers and persists their
// session state between runs.
package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/JakeFAU/pricefetch/internal/sources/catalog"
	"github.com/JakeFAU/pricefetch/internal/storage"
	"github.com/JakeFAU/pricefetch/pkg/crawler"
)

// Build creates one catalog source per config. Names must be unique.
func Build(cfgs []catalog.Config, opts catalog.Options) ([]crawler.Crawler, error) {
	out := make([]crawler.Crawler, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))
	for _, cfg := range cfgs {
		if seen[cfg.Name] {
			return nil, fmt.Errorf("%w: duplicate source %q", catalog.ErrInvalidConfig, cfg.Name)
		}
		seen[cfg.Name] = true
		src, err := catalog.New(cfg, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// AsSources narrows crawlers for the orchestrator.
func AsSources(crawlers []crawler.Crawler) []crawler.Source {
	out := make([]crawler.Source, len(crawlers))
	for i, c := range crawlers {
		out[i] = c
	}
	return out
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// StateStore saves crawler sessions as blobs under sessions/<name>.json.
type StateStore struct {
	blobs  storage.BlobStore
	logger *zap.Logger
}

// NewStateStore wraps blobs.
func NewStateStore(blobs storage.BlobStore, logger *zap.Logger) *StateStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateStore{blobs: blobs, logger: logger}
}

func statePath(name string) string {
	return "sessions/" + unsafeName.ReplaceAllString(name, "_") + ".json"
}

// Restore loads saved state into c. A crawler without saved state is left
// untouched.
func (s *StateStore) Restore(ctx context.Context, c crawler.Crawler) error {
	raw, err := s.blobs.GetObject(ctx, statePath(c.Name()))
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Debug("no saved session", zap.String("source", c.Name()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session %s: %w", c.Name(), err)
	}
	if err := c.Loads(raw); err != nil {
		return fmt.Errorf("load session %s: %w", c.Name(), err)
	}
	s.logger.Debug("session restored", zap.String("source", c.Name()))
	return nil
}

// Save writes the current state of c.
func (s *StateStore) Save(ctx context.Context, c crawler.Crawler) error {
	raw, err := c.Dumps()
	if err != nil {
		return fmt.Errorf("dump session %s: %w", c.Name(), err)
	}
	uri, err := s.blobs.PutObject(ctx, statePath(c.Name()), "application/json", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("write session %s: %w", c.Name(), err)
	}
	s.logger.Debug("session saved", zap.String("source", c.Name()), zap.String("uri", uri))
	return nil
}

// RestoreAll restores every crawler and joins the failures; a crawler whose
// state cannot be restored still runs with a fresh session.
func (s *StateStore) RestoreAll(ctx context.Context, crawlers []crawler.Crawler) error {
	var errs []error
	for _, c := range crawlers {
		if err := s.Restore(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveAll saves every crawler and joins the failures.
func (s *StateStore) SaveAll(ctx context.Context, crawlers []crawler.Crawler) error {
	var errs []error
	for _, c := range crawlers {
		if err := s.Save(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
