// Package catalog resolves the selectable models for a provider, caching
// discovered lists in the settings store.
package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/timvw/evidence-lens/internal/llm"
	"github.com/timvw/evidence-lens/internal/logging"
	telem "github.com/timvw/evidence-lens/internal/otel"
	"github.com/timvw/evidence-lens/internal/provider"
	"github.com/timvw/evidence-lens/internal/settings"
)

// Lister fetches a provider's model list. *llm.Client implements it.
type Lister interface {
	ListModels(ctx context.Context, creds llm.Credentials) ([]string, error)
}

// Catalog combines a Lister with the models_cache settings entry.
type Catalog struct {
	Lister  Lister
	Store   settings.Store
	Logger  *zap.Logger
	Metrics *telem.Metrics
}

// ListModels returns the models for creds.Provider. Unless force is set, a
// non-empty cached list is returned without any network call. Otherwise the
// list is fetched and written to the cache, fallback lists included.
func (c *Catalog) ListModels(ctx context.Context, creds llm.Credentials, force bool) ([]string, error) {
	id := creds.Provider
	if !force {
		s, err := c.Store.Load(ctx)
		if err != nil {
			return nil, err
		}
		if cached := s.CachedModels(id); len(cached) > 0 {
			c.Metrics.RecordModelCache(ctx, string(id), true)
			return slices.Clone(cached), nil
		}
	}
	c.Metrics.RecordModelCache(ctx, string(id), false)

	models, err := c.Lister.ListModels(ctx, creds)
	if err != nil {
		return nil, err
	}

	_, err = settings.Update(ctx, c.Store, func(s *settings.Settings) error {
		if s.ModelsCache == nil {
			s.ModelsCache = map[provider.ID][]string{}
		}
		s.ModelsCache[id] = models
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("caching models: %w", err)
	}
	logging.OrNop(c.Logger).Debug("models cached", zap.String("provider", string(id)), zap.Int("count", len(models)))
	return models, nil
}

// Resolve is ListModels for display: on failure it still returns the
// provider's fallback list (possibly empty) alongside the error, and the
// cache is left untouched.
func (c *Catalog) Resolve(ctx context.Context, creds llm.Credentials, force bool) ([]string, error) {
	models, err := c.ListModels(ctx, creds, force)
	if err != nil {
		c.Metrics.RecordModelFallback(ctx, string(creds.Provider))
		return provider.FallbackModels(creds.Provider), err
	}
	return models, nil
}

// Dedupe drops empty entries and repeats, keeping first-seen order.
func Dedupe(models []string) []string {
	seen := make(map[string]bool, len(models))
	out := make([]string, 0, len(models))
	for _, m := range models {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Options is what a model selector shows.
type Options struct {
	// Models are the selectable entries, deduplicated.
	Models []string
	// Selected is the pre-selected entry; empty means "Select model…".
	Selected string
	// Custom reports that free-text entry should be shown, either because
	// there is nothing to choose from or because the preferred model is not
	// in the list.
	Custom bool
	// CustomValue pre-fills the free-text entry.
	CustomValue string
}

// Selectable builds selector options from a model list and the stored
// preference.
func Selectable(models []string, preferred string) Options {
	opts := Options{Models: Dedupe(models)}
	preferred = strings.TrimSpace(preferred)

	switch {
	case len(opts.Models) == 0:
		opts.Custom = true
		opts.CustomValue = preferred
	case preferred == "":
	case slices.Contains(opts.Models, preferred):
		opts.Selected = preferred
	default:
		opts.Custom = true
		opts.CustomValue = preferred
	}
	return opts
}

// Choice returns the model the options resolve to.
func (o Options) Choice() string {
	if o.Custom {
		return o.CustomValue
	}
	return o.Selected
}
