package scraper

import (
	"context"
	"sort"

	"homewatch/config"
	"homewatch/models"
)

// SourceProvider hands out the worklist of active sources for a pass.
type SourceProvider interface {
	ActiveSources(ctx context.Context) ([]models.Source, error)
}

// ConfigSourceProvider serves the worklist from the loaded source
// descriptors, in stable order.
type ConfigSourceProvider struct {
	sources map[string]*config.SourceConfig
}

func NewConfigSourceProvider(sources map[string]*config.SourceConfig) *ConfigSourceProvider {
	return &ConfigSourceProvider{sources: sources}
}

func (p *ConfigSourceProvider) ActiveSources(ctx context.Context) ([]models.Source, error) {
	out := make([]models.Source, 0, len(p.sources))
	for _, src := range p.sources {
		out = append(out, models.Source{ID: src.ID, URL: src.URL})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
