package search

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/medialog/apiserver/types"
	"github.com/sourcegraph/conc"
)

// Provider searches one external catalog for one media kind.
type Provider interface {
	// Kind is the media kind this provider serves.
	Kind() string

	// Search returns candidate items matching the query.
	Search(ctx context.Context, query string) ([]types.CandidateItem, error)
}

// Gateway fans a query out to the configured catalog providers. A failing
// provider contributes an empty subset; the search as a whole never fails.
type Gateway struct {
	providers []Provider
	logger    *log.Logger
}

// NewGateway constructs a Gateway over the given providers.
func NewGateway(logger *log.Logger, providers ...Provider) *Gateway {
	return &Gateway{
		providers: providers,
		logger:    logger,
	}
}

// Search queries all providers concurrently and merges their results in
// provider order. kind, when non-empty, restricts the fan-out to the
// matching provider.
func (g *Gateway) Search(ctx context.Context, query, kind string) []types.CandidateItem {
	query = strings.TrimSpace(query)
	if query == "" {
		return []types.CandidateItem{}
	}

	selected := make([]Provider, 0, len(g.providers))
	for _, provider := range g.providers {
		if kind == "" || provider.Kind() == kind {
			selected = append(selected, provider)
		}
	}

	subsets := make([][]types.CandidateItem, len(selected))

	var wg conc.WaitGroup
	for i, provider := range selected {
		i, provider := i, provider
		wg.Go(func() {
			items, err := provider.Search(ctx, query)
			if err != nil {
				g.logger.Warn("catalog search failed",
					"kind", provider.Kind(), "err", err)
				return
			}
			subsets[i] = items
		})
	}
	wg.Wait()

	merged := make([]types.CandidateItem, 0)
	for _, subset := range subsets {
		merged = append(merged, subset...)
	}
	return merged
}
