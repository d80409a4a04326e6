// Package search implements hybrid retrieval: the query is embedded and
// searched against the vector store under structured predicates derived
// from the extracted filters. Numeric ranges always apply; categorical
// equality on brand/series/model applies only in strict mode.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/otoasist/otoasist/engine/domain"
	"github.com/otoasist/otoasist/engine/normalize"
	"github.com/otoasist/otoasist/engine/semantic"
)

// Embedder embeds a single query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store abstracts the vector store's filtered similarity search.
type Store interface {
	Search(ctx context.Context, q semantic.Query) ([]semantic.Hit, error)
}

// Options configures the retriever.
type Options struct {
	// TopK over-fetches candidates before ranking truncates downstream.
	TopK int
	// BroadenKeywords force strict=false when present in the query:
	// the user is explicitly asking to look beyond an exact match.
	BroadenKeywords []string
}

// DefaultOptions returns the retrieval policy constants.
func DefaultOptions() Options {
	return Options{
		TopK:            100,
		BroadenKeywords: []string{"benzer", "alternatif", "farklı"},
	}
}

// Retriever executes hybrid searches.
type Retriever struct {
	embed  Embedder
	store  Store
	opts   Options
	logger *slog.Logger
}

// New creates a Retriever.
func New(embed Embedder, store Store, opts Options, logger *slog.Logger) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.BroadenKeywords == nil {
		opts.BroadenKeywords = DefaultOptions().BroadenKeywords
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embed: embed, store: store, opts: opts, logger: logger}
}

// DetectStrict reports whether categorical filters should be enforced
// as hard predicates for this query.
func (r *Retriever) DetectStrict(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range r.opts.BroadenKeywords {
		if strings.Contains(q, kw) {
			return false
		}
	}
	return true
}

// Search embeds the query and runs one filtered similarity search.
// Candidates come back ordered by descending similarity score.
func (r *Retriever) Search(ctx context.Context, query string, f domain.QueryFilters, strict bool) ([]domain.Candidate, error) {
	vector, err := r.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", domain.External("embedding", err))
	}

	q := buildQuery(vector, f, strict, uint64(r.opts.TopK))
	hits, err := r.store.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", domain.External("vector store", err))
	}

	r.logger.Info("retrieval done", "strict", strict, "hits", len(hits),
		"ranges", len(q.Ranges), "matches", len(q.Match))

	candidates := make([]domain.Candidate, len(hits))
	for i, h := range hits {
		candidates[i] = domain.Candidate{
			ID:      h.ID,
			Score:   h.Score,
			Listing: domain.ListingFromPayload(h.Payload),
		}
	}
	return candidates, nil
}

// buildQuery derives the store predicates from the filters. Min/max
// bounds are passed through as-is, including a min exceeding its max.
func buildQuery(vector []float32, f domain.QueryFilters, strict bool, limit uint64) semantic.Query {
	q := semantic.Query{Vector: vector, Limit: limit}

	addRange := func(key string, gte, lte *float64) {
		if gte == nil && lte == nil {
			return
		}
		q.Ranges = append(q.Ranges, semantic.Range{Key: key, GTE: gte, LTE: lte})
	}
	addRange(domain.FieldPriceNum, f.PriceMin, f.PriceMax)
	addRange(domain.FieldYearNum, intBound(f.YearMin), intBound(f.YearMax))
	addRange(domain.FieldOdometerNum, f.OdometerMin, f.OdometerMax)

	if strict {
		match := map[string]string{}
		addMatch := func(key, val string) {
			if v := normalize.ASCIILower(val); v != "" {
				match[key] = v
			}
		}
		addMatch(domain.FieldBrandKey, f.Brand)
		addMatch(domain.FieldSeriesKey, f.Series)
		addMatch(domain.FieldModelKey, f.Model)
		if len(match) > 0 {
			q.Match = match
		}
	}
	return q
}

func intBound(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
