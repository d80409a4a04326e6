// Package assist orchestrates one conversational query turn: topic
// continuity, filter extraction, hybrid retrieval with a relaxed
// fallback, ranking, and result formatting. All per-turn state is local
// to the call; the injected clients must be safe for concurrent use.
package assist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/otoasist/otoasist/engine/domain"
	"github.com/otoasist/otoasist/engine/format"
	"github.com/otoasist/otoasist/engine/rank"
)

// TopicDetector decides whether the query starts a new topic relative
// to the conversation history.
type TopicDetector interface {
	IsNewTopic(ctx context.Context, query string, history []string) (bool, error)
}

// FilterExtractor turns a contextual query into structured filters.
type FilterExtractor interface {
	Extract(ctx context.Context, contextualQuery string) (domain.QueryFilters, error)
}

// Retriever runs one hybrid search and decides strictness per query.
type Retriever interface {
	DetectStrict(query string) bool
	Search(ctx context.Context, query string, f domain.QueryFilters, strict bool) ([]domain.Candidate, error)
}

// ResultFormatter narrates the ranked shortlist.
type ResultFormatter interface {
	Stream(ctx context.Context, query string, cars []domain.CarResult, emit func(string) error) error
}

// Options configures the service.
type Options struct {
	// TopN is the shortlist size (rank.DefaultTopN when <= 0).
	TopN int
}

// Service wires the pipeline stages for a query turn.
type Service struct {
	topics    TopicDetector
	filters   FilterExtractor
	retriever Retriever
	formatter ResultFormatter
	opts      Options
	logger    *slog.Logger
}

// New creates a Service.
func New(topics TopicDetector, filters FilterExtractor, retriever Retriever, formatter ResultFormatter, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		topics:    topics,
		filters:   filters,
		retriever: retriever,
		formatter: formatter,
		opts:      opts,
		logger:    logger,
	}
}

// Query runs one turn end to end and returns the ranked shortlist with
// rendered descriptions. The caller's history slice is never mutated;
// when the query opens a new topic an empty history is substituted for
// the rest of the turn.
func (s *Service) Query(ctx context.Context, query string, history []string) ([]domain.CarResult, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}

	newTopic, err := s.topics.IsNewTopic(ctx, query, history)
	if err != nil {
		return nil, fmt.Errorf("assist: %w", err)
	}
	if newTopic {
		s.logger.Info("new topic detected, dropping history", "history_len", len(history))
		history = nil
	}

	f, err := s.filters.Extract(ctx, contextualQuery(query, history))
	if err != nil {
		return nil, fmt.Errorf("assist: %w", err)
	}

	strict := s.retriever.DetectStrict(query)
	candidates, err := s.retriever.Search(ctx, query, f, strict)
	if err != nil {
		return nil, fmt.Errorf("assist: %w", err)
	}
	if len(candidates) == 0 {
		// One-shot fallback without categorical predicates. Kept
		// unconditional: it re-runs even when strict was already false.
		s.logger.Warn("no candidates, retrying relaxed", "strict", strict)
		candidates, err = s.retriever.Search(ctx, query, f, false)
		if err != nil {
			return nil, fmt.Errorf("assist: relaxed retry: %w", err)
		}
	}

	cars := toResults(candidates)
	ranked := rank.Rank(cars, f, s.opts.TopN)
	s.logger.Info("query turn done", "query", query, "candidates", len(candidates), "returned", len(ranked))
	return ranked, nil
}

// Stream runs Query, hands the ranked shortlist to onResults (when
// non-nil), then streams the narration through emit.
func (s *Service) Stream(ctx context.Context, query string, history []string, onResults func([]domain.CarResult) error, emit func(string) error) error {
	cars, err := s.Query(ctx, query, history)
	if err != nil {
		return err
	}
	if onResults != nil {
		if err := onResults(cars); err != nil {
			return err
		}
	}
	return s.formatter.Stream(ctx, query, cars, emit)
}

// contextualQuery compresses the (possibly emptied) history and the new
// message into the single prompt string the filter extractor sees.
func contextualQuery(query string, history []string) string {
	return fmt.Sprintf("Kullanıcı geçmişi: [%s]. Yeni mesaj: %s", strings.Join(history, ", "), query)
}

// toResults converts retrieved candidates into result records, keeping
// the similarity order and attaching the rendered description.
func toResults(candidates []domain.Candidate) []domain.CarResult {
	cars := make([]domain.CarResult, len(candidates))
	for i, c := range candidates {
		l := c.Listing
		car := domain.CarResult{
			Year:         l.YearNum,
			Brand:        l.Brand,
			Series:       l.Series,
			Model:        l.Model,
			Price:        l.PriceNum,
			Odometer:     l.OdometerNum,
			Fuel:         l.Fuel,
			Transmission: l.Transmission,
			URL:          l.URL,
		}
		car.Description = format.Describe(car)
		cars[i] = car
	}
	return cars
}
