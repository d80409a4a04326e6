// Package topic decides whether a new query continues the current
// conversation or starts a fresh one, using embedding similarity
// against the most recent history entries.
package topic

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/otoasist/otoasist/engine/domain"
)

// Embedder produces one vector per input text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures the detector.
type Options struct {
	// Threshold below which the maximum similarity means a new topic.
	Threshold float64
	// HistoryTake is how many recent history entries to compare against.
	HistoryTake int
}

// DefaultOptions returns the policy constants of the pipeline.
func DefaultOptions() Options {
	return Options{Threshold: 0.5, HistoryTake: 3}
}

// Detector is a pure function of its inputs plus the embedding model.
type Detector struct {
	embed  Embedder
	opts   Options
	logger *slog.Logger
}

// New creates a Detector.
func New(embed Embedder, opts Options, logger *slog.Logger) *Detector {
	if opts.Threshold == 0 {
		opts.Threshold = DefaultOptions().Threshold
	}
	if opts.HistoryTake <= 0 {
		opts.HistoryTake = DefaultOptions().HistoryTake
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{embed: embed, opts: opts, logger: logger}
}

// IsNewTopic reports whether query breaks from the recent history.
// An empty history is never a new topic: there is nothing to continue
// or break from. Otherwise the query need only resemble one recent
// entry to count as a continuation (max similarity, not average).
func (d *Detector) IsNewTopic(ctx context.Context, query string, history []string) (bool, error) {
	if len(history) == 0 {
		return false, nil
	}

	recent := history
	if len(recent) > d.opts.HistoryTake {
		recent = recent[len(recent)-d.opts.HistoryTake:]
	}

	texts := make([]string, 0, len(recent)+1)
	texts = append(texts, query)
	texts = append(texts, recent...)

	vectors, err := d.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return false, fmt.Errorf("topic: %w", domain.External("embedding", err))
	}

	maxSim := math.Inf(-1)
	for _, h := range vectors[1:] {
		if sim := cosine(vectors[0], h); sim > maxSim {
			maxSim = sim
		}
	}

	isNew := maxSim < d.opts.Threshold
	d.logger.Debug("topic check", "max_similarity", maxSim, "new_topic", isNew)
	return isNew, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
