// Package ingest turns raw listing feeds into vector-store points via a
// validate, normalize, embed, store pipeline. It runs either as a batch
// loader or as a NATS consumer with retry and DLQ handling.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/otoasist/otoasist/engine/domain"
	"github.com/otoasist/otoasist/engine/normalize"
	"github.com/otoasist/otoasist/engine/semantic"
	"github.com/otoasist/otoasist/pkg/fn"
	"github.com/otoasist/otoasist/pkg/resilience"
)

const (
	// Subject carries incoming raw listings.
	Subject = "engine.listings"
	// DLQSubject receives listings that exhausted their retries.
	DLQSubject = "engine.listings.dlq"
	// MaxRetries before a failed listing goes to the DLQ.
	MaxRetries = 3
	// DefaultBatchSize for the batch loader's embed/upsert chunks.
	DefaultBatchSize = 256
)

// Embedder embeds document texts in order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorUpserter writes points to the vector store.
type VectorUpserter interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
}

// Deps holds the pipeline's external dependencies.
type Deps struct {
	Embedder Embedder
	Store    VectorUpserter
	// Limiter paces embedding calls when set.
	Limiter *resilience.Limiter
	Logger  *slog.Logger
}

// Validate rejects listings with no identifying fields at all.
var Validate fn.Stage[domain.RawListing, domain.RawListing] = func(_ context.Context, raw domain.RawListing) fn.Result[domain.RawListing] {
	if err := domain.ValidateRawListing(raw); err != nil {
		return fn.Err[domain.RawListing](err)
	}
	return fn.Ok(raw)
}

// Normalize derives numeric and key fields and the document text.
var Normalize fn.Stage[domain.RawListing, NormalizedListing] = fn.MapStage(func(raw domain.RawListing) NormalizedListing {
	l := normalize.Listing(raw)
	return NormalizedListing{Raw: raw, Listing: l, DocText: DocText(l)}
})

// NewEmbed creates the embedding stage.
func NewEmbed(embedder Embedder) fn.Stage[NormalizedListing, EmbeddedListing] {
	return func(ctx context.Context, nl NormalizedListing) fn.Result[EmbeddedListing] {
		vecs, err := embedder.EmbedBatch(ctx, []string{nl.DocText})
		if err != nil {
			return fn.Err[EmbeddedListing](fmt.Errorf("ingest: embed: %w", domain.External("embedding", err)))
		}
		return fn.Ok(EmbeddedListing{NormalizedListing: nl, Vector: vecs[0]})
	}
}

// NewStore creates the upsert stage. It returns the stored point's
// source id.
func NewStore(store VectorUpserter) fn.Stage[EmbeddedListing, string] {
	return func(ctx context.Context, el EmbeddedListing) fn.Result[string] {
		record := semantic.VectorRecord{
			ID:        pointID(el.Raw.ID),
			Embedding: el.Vector,
			Payload:   el.Listing.Payload(el.DocText),
		}
		if err := store.Upsert(ctx, []semantic.VectorRecord{record}); err != nil {
			return fn.Err[string](fmt.Errorf("ingest: upsert: %w", domain.External("vector store", err)))
		}
		return fn.Ok(el.Raw.ID)
	}
}

// NewPipeline wires validate → normalize → embed → store with tracing.
// The embed stage waits on the limiter when one is configured.
func NewPipeline(deps Deps) fn.Stage[domain.RawListing, string] {
	embed := NewEmbed(deps.Embedder)
	if deps.Limiter != nil {
		embed = resilience.LimiterStageWait(deps.Limiter, embed)
	}

	validated := fn.TracedStage("ingest.validate", Validate)
	normalized := fn.Then(validated, fn.TracedStage("ingest.normalize", Normalize))
	embedded := fn.Then(normalized, fn.TracedStage("ingest.embed", embed))
	return fn.Then(embedded, fn.TracedStage("ingest.store", NewStore(deps.Store)))
}

// LoadBatch runs listings through normalization, then embeds and
// upserts them in chunks of batchSize. Listings that fail validation
// are skipped and counted, not fatal. Returns (stored, skipped).
func LoadBatch(ctx context.Context, deps Deps, listings []domain.RawListing, batchSize int) (int, int, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	skipped := 0
	valid := fn.Filter(listings, func(raw domain.RawListing) bool {
		if err := domain.ValidateRawListing(raw); err != nil {
			skipped++
			log.Warn("ingest: skipping listing", "id", raw.ID, "error", err)
			return false
		}
		return true
	})

	normalized := fn.Map(valid, func(raw domain.RawListing) NormalizedListing {
		l := normalize.Listing(raw)
		return NormalizedListing{Raw: raw, Listing: l, DocText: DocText(l)}
	})

	stored := 0
	for _, batch := range fn.Chunk(normalized, batchSize) {
		texts := fn.Map(batch, func(nl NormalizedListing) string { return nl.DocText })

		if deps.Limiter != nil {
			if err := deps.Limiter.Wait(ctx); err != nil {
				return stored, skipped, err
			}
		}
		vecs, err := deps.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return stored, skipped, fmt.Errorf("ingest: embed batch: %w", domain.External("embedding", err))
		}

		records := make([]semantic.VectorRecord, len(batch))
		for i, nl := range batch {
			records[i] = semantic.VectorRecord{
				ID:        pointID(nl.Raw.ID),
				Embedding: vecs[i],
				Payload:   nl.Listing.Payload(nl.DocText),
			}
		}
		if err := deps.Store.Upsert(ctx, records); err != nil {
			return stored, skipped, fmt.Errorf("ingest: upsert batch: %w", domain.External("vector store", err))
		}
		stored += len(records)
		log.Info("ingest: batch stored", "count", len(records), "total", stored)
	}
	return stored, skipped, nil
}

// DLQMessage is published on DLQSubject when a listing keeps failing.
type DLQMessage struct {
	Listing domain.RawListing `json:"listing"`
	Error   string            `json:"error"`
	Retries int               `json:"retries"`
}

// StartConsumer subscribes the pipeline to Subject. Failed listings are
// re-published with an incremented X-Retry-Count header and end up on
// the DLQ after MaxRetries.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(Subject, func(msg *nats.Msg) {
		var raw domain.RawListing
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		ctx := context.Background()
		result := pipeline(ctx, raw)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("ingest: pipeline failed", "error", pipeErr, "id", raw.ID, "retry", retries)

			if retries >= MaxRetries {
				dlq := DLQMessage{Listing: raw, Error: pipeErr.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
				return
			}
			retryMsg := nats.NewMsg(Subject)
			retryMsg.Data = msg.Data
			retryMsg.Header = nats.Header{}
			retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
			if err := nc.PublishMsg(retryMsg); err != nil {
				log.Error("ingest: retry publish failed", "error", err)
			}
			return
		}

		id, _ := result.Unwrap()
		log.Info("ingest: stored", "id", id)
	})
}
