// Package main loads car listings into the vector store. It reads a
// CSV feed and either ingests it directly, publishes it to NATS, or
// runs as the NATS consumer that does the ingesting.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/otoasist/otoasist/engine/domain"
	"github.com/otoasist/otoasist/engine/ingest"
	"github.com/otoasist/otoasist/engine/semantic"
	"github.com/otoasist/otoasist/pkg/metrics"
	"github.com/otoasist/otoasist/pkg/natsutil"
	"github.com/otoasist/otoasist/pkg/ollama"
	"github.com/otoasist/otoasist/pkg/resilience"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	var (
		mode        = flag.String("mode", "direct", "direct | publish | consume")
		csvPath     = flag.String("csv", "", "CSV file with listings (direct and publish modes)")
		batchSize   = flag.Int("batch", ingest.DefaultBatchSize, "embed/upsert batch size")
		dims        = flag.Int("dims", 768, "embedding dimension for collection creation")
		embedRPS    = flag.Float64("embed-rps", 0, "embedding calls per second (0 = unlimited)")
		metricsPort = flag.Int("metrics-port", 9091, "metrics port (consume mode)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(*mode, *csvPath, *batchSize, *dims, *embedRPS, *metricsPort, logger); err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func run(mode, csvPath string, batchSize, dims int, embedRPS float64, metricsPort int, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "direct":
		listings, err := readCSV(csvPath)
		if err != nil {
			return err
		}
		deps, closeFn, err := buildDeps(ctx, dims, embedRPS, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		stored, skipped, err := ingest.LoadBatch(ctx, deps, listings, batchSize)
		logger.Info("load finished", "stored", stored, "skipped", skipped)
		return err

	case "publish":
		listings, err := readCSV(csvPath)
		if err != nil {
			return err
		}
		nc, err := nats.Connect(envOr("NATS_URL", nats.DefaultURL))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()

		for _, l := range listings {
			if err := natsutil.Publish(ctx, nc, ingest.Subject, l); err != nil {
				return fmt.Errorf("publish %s: %w", l.ID, err)
			}
		}
		logger.Info("published", "count", len(listings), "subject", ingest.Subject)
		return nc.Flush()

	case "consume":
		deps, closeFn, err := buildDeps(ctx, dims, embedRPS, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		nc, err := nats.Connect(envOr("NATS_URL", nats.DefaultURL))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()

		sub, err := ingest.StartConsumer(nc, deps)
		if err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
		defer sub.Unsubscribe()

		reg := metrics.New()
		dead := reg.Counter("ingest_dlq_total", "Listings sent to the DLQ.")
		dlqSub, err := natsutil.Subscribe(nc, ingest.DLQSubject, func(_ context.Context, msg ingest.DLQMessage) {
			dead.Inc()
			logger.Error("listing dead-lettered", "id", msg.Listing.ID, "error", msg.Error, "retries", msg.Retries)
		})
		if err != nil {
			return fmt.Errorf("subscribe dlq: %w", err)
		}
		defer dlqSub.Unsubscribe()
		reg.ServeAsync(metricsPort)

		logger.Info("consumer running", "subject", ingest.Subject, "metrics_port", metricsPort)
		<-ctx.Done()
		return nil

	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// buildDeps connects Qdrant and Ollama and ensures the collection.
func buildDeps(ctx context.Context, dims int, embedRPS float64, logger *slog.Logger) (ingest.Deps, func(), error) {
	store, err := semantic.New(envOr("QDRANT_URL", "localhost:6334"), envOr("QDRANT_COLLECTION", "car_listings"))
	if err != nil {
		return ingest.Deps{}, nil, fmt.Errorf("qdrant connect: %w", err)
	}
	if err := store.EnsureCollection(ctx, dims); err != nil {
		store.Close()
		return ingest.Deps{}, nil, fmt.Errorf("ensure collection: %w", err)
	}

	deps := ingest.Deps{
		Embedder: ollama.NewEmbedClient(envOr("OLLAMA_URL", "http://localhost:11434"), envOr("EMBED_MODEL", "nomic-embed-text")),
		Store:    store,
		Logger:   logger,
	}
	if embedRPS > 0 {
		deps.Limiter = resilience.NewLimiter(resilience.LimiterOpts{Rate: embedRPS, Burst: 1})
	}
	return deps, func() { store.Close() }, nil
}

// columnAliases maps the Turkish source headers onto listing fields.
var columnAliases = map[string]string{
	"id":         "id",
	"marka":      "brand",
	"brand":      "brand",
	"seri":       "series",
	"series":     "series",
	"model":      "model",
	"yil":        "year",
	"year":       "year",
	"fiyat":      "price",
	"price":      "price",
	"kilometre":  "odometer",
	"km":         "odometer",
	"odometer":   "odometer",
	"yakit_tipi": "fuel",
	"fuel":       "fuel",
	"vites_tipi": "transmission",
	"vites":      "transmission",
	"kasa_tipi":  "body_type",
	"body_type":  "body_type",
	"cekis":      "drivetrain",
	"drivetrain": "drivetrain",
	"konum":      "location",
	"location":   "location",
	"url":        "url",
}

// readCSV parses a listing feed. The header row names the columns;
// both the Turkish source names and their English equivalents work.
func readCSV(path string) ([]domain.RawListing, error) {
	if path == "" {
		return nil, fmt.Errorf("missing -csv flag")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	fields := make([]string, len(header))
	for i, h := range header {
		fields[i] = columnAliases[strings.ToLower(strings.TrimSpace(h))]
	}

	var listings []domain.RawListing
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		var l domain.RawListing
		for i, val := range row {
			if i >= len(fields) {
				break
			}
			setField(&l, fields[i], strings.TrimSpace(val))
		}
		listings = append(listings, l)
	}
	return listings, nil
}

func setField(l *domain.RawListing, field, val string) {
	switch field {
	case "id":
		l.ID = val
	case "brand":
		l.Brand = val
	case "series":
		l.Series = val
	case "model":
		l.Model = val
	case "year":
		l.Year = val
	case "price":
		l.Price = val
	case "odometer":
		l.Odometer = val
	case "fuel":
		l.Fuel = val
	case "transmission":
		l.Transmission = val
	case "body_type":
		l.BodyType = val
	case "drivetrain":
		l.Drivetrain = val
	case "location":
		l.Location = val
	case "url":
		l.URL = val
	}
}
