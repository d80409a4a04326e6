// Package filters turns a free-text query (with compressed history
// context) into a structured QueryFilters object by prompting a
// language model constrained to JSON-only output. The model is treated
// as an untrusted, best-effort structured-output source: every reply is
// validated locally against the schema and rejected with a SchemaError
// when it does not conform.
package filters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/otoasist/otoasist/engine/domain"
)

// ChatCompleter is the blocking language-model boundary.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string, temperature float32) (string, error)
}

const systemPrompt = `You are a car-search filter extractor.
Task: extract a structured filter JSON object from the user's natural-language query.

Rules:
- Return ONLY JSON. No explanations, no surrounding text.
- Fields: brand, series, model, location,
  price_min, price_max, year_min, year_max,
  odometer_min, odometer_max, fuel, transmission, sort_by.
- Omit every field the user did not ask for.
- Price phrases meaning an upper bound ("up to", "under", "at most"; Turkish "en fazla", "altı", "kadar") map to price_max.
- Price phrases meaning a lower bound ("above", "over", "at least"; Turkish "en az", "üstü", "fazla") map to price_min.
- Year phrases: "or newer", "after" ("sonrası", "üstü", "yeni") map to year_min; "or older", "before" ("öncesi", "altı", "eski") map to year_max.
- Odometer phrases: "under", "low mileage" ("altı", "en fazla", "düşük") map to odometer_max; "over", "high mileage" ("üstü", "fazla", "yüksek") map to odometer_min.
- If the new message contains only budget, year, odometer, fuel, or transmission criteria, keep the brand/series/model from the earlier turns of the conversation.
- Copy fuel and transmission exactly as the user wrote them; do not normalize spelling ("benzin" vs "benzinli" stay as given).
- Sort intent maps to sort_by:
  "most expensive", "highest priced" -> "price_desc"
  "cheapest", "lowest priced" -> "price_asc"
  "newest", "most recent" -> "year_desc"
  "oldest" -> "year_asc"
  "lowest mileage" -> "odometer_asc"
  "highest mileage" -> "odometer_desc"`

// Extractor extracts QueryFilters from a contextual query.
type Extractor struct {
	llm    ChatCompleter
	logger *slog.Logger
}

// New creates an Extractor.
func New(llm ChatCompleter, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{llm: llm, logger: logger}
}

// Extract sends the contextual query to the model and parses the reply.
// Model transport failures surface as ExternalError; replies that do
// not conform to the schema surface as SchemaError. Neither is retried.
func (e *Extractor) Extract(ctx context.Context, contextualQuery string) (domain.QueryFilters, error) {
	user := fmt.Sprintf("Query: %q.\nReturn only the JSON object.", contextualQuery)

	out, err := e.llm.Complete(ctx, systemPrompt, user, 0)
	if err != nil {
		return domain.QueryFilters{}, fmt.Errorf("filters: extract: %w", domain.External("llm", err))
	}

	f, err := Parse(out)
	if err != nil {
		return domain.QueryFilters{}, fmt.Errorf("filters: %w", err)
	}

	e.logger.Info("filters extracted",
		"brand", f.Brand, "series", f.Series, "model", f.Model,
		"sort_by", string(f.SortBy), "empty", f.Empty(),
	)
	return f, nil
}

// Parse validates raw model output against the QueryFilters schema.
// Markdown code fences around the JSON are tolerated; unknown fields,
// wrong types, and unknown sort directives are not.
func Parse(raw string) (domain.QueryFilters, error) {
	text := stripFences(raw)

	var f domain.QueryFilters
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return domain.QueryFilters{}, domain.NewSchemaError(raw, err)
	}
	if !f.SortBy.Valid() {
		return domain.QueryFilters{}, domain.NewSchemaError(raw, fmt.Errorf("unknown sort directive %q", f.SortBy))
	}
	return f, nil
}

// stripFences removes a ```json ... ``` wrapper if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
