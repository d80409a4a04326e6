// Package format renders ranked results for the user: a fixed markdown
// block per car, and a streaming sales-advisor narration produced by a
// chat model under a fixed persona prompt.
package format

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/otoasist/otoasist/engine/domain"
)

// NoResultsMessage is emitted verbatim when there is nothing to show.
// The model is not invoked in that case.
const NoResultsMessage = "Sana uygun araç bulamadım. 😕 Başka bir şey sorabilirsin."

const personaTemperature = 0.3

// The persona prompt is deliberately in Turkish, matching the audience.
const systemPrompt = `Sen bir araç satış danışmanısın.
Kullanıcının sorgusuna uygun araçları düzenli, kolay okunabilir bir şekilde listele.
Her aracı ayrı bir blok halinde sun.

Format:
### {YIL} {MARKA} {MODEL}
- Fiyat: ...
- Kilometre: ...
- Yakıt: ...
- Vites: ...
- 👉 İlana Git

Sonunda:
- Araçlar arasında kısa bir kıyaslama yap (maksimum 3 cümle).
- Tavsiyeni daima 'Ben senin yerinde olsam...' şeklinde ver.
- 'Eğer benim yerimde olsan...' ifadesini KULLANMA.
- Avantaj / Dezavantaj listeleri YAZMA.`

// ChatStreamer streams chat completions chunk by chunk.
type ChatStreamer interface {
	Stream(ctx context.Context, system, user string, temperature float32, emit func(string) error) error
}

// Formatter narrates ranked cars through a chat model.
type Formatter struct {
	chat   ChatStreamer
	logger *slog.Logger
}

// New creates a Formatter.
func New(chat ChatStreamer, logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Formatter{chat: chat, logger: logger}
}

// Stream narrates the cars, calling emit for every chunk the model
// produces. An empty list short-circuits to NoResultsMessage.
func (f *Formatter) Stream(ctx context.Context, query string, cars []domain.CarResult, emit func(string) error) error {
	if len(cars) == 0 {
		return emit(NoResultsMessage)
	}

	user := fmt.Sprintf("Kullanıcının sorgusu: %s\n\nAday araçlar:\n%s", query, candidateLines(cars))
	f.logger.Info("formatting results", "cars", len(cars))

	if err := f.chat.Stream(ctx, systemPrompt, user, personaTemperature, emit); err != nil {
		return fmt.Errorf("format: %w", domain.External("llm", err))
	}
	return nil
}

// Format is the non-streaming fallback: same narration as Stream,
// collected into one string.
func (f *Formatter) Format(ctx context.Context, query string, cars []domain.CarResult) (string, error) {
	var sb strings.Builder
	err := f.Stream(ctx, query, cars, func(chunk string) error {
		sb.WriteString(chunk)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Describe renders one car as a fixed markdown block. Unknown numeric
// values render as "bilinmiyor", an unknown year as an em dash.
func Describe(c domain.CarResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s model %s %s %s**\n", orDash(yearString(c.Year)), orDash(c.Brand), c.Model, c.Series)
	fmt.Fprintf(&sb, "- Fiyat: %s TL\n", thousandsOr(c.Price, "bilinmiyor"))
	fmt.Fprintf(&sb, "- Kilometre: %s km\n", thousandsOr(c.Odometer, "bilinmiyor"))
	fmt.Fprintf(&sb, "- Yakıt: %s\n", orUnknown(c.Fuel))
	fmt.Fprintf(&sb, "- Vites: %s\n", orUnknown(c.Transmission))
	if c.URL != "" {
		fmt.Fprintf(&sb, "- 👉 [İlana Git](%s)\n", c.URL)
	}
	return sb.String()
}

// candidateLines builds the pipe-separated candidate list the model
// sees, one line per car.
func candidateLines(cars []domain.CarResult) string {
	lines := make([]string, len(cars))
	for i, c := range cars {
		lines[i] = fmt.Sprintf("- %s model %s %s %s | Fiyat: %s TL | Kilometre: %s km | Yakıt: %s | Vites: %s | URL: %s",
			orDash(yearString(c.Year)), orDash(c.Brand), c.Series, c.Model,
			thousandsOr(c.Price, "bilinmiyor"), thousandsOr(c.Odometer, "bilinmiyor"),
			orUnknown(c.Fuel), orUnknown(c.Transmission), c.URL)
	}
	return strings.Join(lines, "\n\n")
}

// thousands renders a value with dots as thousands separators, the
// Turkish convention ("1.250.000").
func thousands(v float64) string {
	s := strconv.FormatInt(int64(math.Round(v)), 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ".")
	if neg {
		out = "-" + out
	}
	return out
}

func thousandsOr(v *float64, fallback string) string {
	if v == nil {
		return fallback
	}
	return thousands(*v)
}

func yearString(y *int) string {
	if y == nil {
		return ""
	}
	return strconv.Itoa(*y)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "bilinmiyor"
	}
	return s
}
