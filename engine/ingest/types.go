package ingest

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/otoasist/otoasist/engine/domain"
	"github.com/otoasist/otoasist/engine/semantic"
)

// NormalizedListing is a listing after normalization, with the document
// text used for embedding.
type NormalizedListing struct {
	Raw     domain.RawListing
	Listing domain.Listing
	DocText string
}

// EmbeddedListing is a normalized listing plus its embedding vector.
type EmbeddedListing struct {
	NormalizedListing
	Vector []float32
}

// DocText renders the single searchable sentence stored alongside each
// point. It uses the raw display values so the embedding sees the text
// a user would type.
func DocText(l domain.Listing) string {
	return fmt.Sprintf("%s %s %s %s – %s, %s, %s km, %s, %s. Fiyat: %s.",
		l.Brand, l.Series, l.Model, l.Year,
		l.Fuel, l.Transmission, l.Odometer,
		l.BodyType, l.Location, l.Price)
}

// pointID keeps the source's numeric id when it has one, otherwise
// generates a fresh UUID.
func pointID(raw string) semantic.PointID {
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return semantic.NumID(n)
	}
	return semantic.UUIDID(uuid.NewString())
}
