// Package normalize converts raw textual listing fields into canonical
// numeric form and derives the lowercase/ASCII-folded key fields used
// for exact matching. All functions are pure and total: malformed input
// degrades to an absent value, never an error.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/otoasist/otoasist/engine/domain"
)

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Dotless ı and dotted İ carry no combining mark, so NFD folding leaves
// them untouched; map them up front.
var dotlessFold = strings.NewReplacer("ı", "i", "İ", "I")

// asciiFold strips combining marks after NFD decomposition (ç→c, ş→s,
// ö→o, ü→u, ğ→g, ...) and drops anything still outside ASCII.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ASCIILower folds s to ASCII, lowercases, and trims surrounding
// whitespace. Idempotent: ASCIILower(ASCIILower(x)) == ASCIILower(x).
func ASCIILower(s string) string {
	s = dotlessFold.Replace(s)
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}
	folded = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)
	return strings.ToLower(strings.TrimSpace(folded))
}

// ToNum parses a price or odometer field: currency/unit tokens and
// whitespace are stripped, '.' is a thousands separator and ',' a
// decimal separator. Returns nil for unparsable input.
func ToNum(s string) *float64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	v := strings.ToLower(s)
	for _, token := range []string{"tl", "₺", "km"} {
		v = strings.ReplaceAll(v, token, "")
	}
	v = strings.ReplaceAll(v, ".", "")
	v = strings.ReplaceAll(v, " ", "")
	v = strings.ReplaceAll(v, ",", ".")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

// Year4 extracts the first 4-digit 19xx/20xx year anywhere in s.
// Returns nil when none is present.
func Year4(s string) *int {
	m := yearPattern.FindString(s)
	if m == "" {
		return nil
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &y
}

// ExtractCity returns the substring after the last comma of a location
// field, folded like the other key fields. Empty input yields "".
func ExtractCity(location string) string {
	if strings.TrimSpace(location) == "" {
		return ""
	}
	parts := strings.Split(location, ",")
	return ASCIILower(parts[len(parts)-1])
}

// Listing normalizes a raw listing: numeric fields are parsed, key
// fields are derived, and the city is extracted from the location.
func Listing(r domain.RawListing) domain.Listing {
	return domain.Listing{
		Brand:        r.Brand,
		Series:       r.Series,
		Model:        r.Model,
		Year:         r.Year,
		Price:        r.Price,
		Odometer:     r.Odometer,
		Fuel:         r.Fuel,
		Transmission: r.Transmission,
		BodyType:     r.BodyType,
		Drivetrain:   r.Drivetrain,
		Location:     r.Location,
		URL:          r.URL,

		PriceNum:    ToNum(r.Price),
		YearNum:     Year4(r.Year),
		OdometerNum: ToNum(r.Odometer),

		BrandKey:        ASCIILower(r.Brand),
		SeriesKey:       ASCIILower(r.Series),
		ModelKey:        ASCIILower(r.Model),
		CityKey:         ExtractCity(r.Location),
		FuelKey:         ASCIILower(r.Fuel),
		TransmissionKey: ASCIILower(r.Transmission),
		BodyTypeKey:     ASCIILower(r.BodyType),
		DrivetrainKey:   ASCIILower(r.Drivetrain),
	}
}
