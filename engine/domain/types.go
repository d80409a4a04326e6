// Package domain defines the core types, sort directives, and error
// taxonomy for the car-search engine. It acts as the validation gate at
// pipeline entry points.
package domain

// SortDirective is an explicit ordering requested by the user
// ("cheapest", "newest", ...). The empty string means no directive.
type SortDirective string

const (
	SortPriceDesc    SortDirective = "price_desc"
	SortPriceAsc     SortDirective = "price_asc"
	SortYearDesc     SortDirective = "year_desc"
	SortYearAsc      SortDirective = "year_asc"
	SortOdometerDesc SortDirective = "odometer_desc"
	SortOdometerAsc  SortDirective = "odometer_asc"
)

// ValidSortDirectives is the closed set the filter extractor may emit.
var ValidSortDirectives = map[SortDirective]bool{
	SortPriceDesc: true, SortPriceAsc: true,
	SortYearDesc: true, SortYearAsc: true,
	SortOdometerDesc: true, SortOdometerAsc: true,
}

// Valid reports whether s is empty or one of the known directives.
func (s SortDirective) Valid() bool {
	return s == "" || ValidSortDirectives[s]
}

// RawListing is a vehicle listing as it arrives from a source feed.
// Every field is free text; normalization happens in engine/normalize.
type RawListing struct {
	ID           string `json:"id"`
	Brand        string `json:"brand"`
	Series       string `json:"series"`
	Model        string `json:"model"`
	Year         string `json:"year"`
	Price        string `json:"price"`
	Odometer     string `json:"odometer"`
	Fuel         string `json:"fuel"`
	Transmission string `json:"transmission"`
	BodyType     string `json:"body_type"`
	Drivetrain   string `json:"drivetrain"`
	Location     string `json:"location"`
	URL          string `json:"url"`
}

// Listing is a normalized listing: the raw display fields plus the
// derived numeric and lowercase/ASCII-folded key fields stored in the
// vector-store payload. Numeric fields are nil when the source value
// was absent or unparsable, never zero and never an error.
type Listing struct {
	Brand        string
	Series       string
	Model        string
	Year         string
	Price        string
	Odometer     string
	Fuel         string
	Transmission string
	BodyType     string
	Drivetrain   string
	Location     string
	URL          string

	PriceNum    *float64
	YearNum     *int
	OdometerNum *float64

	BrandKey        string
	SeriesKey       string
	ModelKey        string
	CityKey         string
	FuelKey         string
	TransmissionKey string
	BodyTypeKey     string
	DrivetrainKey   string
}

// QueryFilters is the structured filter object extracted from one query
// turn. Min/max pairs are independently optional; a min exceeding its
// max is passed through unchanged (the store then matches nothing and
// the relaxed fallback still runs).
type QueryFilters struct {
	Brand        string        `json:"brand,omitempty"`
	Series       string        `json:"series,omitempty"`
	Model        string        `json:"model,omitempty"`
	Location     string        `json:"location,omitempty"`
	PriceMin     *float64      `json:"price_min,omitempty"`
	PriceMax     *float64      `json:"price_max,omitempty"`
	YearMin      *int          `json:"year_min,omitempty"`
	YearMax      *int          `json:"year_max,omitempty"`
	OdometerMin  *float64      `json:"odometer_min,omitempty"`
	OdometerMax  *float64      `json:"odometer_max,omitempty"`
	Fuel         string        `json:"fuel,omitempty"`
	Transmission string        `json:"transmission,omitempty"`
	SortBy       SortDirective `json:"sort_by,omitempty"`
}

// Empty reports whether no filter field is set.
func (f QueryFilters) Empty() bool {
	return f == QueryFilters{}
}

// Candidate is one retrieved listing with its similarity score, held
// only for the duration of a single query turn.
type Candidate struct {
	ID      string
	Score   float32
	Listing Listing
}

// CarResult is one entry of the final ranked shortlist surfaced to the
// caller. Optional fields serialize as JSON null.
type CarResult struct {
	Year         *int     `json:"year"`
	Brand        string   `json:"brand,omitempty"`
	Series       string   `json:"series,omitempty"`
	Model        string   `json:"model,omitempty"`
	Price        *float64 `json:"price"`
	Odometer     *float64 `json:"odometer"`
	Fuel         string   `json:"fuel,omitempty"`
	Transmission string   `json:"transmission,omitempty"`
	URL          string   `json:"url,omitempty"`
	Description  string   `json:"description"`
}
