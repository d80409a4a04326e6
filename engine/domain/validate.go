package domain

import (
	"strings"
	"unicode/utf8"
)

const minQueryLength = 2

// ValidateQuery checks a raw user query before it enters the pipeline.
func ValidateQuery(query string) error {
	if utf8.RuneCountInString(strings.TrimSpace(query)) < minQueryLength {
		return ErrQueryTooShort
	}
	return nil
}

// ValidateRawListing checks a listing before ingestion. A listing must
// carry at least one identifying text field; everything else may be
// missing and degrades to absent values during normalization.
func ValidateRawListing(r RawListing) error {
	if strings.TrimSpace(r.Brand) == "" &&
		strings.TrimSpace(r.Series) == "" &&
		strings.TrimSpace(r.Model) == "" {
		return ErrEmptyListing
	}
	return nil
}
