package search

import (
	"context"
	"errors"
	"testing"

	"github.com/otoasist/otoasist/engine/domain"
	"github.com/otoasist/otoasist/engine/semantic"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.vector, f.err
}

type fakeStore struct {
	gotQuery semantic.Query
	hits     []semantic.Hit
	err      error
}

func (f *fakeStore) Search(_ context.Context, q semantic.Query) ([]semantic.Hit, error) {
	f.gotQuery = q
	return f.hits, f.err
}

func TestDetectStrict(t *testing.T) {
	r := New(&fakeEmbedder{}, &fakeStore{}, DefaultOptions(), nil)
	tests := []struct {
		query string
		want  bool
	}{
		{"1.300.000 TL altı astra", true},
		{"buna benzer araçlar göster", false},
		{"Alternatif önerir misin", false},
		{"farklı bir şey olsun", false},
		{"en ucuz dizel", true},
	}
	for _, tt := range tests {
		if got := r.DetectStrict(tt.query); got != tt.want {
			t.Errorf("DetectStrict(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestSearch_StrictAddsCategoricalMatches(t *testing.T) {
	store := &fakeStore{}
	r := New(&fakeEmbedder{vector: []float32{0.1}}, store, DefaultOptions(), nil)

	priceMax := 1300000.0
	yearMin := 2018
	f := domain.QueryFilters{Brand: " Opel ", Model: "Astra", PriceMax: &priceMax, YearMin: &yearMin}

	_, err := r.Search(context.Background(), "astra", f, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q := store.gotQuery
	if q.Limit != 100 {
		t.Errorf("limit = %d", q.Limit)
	}
	if len(q.Ranges) != 2 {
		t.Fatalf("ranges = %d, want 2", len(q.Ranges))
	}
	if q.Ranges[0].Key != domain.FieldPriceNum || *q.Ranges[0].LTE != priceMax || q.Ranges[0].GTE != nil {
		t.Errorf("price range = %+v", q.Ranges[0])
	}
	if q.Ranges[1].Key != domain.FieldYearNum || *q.Ranges[1].GTE != 2018 {
		t.Errorf("year range = %+v", q.Ranges[1])
	}
	if q.Match[domain.FieldBrandKey] != "opel" || q.Match[domain.FieldModelKey] != "astra" {
		t.Errorf("match = %v", q.Match)
	}
	if _, ok := q.Match[domain.FieldSeriesKey]; ok {
		t.Error("empty series must not add a match condition")
	}
}

func TestSearch_RelaxedDropsCategoricalKeepsRanges(t *testing.T) {
	store := &fakeStore{}
	r := New(&fakeEmbedder{vector: []float32{0.1}}, store, DefaultOptions(), nil)

	priceMax := 900000.0
	f := domain.QueryFilters{Brand: "Opel", Model: "Astra", PriceMax: &priceMax}

	if _, err := r.Search(context.Background(), "benzer araçlar", f, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.gotQuery.Match != nil {
		t.Errorf("relaxed search must not match categoricals: %v", store.gotQuery.Match)
	}
	if len(store.gotQuery.Ranges) != 1 {
		t.Errorf("ranges = %d, want 1", len(store.gotQuery.Ranges))
	}
}

func TestSearch_MinAboveMaxPassesThrough(t *testing.T) {
	store := &fakeStore{}
	r := New(&fakeEmbedder{vector: []float32{0.1}}, store, DefaultOptions(), nil)

	min, max := 500000.0, 300000.0
	f := domain.QueryFilters{PriceMin: &min, PriceMax: &max}
	if _, err := r.Search(context.Background(), "q", f, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rng := store.gotQuery.Ranges[0]
	if *rng.GTE != min || *rng.LTE != max {
		t.Errorf("bounds rewritten: %v %v", *rng.GTE, *rng.LTE)
	}
}

func TestSearch_DecodesCandidates(t *testing.T) {
	store := &fakeStore{hits: []semantic.Hit{
		{ID: "42", Score: 0.93, Payload: map[string]any{
			domain.FieldBrand:    "Opel",
			domain.FieldPriceNum: 1250000.0,
			domain.FieldYearNum:  int64(2018),
		}},
	}}
	r := New(&fakeEmbedder{vector: []float32{0.1}}, store, DefaultOptions(), nil)

	cands, err := r.Search(context.Background(), "astra", domain.QueryFilters{}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("candidates = %d", len(cands))
	}
	c := cands[0]
	if c.ID != "42" || c.Score != 0.93 {
		t.Errorf("candidate = %+v", c)
	}
	if c.Listing.Brand != "Opel" || c.Listing.PriceNum == nil || *c.Listing.PriceNum != 1250000 {
		t.Errorf("listing = %+v", c.Listing)
	}
	if c.Listing.YearNum == nil || *c.Listing.YearNum != 2018 {
		t.Errorf("year = %v", c.Listing.YearNum)
	}
}

func TestSearch_EmbedError(t *testing.T) {
	r := New(&fakeEmbedder{err: errors.New("down")}, &fakeStore{}, DefaultOptions(), nil)
	_, err := r.Search(context.Background(), "q", domain.QueryFilters{}, true)
	if !errors.Is(err, domain.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestSearch_StoreError(t *testing.T) {
	r := New(&fakeEmbedder{vector: []float32{1}}, &fakeStore{err: errors.New("down")}, DefaultOptions(), nil)
	_, err := r.Search(context.Background(), "q", domain.QueryFilters{}, true)
	if !errors.Is(err, domain.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
}
