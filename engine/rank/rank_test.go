package rank

import (
	"testing"

	"github.com/otoasist/otoasist/engine/domain"
)

func TestTarget(t *testing.T) {
	min, max := 1000000.0, 1300000.0

	if got := Target(nil, &max); got == nil || *got != max {
		t.Errorf("max-only target = %v", got)
	}
	if got := Target(&min, nil); got == nil || *got != min {
		t.Errorf("min-only target = %v", got)
	}
	if got := Target(&min, &max); got == nil || *got != 1150000 {
		t.Errorf("midpoint target = %v", got)
	}
	if got := Target(nil, nil); got != nil {
		t.Errorf("absent bounds target = %v", *got)
	}
}

func TestInTolerance(t *testing.T) {
	target := 1000000.0

	if !InTolerance(f(target), target, Tolerance) {
		t.Error("exact target must be in band 0")
	}
	if !InTolerance(f(target*1.05), target, Tolerance) {
		t.Error("target*1.05 is on the band edge, still inside")
	}
	if InTolerance(f(target*1.051), target, Tolerance) {
		t.Error("target*1.051 must be outside the band")
	}
	if InTolerance(nil, target, Tolerance) {
		t.Error("missing value is never in tolerance")
	}
}

func TestRank_DirectiveOverridesHeuristic(t *testing.T) {
	max := 1000000.0
	filters := domain.QueryFilters{PriceMax: &max, SortBy: domain.SortPriceAsc}

	// With the banded heuristic, 990k (in band) would beat 200k.
	// The directive must win: a plain ascending total order.
	cars := []domain.CarResult{
		car(f(990000), nil, nil),
		car(f(200000), nil, nil),
		car(f(500000), nil, nil),
	}
	got := Rank(cars, filters, 0)
	if *got[0].Price != 200000 || *got[1].Price != 500000 || *got[2].Price != 990000 {
		t.Errorf("ascending order broken: %v %v %v", *got[0].Price, *got[1].Price, *got[2].Price)
	}
}

func TestRank_DirectiveMissingValues(t *testing.T) {
	cars := []domain.CarResult{
		car(f(300000), nil, nil),
		car(nil, nil, nil),
		car(f(100000), nil, nil),
	}

	asc := Rank(cars, domain.QueryFilters{SortBy: domain.SortPriceAsc}, 0)
	if asc[0].Price != nil {
		t.Errorf("missing price must sort first ascending (as 0), got %v", asc[0].Price)
	}

	desc := Rank(cars, domain.QueryFilters{SortBy: domain.SortPriceDesc}, 0)
	if desc[len(desc)-1].Price != nil {
		t.Error("missing price must sort last descending (as 0)")
	}
	if *desc[0].Price != 300000 {
		t.Errorf("descending head = %v", *desc[0].Price)
	}
}

func TestRank_YearDirective(t *testing.T) {
	cars := []domain.CarResult{
		car(nil, i(2015), nil),
		car(nil, i(2021), nil),
		car(nil, i(2018), nil),
	}
	got := Rank(cars, domain.QueryFilters{SortBy: domain.SortYearDesc}, 0)
	if *got[0].Year != 2021 || *got[2].Year != 2015 {
		t.Errorf("year order = %d %d %d", *got[0].Year, *got[1].Year, *got[2].Year)
	}
}

func TestRank_ToleranceBandedPrice(t *testing.T) {
	max := 1000000.0
	filters := domain.QueryFilters{PriceMax: &max}

	cars := []domain.CarResult{
		car(f(700000), nil, nil),  // far below, band 1
		car(f(1030000), nil, nil), // within +5%, band 0 (range predicate may have been relaxed away upstream)
		car(nil, nil, nil),        // missing, band 1, infinitely far
		car(f(990000), nil, nil),  // within -5%, band 0, closer
	}
	got := Rank(cars, filters, 0)

	if *got[0].Price != 990000 || *got[1].Price != 1030000 {
		t.Errorf("band 0 order = %v %v", got[0].Price, got[1].Price)
	}
	if *got[2].Price != 700000 {
		t.Errorf("band 1 head = %v", got[2].Price)
	}
	if got[3].Price != nil {
		t.Error("missing price must sort last")
	}
}

func TestRank_OdometerDominatesWhenBothTargetsSet(t *testing.T) {
	// The odometer re-sort is applied after the price sort, so with
	// both targets present the final order follows the odometer keys.
	priceMax, kmMax := 1000000.0, 100000.0
	filters := domain.QueryFilters{PriceMax: &priceMax, OdometerMax: &kmMax}

	cars := []domain.CarResult{
		car(f(1000000), nil, f(180000)), // perfect price, far odometer
		car(f(700000), nil, f(98000)),   // far price, odometer in band
	}
	got := Rank(cars, filters, 0)
	if *got[0].Odometer != 98000 {
		t.Errorf("odometer ordering must dominate, head = %+v", got[0])
	}
}

func TestRank_PriceBreaksOdometerTies(t *testing.T) {
	priceMax, kmMax := 1000000.0, 100000.0
	filters := domain.QueryFilters{PriceMax: &priceMax, OdometerMax: &kmMax}

	// Identical odometer keys; the stable odometer re-sort must keep
	// the earlier price ordering.
	cars := []domain.CarResult{
		car(f(600000), nil, f(98000)),
		car(f(1000000), nil, f(98000)),
	}
	got := Rank(cars, filters, 0)
	if *got[0].Price != 1000000 {
		t.Errorf("price tie-break lost: head price = %v", *got[0].Price)
	}
}

func TestRank_NoFiltersPreservesSimilarityOrder(t *testing.T) {
	cars := []domain.CarResult{
		car(f(500000), nil, nil),
		car(f(100000), nil, nil),
		car(f(900000), nil, nil),
	}
	got := Rank(cars, domain.QueryFilters{}, 0)
	for idx := range cars {
		if *got[idx].Price != *cars[idx].Price {
			t.Fatalf("order changed at %d", idx)
		}
	}
}

func TestRank_TruncatesToTopN(t *testing.T) {
	var cars []domain.CarResult
	for i := 0; i < 12; i++ {
		cars = append(cars, car(f(100000), nil, nil))
	}
	if got := Rank(cars, domain.QueryFilters{}, 0); len(got) != DefaultTopN {
		t.Errorf("len = %d, want %d", len(got), DefaultTopN)
	}
	if got := Rank(cars, domain.QueryFilters{}, 3); len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	cars := []domain.CarResult{
		car(f(900000), nil, nil),
		car(f(100000), nil, nil),
	}
	Rank(cars, domain.QueryFilters{SortBy: domain.SortPriceAsc}, 0)
	if *cars[0].Price != 900000 {
		t.Error("input slice mutated")
	}
}

func car(price *float64, year *int, odo *float64) domain.CarResult {
	return domain.CarResult{Price: price, Year: year, Odometer: odo}
}

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }
