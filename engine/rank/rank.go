// Package rank orders retrieved candidates for presentation. An
// explicit sort directive yields a total order on one field; otherwise
// candidates are bucketed into a ±5% tolerance band around the target
// price/odometer derived from the filter bounds and ordered by distance
// within each band.
package rank

import (
	"math"
	"sort"

	"github.com/otoasist/otoasist/engine/domain"
)

const (
	// DefaultTopN is how many results survive ranking.
	DefaultTopN = 5
	// Tolerance is the ± window around a target that counts as "close".
	Tolerance = 0.05
)

// Target derives the target value for one dimension from its bounds:
// max alone -> max, min alone -> min, both -> midpoint, neither -> nil
// (the dimension contributes no ordering).
func Target(min, max *float64) *float64 {
	switch {
	case max != nil && min == nil:
		return max
	case min != nil && max == nil:
		return min
	case min != nil && max != nil:
		mid := (*min + *max) / 2
		return &mid
	}
	return nil
}

// InTolerance reports whether v lies within ±tol of target. A missing
// value is never in tolerance.
func InTolerance(v *float64, target, tol float64) bool {
	if v == nil {
		return false
	}
	return target*(1-tol) <= *v && *v <= target*(1+tol)
}

// Rank orders cars and truncates to topN (DefaultTopN when topN <= 0).
// The input slice is not mutated.
func Rank(cars []domain.CarResult, f domain.QueryFilters, topN int) []domain.CarResult {
	if topN <= 0 {
		topN = DefaultTopN
	}
	out := make([]domain.CarResult, len(cars))
	copy(out, cars)

	if f.SortBy != "" {
		sortByDirective(out, f.SortBy)
	} else {
		// Sequential re-sorts, price first then odometer. Both sorts
		// are stable, so when both targets exist the odometer ordering
		// dominates and price ordering survives only as a tie-break.
		if target := Target(f.PriceMin, f.PriceMax); target != nil {
			sortByBand(out, *target, func(c domain.CarResult) *float64 { return c.Price })
		}
		if target := Target(f.OdometerMin, f.OdometerMax); target != nil {
			sortByBand(out, *target, func(c domain.CarResult) *float64 { return c.Odometer })
		}
	}

	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// sortByDirective applies a total order on one field. Missing values
// sort as zero: first in descending order, last in ascending.
func sortByDirective(cars []domain.CarResult, dir domain.SortDirective) {
	key := func(c domain.CarResult) float64 { return 0 }
	switch dir {
	case domain.SortPriceAsc, domain.SortPriceDesc:
		key = func(c domain.CarResult) float64 { return deref(c.Price) }
	case domain.SortYearAsc, domain.SortYearDesc:
		key = func(c domain.CarResult) float64 {
			if c.Year == nil {
				return 0
			}
			return float64(*c.Year)
		}
	case domain.SortOdometerAsc, domain.SortOdometerDesc:
		key = func(c domain.CarResult) float64 { return deref(c.Odometer) }
	}

	desc := dir == domain.SortPriceDesc || dir == domain.SortYearDesc || dir == domain.SortOdometerDesc
	sort.SliceStable(cars, func(i, j int) bool {
		if desc {
			return key(cars[i]) > key(cars[j])
		}
		return key(cars[i]) < key(cars[j])
	})
}

// sortByBand partitions into within-tolerance (band 0) and outside
// (band 1), then orders by absolute distance from the target. Missing
// values are infinitely far and land at the end of band 1.
func sortByBand(cars []domain.CarResult, target float64, field func(domain.CarResult) *float64) {
	band := func(c domain.CarResult) int {
		if InTolerance(field(c), target, Tolerance) {
			return 0
		}
		return 1
	}
	dist := func(c domain.CarResult) float64 {
		v := field(c)
		if v == nil {
			return math.Inf(1)
		}
		return math.Abs(*v - target)
	}
	sort.SliceStable(cars, func(i, j int) bool {
		bi, bj := band(cars[i]), band(cars[j])
		if bi != bj {
			return bi < bj
		}
		return dist(cars[i]) < dist(cars[j])
	})
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
