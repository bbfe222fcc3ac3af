package processors

import (
	"math"

	"github.com/username/yieldmap/backend/src/models"
)

// Yield classification thresholds, in percent.
const (
	lowYieldCeiling    = 5.0
	mediumYieldCeiling = 8.0
)

// GrossYield computes the gross rental yield of a listing in percent:
// annualized rent estimate over valuation estimate. It returns the absent
// sentinel when either operand is absent or the valuation is zero or
// infinite; the result is never ±Inf.
func GrossYield(l models.Listing) float64 {
	if models.IsAbsent(l.RentZestimate) || models.IsAbsent(l.Zestimate) {
		return models.Absent()
	}
	if l.Zestimate == 0 || math.IsInf(l.Zestimate, 0) {
		return models.Absent()
	}
	annualRent := l.RentZestimate * 12
	yield := annualRent / l.Zestimate * 100
	if math.IsInf(yield, 0) {
		return models.Absent()
	}
	return yield
}

// Classify maps a listing to exactly one yield category. Off-market status
// wins over any computed yield; an absent yield maps to Unknown.
func Classify(l models.Listing) models.YieldCategory {
	if l.OffMarket {
		return models.YieldOffMarket
	}
	yield := GrossYield(l)
	switch {
	case models.IsAbsent(yield):
		return models.YieldUnknown
	case yield < lowYieldCeiling:
		return models.YieldLow
	case yield < mediumYieldCeiling:
		return models.YieldMedium
	default:
		return models.YieldHigh
	}
}

// MarkerColor is the map marker color for a yield category.
func MarkerColor(c models.YieldCategory) string {
	switch c {
	case models.YieldOffMarket:
		return "black"
	case models.YieldUnknown:
		return "gray"
	case models.YieldLow:
		return "red"
	case models.YieldMedium:
		return "orange"
	default:
		return "green"
	}
}
