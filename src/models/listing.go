package models

import "math"

// Listing is a single property record loaded from the listings CSV.
// Numeric fields that were missing or non-numeric in the raw input are
// carried as NaN rather than pointers, so downstream arithmetic degrades
// to "absent" instead of branching on nil everywhere.
type Listing struct {
	ID            string
	SourceURL     string
	StreetAddress string
	Latitude      float64
	Longitude     float64
	Price         float64
	Bedrooms      float64
	Bathrooms     float64
	LivingArea    float64
	Zestimate     float64
	RentZestimate float64
	OffMarket     bool
}

// Absent is the sentinel for a missing numeric field.
func Absent() float64 { return math.NaN() }

// IsAbsent reports whether a numeric field is missing.
func IsAbsent(v float64) bool { return math.IsNaN(v) }

// HasCoordinates reports whether the listing can be placed on the map.
// Listings missing either coordinate are excluded from rendering entirely.
func (l Listing) HasCoordinates() bool {
	return !IsAbsent(l.Latitude) && !IsAbsent(l.Longitude)
}

// YieldCategory is the display classification of a listing's gross rental yield.
type YieldCategory int

const (
	YieldOffMarket YieldCategory = iota
	YieldUnknown
	YieldLow
	YieldMedium
	YieldHigh
)

func (c YieldCategory) String() string {
	switch c {
	case YieldOffMarket:
		return "off_market"
	case YieldUnknown:
		return "unknown"
	case YieldLow:
		return "low"
	case YieldMedium:
		return "medium"
	case YieldHigh:
		return "high"
	default:
		return "unknown"
	}
}
