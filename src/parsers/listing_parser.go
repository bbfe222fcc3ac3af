package parsers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/username/yieldmap/backend/src/logger"
	"github.com/username/yieldmap/backend/src/models"
)

// listingAddress is the JSON-encoded address column of the listings CSV.
type listingAddress struct {
	StreetAddress string `json:"streetAddress"`
}

// ListingParser reads the scraped listings CSV export into Listing records.
// Columns are located by header name, so column order in the export does
// not matter.
type ListingParser struct{}

func NewListingParser() *ListingParser {
	return &ListingParser{}
}

func (p *ListingParser) Parse(file io.Reader) ([]models.Listing, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"zpid", "url"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("listings CSV missing required column %q", required)
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	var listings []models.Listing
	for _, record := range records {
		field := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		id := field("zpid")
		if id == "" {
			logger.L.Debug("Skipping listing row without zpid")
			continue
		}

		listings = append(listings, models.Listing{
			ID:            id,
			SourceURL:     field("url"),
			StreetAddress: parseStreetAddress(field("address")),
			Latitude:      parseFloatOrAbsent(field("latitude")),
			Longitude:     parseFloatOrAbsent(field("longitude")),
			Price:         parseFloatOrAbsent(field("price")),
			Bedrooms:      parseFloatOrAbsent(field("bedrooms")),
			Bathrooms:     parseFloatOrAbsent(field("bathrooms")),
			LivingArea:    parseFloatOrAbsent(field("livingArea")),
			Zestimate:     parseFloatOrAbsent(field("zestimate")),
			RentZestimate: parseFloatOrAbsent(field("rentZestimate")),
			OffMarket:     parseBoolFlag(field("isoff_market")),
		})
	}

	return listings, nil
}

// parseFloatOrAbsent coerces raw textual numbers; anything non-numeric
// becomes the absent sentinel rather than an error.
func parseFloatOrAbsent(raw string) float64 {
	if raw == "" {
		return models.Absent()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return models.Absent()
	}
	return v
}

func parseBoolFlag(raw string) bool {
	switch strings.ToLower(raw) {
	case "true", "1", "t", "yes":
		return true
	default:
		return false
	}
}

// parseStreetAddress extracts streetAddress from the JSON-encoded address
// column. A malformed address degrades to empty, it never fails the row.
func parseStreetAddress(raw string) string {
	if raw == "" {
		return ""
	}
	var addr listingAddress
	if err := json.Unmarshal([]byte(raw), &addr); err != nil {
		logger.L.Debug("Could not decode address JSON, leaving street address empty", "error", err)
		return ""
	}
	return addr.StreetAddress
}
