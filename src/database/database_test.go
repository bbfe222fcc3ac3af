package database

import (
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/username/yieldmap/backend/src/logger"
	"github.com/username/yieldmap/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error", "json")
	os.Exit(m.Run())
}

func TestListingRoundTrip(t *testing.T) {
	InitDB(":memory:")
	in := models.Listing{
		ID:            "101",
		SourceURL:     "https://example.com/homes/101",
		StreetAddress: "12 Main St",
		Latitude:      35.1,
		Longitude:     -90.0,
		Price:         250000,
		Bedrooms:      3,
		Bathrooms:     2,
		LivingArea:    models.Absent(),
		Zestimate:     240000,
		RentZestimate: models.Absent(),
		OffMarket:     true,
	}
	if err := ReplaceListings([]models.Listing{in}); err != nil {
		t.Fatalf("ReplaceListings: %v", err)
	}

	out, err := GetListingByID("101")
	if err != nil {
		t.Fatalf("GetListingByID: %v", err)
	}
	if out.SourceURL != in.SourceURL || out.StreetAddress != in.StreetAddress {
		t.Errorf("string fields: got %+v", out)
	}
	if out.Latitude != in.Latitude || out.Price != in.Price {
		t.Errorf("numeric fields: got lat=%v price=%v", out.Latitude, out.Price)
	}
	if !models.IsAbsent(out.LivingArea) || !models.IsAbsent(out.RentZestimate) {
		t.Errorf("absent fields must round-trip as absent, got area=%v rent=%v", out.LivingArea, out.RentZestimate)
	}
	if !out.OffMarket {
		t.Error("OffMarket flag lost in round trip")
	}
}

func TestGetListingByID_Unknown(t *testing.T) {
	InitDB(":memory:")
	_, err := GetListingByID("nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("error: got %v, want sql.ErrNoRows", err)
	}
}

func TestAllListings_PreservesInsertionOrder(t *testing.T) {
	InitDB(":memory:")
	in := []models.Listing{
		{ID: "3", SourceURL: "https://example.com/3"},
		{ID: "1", SourceURL: "https://example.com/1"},
		{ID: "2", SourceURL: "https://example.com/2"},
	}
	if err := ReplaceListings(in); err != nil {
		t.Fatalf("ReplaceListings: %v", err)
	}
	out, err := AllListings()
	if err != nil {
		t.Fatalf("AllListings: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("count: got %d, want 3", len(out))
	}
	for i, want := range []string{"3", "1", "2"} {
		if out[i].ID != want {
			t.Errorf("position %d: got %q, want %q", i, out[i].ID, want)
		}
	}
}
