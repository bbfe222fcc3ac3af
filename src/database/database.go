package database

import (
	"database/sql"
	"fmt"
	stdlog "log"

	"github.com/username/yieldmap/backend/src/logger"
	"github.com/username/yieldmap/backend/src/models"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Ensuring database schema", "databasePath", databasePath)
	} else {
		stdlog.Println("Ensuring database schema for:", databasePath)
	}

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		source_url TEXT NOT NULL,
		street_address TEXT,
		latitude REAL,
		longitude REAL,
		price REAL,
		bedrooms REAL,
		bathrooms REAL,
		living_area REAL,
		zestimate REAL,
		rent_zestimate REAL,
		off_market BOOLEAN DEFAULT FALSE
	);`

	if _, err := DB.Exec(createTableStatement); err != nil {
		stdlog.Fatalf("failed to create listings table: %v", err)
	}
}

// ReplaceListings atomically swaps the stored listing set for the given one.
// The store is write-once per startup; everything after load is read-only.
func ReplaceListings(listings []models.Listing) error {
	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("error beginning listings transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM listings`); err != nil {
		return fmt.Errorf("error clearing listings table: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO listings (id, source_url, street_address, latitude, longitude, price, bedrooms, bathrooms, living_area, zestimate, rent_zestimate, off_market) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing listings insert statement: %w", err)
	}
	defer stmt.Close()

	for _, l := range listings {
		_, err := stmt.Exec(l.ID, l.SourceURL, l.StreetAddress,
			nullIfAbsent(l.Latitude), nullIfAbsent(l.Longitude), nullIfAbsent(l.Price),
			nullIfAbsent(l.Bedrooms), nullIfAbsent(l.Bathrooms), nullIfAbsent(l.LivingArea),
			nullIfAbsent(l.Zestimate), nullIfAbsent(l.RentZestimate), l.OffMarket)
		if err != nil {
			return fmt.Errorf("error inserting listing (ID: %s): %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing listings: %w", err)
	}
	return nil
}

// GetListingByID returns the listing with the given id, or sql.ErrNoRows.
func GetListingByID(id string) (models.Listing, error) {
	row := DB.QueryRow(`SELECT id, source_url, street_address, latitude, longitude, price, bedrooms, bathrooms, living_area, zestimate, rent_zestimate, off_market FROM listings WHERE id = ?`, id)
	return scanListing(row)
}

// AllListings returns every stored listing in insertion order.
func AllListings() ([]models.Listing, error) {
	rows, err := DB.Query(`SELECT id, source_url, street_address, latitude, longitude, price, bedrooms, bathrooms, living_area, zestimate, rent_zestimate, off_market FROM listings ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("error querying listings: %w", err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (models.Listing, error) {
	var l models.Listing
	var lat, lng, price, beds, baths, area, zest, rentZest sql.NullFloat64
	err := row.Scan(&l.ID, &l.SourceURL, &l.StreetAddress, &lat, &lng, &price,
		&beds, &baths, &area, &zest, &rentZest, &l.OffMarket)
	if err != nil {
		return models.Listing{}, err
	}
	l.Latitude = floatOrAbsent(lat)
	l.Longitude = floatOrAbsent(lng)
	l.Price = floatOrAbsent(price)
	l.Bedrooms = floatOrAbsent(beds)
	l.Bathrooms = floatOrAbsent(baths)
	l.LivingArea = floatOrAbsent(area)
	l.Zestimate = floatOrAbsent(zest)
	l.RentZestimate = floatOrAbsent(rentZest)
	return l, nil
}

// NaN is not representable in sqlite, so absent values round-trip as NULL.
func nullIfAbsent(v float64) any {
	if models.IsAbsent(v) {
		return nil
	}
	return v
}

func floatOrAbsent(v sql.NullFloat64) float64 {
	if !v.Valid {
		return models.Absent()
	}
	return v.Float64
}
