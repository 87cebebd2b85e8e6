package backend

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/evyataryagoni/ipgeo/internal/geo"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const selectGeoLocation = "SELECT \\* FROM `geo_locations` WHERE ip = \\? .*"

var geoLocationColumns = []string{"ip", "country_code", "country_name", "city", "latitude", "longitude", "timezone", "region"}

// setupMockDB creates a mock database for testing
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	return db, mock, sqlDB
}

// TestMySQLBackend_Lookup_Success tests successful lookup
func TestMySQLBackend_Lookup_Success(t *testing.T) {
	db, mock, sqlDB := setupMockDB(t)
	defer sqlDB.Close()

	b := &MySQLBackend{db: db}

	// GORM adds LIMIT 1 to First() queries
	rows := sqlmock.NewRows(geoLocationColumns).
		AddRow("8.8.8.8", "US", "United States", "New York", 40.7128, -74.006, "America/New_York", "NY")

	mock.ExpectQuery(selectGeoLocation).
		WithArgs("8.8.8.8", 1).
		WillReturnRows(rows)

	raw, err := b.Lookup(context.Background(), "8.8.8.8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.CountryCode != "US" {
		t.Errorf("expected 'US', got '%s'", raw.CountryCode)
	}
	if raw.City != "New York" {
		t.Errorf("expected 'New York', got '%s'", raw.City)
	}
	if raw.Longitude == nil || *raw.Longitude != -74.006 {
		t.Errorf("expected longitude -74.006, got %v", raw.Longitude)
	}
	if raw.Region() != "NY" {
		t.Errorf("expected region 'NY', got '%s'", raw.Region())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

// TestMySQLBackend_Lookup_NullColumns tests NULL coordinates and empty region
func TestMySQLBackend_Lookup_NullColumns(t *testing.T) {
	db, mock, sqlDB := setupMockDB(t)
	defer sqlDB.Close()

	b := &MySQLBackend{db: db}

	rows := sqlmock.NewRows(geoLocationColumns).
		AddRow("1.1.1.1", "AU", "Australia", "", nil, nil, "", "")

	mock.ExpectQuery(selectGeoLocation).
		WithArgs("1.1.1.1", 1).
		WillReturnRows(rows)

	raw, err := b.Lookup(context.Background(), "1.1.1.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.Latitude != nil || raw.Longitude != nil {
		t.Error("expected nil coordinates")
	}
	if raw.Region() != geo.RegionUnknown {
		t.Errorf("expected region '00', got '%s'", raw.Region())
	}

	mock.ExpectationsWereMet()
}

// TestMySQLBackend_Lookup_NotFound tests IP not found
func TestMySQLBackend_Lookup_NotFound(t *testing.T) {
	db, mock, sqlDB := setupMockDB(t)
	defer sqlDB.Close()

	b := &MySQLBackend{db: db}

	mock.ExpectQuery(selectGeoLocation).
		WithArgs("192.168.1.1", 1).
		WillReturnRows(sqlmock.NewRows(geoLocationColumns))

	raw, err := b.Lookup(context.Background(), "192.168.1.1")
	if !errors.Is(err, geo.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if raw != nil {
		t.Error("expected nil record")
	}

	mock.ExpectationsWereMet()
}

// TestMySQLBackend_Lookup_DatabaseError tests query failures
func TestMySQLBackend_Lookup_DatabaseError(t *testing.T) {
	db, mock, sqlDB := setupMockDB(t)
	defer sqlDB.Close()

	b := &MySQLBackend{db: db}

	mock.ExpectQuery(selectGeoLocation).
		WithArgs("8.8.8.8", 1).
		WillReturnError(errors.New("connection refused"))

	_, err := b.Lookup(context.Background(), "8.8.8.8")

	var upstream *geo.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Op != "database query failed" {
		t.Errorf("unexpected op: %s", upstream.Op)
	}

	mock.ExpectationsWereMet()
}

// TestMySQLBackend_Close tests closing the connection
func TestMySQLBackend_Close(t *testing.T) {
	db, mock, _ := setupMockDB(t)

	b := &MySQLBackend{db: db}
	mock.ExpectClose()

	if err := b.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

// TestMySQLBackend_Close_NilDB tests close without a connection
func TestMySQLBackend_Close_NilDB(t *testing.T) {
	b := &MySQLBackend{db: nil}

	if err := b.Close(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

// TestGeoLocationModel_TableName tests the table name override
func TestGeoLocationModel_TableName(t *testing.T) {
	if name := (GeoLocationModel{}).TableName(); name != "geo_locations" {
		t.Errorf("expected table name 'geo_locations', got '%s'", name)
	}
}
