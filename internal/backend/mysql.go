package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evyataryagoni/ipgeo/internal/geo"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GeoLocationModel is the GORM model for the geo_locations table.
// Rows are keyed by exact address; there is no range matching.
type GeoLocationModel struct {
	IP          string   `gorm:"column:ip;primaryKey"`
	CountryCode string   `gorm:"column:country_code"`
	CountryName string   `gorm:"column:country_name"`
	City        string   `gorm:"column:city"`
	Latitude    *float64 `gorm:"column:latitude"`
	Longitude   *float64 `gorm:"column:longitude"`
	Timezone    string   `gorm:"column:timezone"`
	Region      string   `gorm:"column:region"`
}

// TableName overrides GORM's pluralized default
func (GeoLocationModel) TableName() string {
	return "geo_locations"
}

// MySQLBackend looks addresses up in a MySQL table through GORM
type MySQLBackend struct {
	db *gorm.DB
}

// NewMySQLBackend connects to the database behind dsn
// (user:password@tcp(host:port)/dbname?parseTime=true)
func NewMySQLBackend(ctx context.Context, dsn string) (*MySQLBackend, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, geo.Upstream("failed to connect to MySQL", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, geo.Upstream("failed to ping MySQL database", err)
	}

	return &MySQLBackend{db: db}, nil
}

func (b *MySQLBackend) Name() string {
	return NameMySQL
}

func (b *MySQLBackend) Lookup(ctx context.Context, ip string) (*geo.RawRecord, error) {
	var row GeoLocationModel

	err := b.db.WithContext(ctx).Where("ip = ?", ip).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, geo.ErrNotFound
		}
		return nil, geo.Upstream("database query failed", err)
	}

	raw := &geo.RawRecord{
		CountryCode: row.CountryCode,
		CountryName: row.CountryName,
		City:        row.City,
		Latitude:    row.Latitude,
		Longitude:   row.Longitude,
		TimeZone:    row.Timezone,
	}
	if row.Region != "" {
		raw.Subdivisions = []string{row.Region}
	}

	return raw, nil
}

func (b *MySQLBackend) Close() error {
	if b.db == nil {
		return nil
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
