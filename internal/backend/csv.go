package backend

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/evyataryagoni/ipgeo/internal/geo"
)

// csvColumns is the expected header of a dataset file
var csvColumns = []string{"ip", "country_code", "country_name", "city", "latitude", "longitude", "timezone", "region"}

// CSVBackend keeps a whole CSV dataset in memory, keyed by exact address.
// It also feeds the Redis loader.
type CSVBackend struct {
	data map[string]*geo.RawRecord
}

// NewCSVBackend reads the dataset at filePath.
// Rows with the wrong column count or unparsable coordinates are skipped.
func NewCSVBackend(filePath string) (*CSVBackend, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	b := &CSVBackend{data: make(map[string]*geo.RawRecord, len(rows))}

	for i, row := range rows {
		if i == 0 && row[0] == csvColumns[0] {
			continue
		}
		if len(row) != len(csvColumns) {
			continue
		}

		lat, err := parseOptionalFloat(row[4])
		if err != nil {
			continue
		}
		lon, err := parseOptionalFloat(row[5])
		if err != nil {
			continue
		}

		raw := &geo.RawRecord{
			CountryCode: row[1],
			CountryName: row[2],
			City:        row[3],
			Latitude:    lat,
			Longitude:   lon,
			TimeZone:    row[6],
		}
		if row[7] != "" {
			raw.Subdivisions = []string{row[7]}
		}
		b.data[row[0]] = raw
	}

	return b, nil
}

func (b *CSVBackend) Name() string {
	return NameCSV
}

func (b *CSVBackend) Lookup(_ context.Context, ip string) (*geo.RawRecord, error) {
	raw, ok := b.data[ip]
	if !ok {
		return nil, geo.ErrNotFound
	}
	return raw, nil
}

// Len returns the number of loaded rows
func (b *CSVBackend) Len() int {
	return len(b.data)
}

// Each calls fn for every loaded row until fn returns an error
func (b *CSVBackend) Each(fn func(ip string, raw *geo.RawRecord) error) error {
	for ip, raw := range b.data {
		if err := fn(ip, raw); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; everything lives in memory
func (b *CSVBackend) Close() error {
	return nil
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
