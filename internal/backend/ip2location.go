package backend

import (
	"context"
	"strings"

	"github.com/evyataryagoni/ipgeo/internal/geo"
	"github.com/ip2location/ip2location-go/v9"
)

// ip2locationReader is the part of *ip2location.DB this backend uses
type ip2locationReader interface {
	Get_all(ipaddress string) (ip2location.IP2Locationrecord, error)
	Close()
}

// IP2LocationBackend reads an IP2Location BIN database
type IP2LocationBackend struct {
	db ip2locationReader
}

// OpenIP2Location opens the BIN file at path
func OpenIP2Location(path string) (*IP2LocationBackend, error) {
	db, err := ip2location.OpenDB(path)
	if err != nil {
		return nil, geo.Upstream("cannot open ip2location database", err)
	}
	return &IP2LocationBackend{db: db}, nil
}

func (b *IP2LocationBackend) Name() string {
	return NameIP2Location
}

// Lookup maps the BIN record for ip. The library answers unknown ranges
// with "-" and unsupported columns with an explanatory sentence instead of
// errors, so both are treated as absent.
func (b *IP2LocationBackend) Lookup(_ context.Context, ip string) (*geo.RawRecord, error) {
	record, err := b.db.Get_all(ip)
	if err != nil {
		return nil, geo.Upstream("ip2location lookup failed", err)
	}

	countryCode := ip2locationValue(record.Country_short)
	if len(countryCode) != 2 {
		return nil, geo.ErrNotFound
	}

	raw := &geo.RawRecord{
		CountryCode: countryCode,
		CountryName: ip2locationValue(record.Country_long),
		City:        ip2locationValue(record.City),
		Latitude:    geo.Coordinate(float64(record.Latitude)),
		Longitude:   geo.Coordinate(float64(record.Longitude)),
	}

	// BIN files carry UTC offsets like "+01:00"; only IANA names are kept
	if tz := ip2locationValue(record.Timezone); strings.Contains(tz, "/") {
		raw.TimeZone = tz
	}
	if region := ip2locationValue(record.Region); region != "" {
		raw.Subdivisions = []string{region}
	}

	return raw, nil
}

func (b *IP2LocationBackend) Close() error {
	b.db.Close()
	return nil
}

func ip2locationValue(s string) string {
	if s == "-" || (strings.Contains(s, " ") && strings.HasSuffix(s, ".")) {
		return ""
	}
	return s
}
