package backend

import (
	"context"
	"net"

	"github.com/evyataryagoni/ipgeo/internal/geo"
	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
)

// networkReader is the part of *maxminddb.Reader this backend uses
type networkReader interface {
	LookupNetwork(ip net.IP, result any) (*net.IPNet, bool, error)
	Close() error
}

// MaxMindBackend reads a GeoLite2/GeoIP2 City database (.mmdb).
// The reader memory-maps the file and is safe for concurrent lookups.
type MaxMindBackend struct {
	reader networkReader
}

// OpenMaxMind opens the mmdb file at path
func OpenMaxMind(path string) (*MaxMindBackend, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, geo.Upstream("cannot open maxmind database", err)
	}
	return &MaxMindBackend{reader: reader}, nil
}

func (b *MaxMindBackend) Name() string {
	return NameMaxMind
}

// Lookup decodes the City record for ip. LookupNetwork is used instead of
// geoip2.Reader.City because only it tells "no record" apart from an
// empty one.
func (b *MaxMindBackend) Lookup(_ context.Context, ip string) (*geo.RawRecord, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, ErrInvalidIP
	}

	var record geoip2.City
	_, ok, err := b.reader.LookupNetwork(parsed, &record)
	if err != nil {
		return nil, geo.Upstream("maxmind lookup failed", err)
	}
	if !ok {
		return nil, geo.ErrNotFound
	}

	raw := &geo.RawRecord{
		CountryCode: record.Country.IsoCode,
		CountryName: record.Country.Names["en"],
		City:        record.City.Names["en"],
		Latitude:    geo.Coordinate(record.Location.Latitude),
		Longitude:   geo.Coordinate(record.Location.Longitude),
		TimeZone:    record.Location.TimeZone,
	}
	for _, sub := range record.Subdivisions {
		raw.Subdivisions = append(raw.Subdivisions, sub.IsoCode)
	}

	return raw, nil
}

func (b *MaxMindBackend) Close() error {
	return b.reader.Close()
}
