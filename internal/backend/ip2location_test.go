package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/evyataryagoni/ipgeo/internal/geo"
	"github.com/ip2location/ip2location-go/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ip2locationUnavailable = "This parameter is unavailable for selected data file. Please upgrade the data file."

type fakeIP2LocationDB struct {
	records map[string]ip2location.IP2Locationrecord
	err     error
	closed  bool
}

func (f *fakeIP2LocationDB) Get_all(ipaddress string) (ip2location.IP2Locationrecord, error) {
	if f.err != nil {
		return ip2location.IP2Locationrecord{}, f.err
	}
	record, ok := f.records[ipaddress]
	if !ok {
		return ip2location.IP2Locationrecord{Country_short: "-", Country_long: "-"}, nil
	}
	return record, nil
}

func (f *fakeIP2LocationDB) Close() {
	f.closed = true
}

func newFakeIP2Location() *fakeIP2LocationDB {
	return &fakeIP2LocationDB{
		records: map[string]ip2location.IP2Locationrecord{
			"8.8.8.8": {
				Country_short: "US",
				Country_long:  "United States of America",
				Region:        "California",
				City:          "Mountain View",
				Latitude:      37.40599,
				Longitude:     -122.078514,
				Timezone:      "-07:00",
			},
			"2.2.2.2": {
				Country_short: "FR",
				Country_long:  "France",
				Region:        ip2locationUnavailable,
				City:          ip2locationUnavailable,
				Timezone:      "Europe/Paris",
			},
		},
	}
}

func TestIP2LocationBackend_Lookup(t *testing.T) {
	b := &IP2LocationBackend{db: newFakeIP2Location()}

	raw, err := b.Lookup(context.Background(), "8.8.8.8")
	require.NoError(t, err)

	assert.Equal(t, "US", raw.CountryCode)
	assert.Equal(t, "United States of America", raw.CountryName)
	assert.Equal(t, "Mountain View", raw.City)
	assert.Equal(t, "California", raw.Region())
	assert.Empty(t, raw.TimeZone, "UTC offsets are not IANA zone names")
	require.NotNil(t, raw.Latitude)
	assert.InDelta(t, 37.40599, *raw.Latitude, 1e-4)
}

func TestIP2LocationBackend_LookupUnavailableColumns(t *testing.T) {
	b := &IP2LocationBackend{db: newFakeIP2Location()}

	raw, err := b.Lookup(context.Background(), "2.2.2.2")
	require.NoError(t, err)

	assert.Equal(t, "FR", raw.CountryCode)
	assert.Empty(t, raw.City)
	assert.Equal(t, geo.RegionUnknown, raw.Region())
	assert.Equal(t, "Europe/Paris", raw.TimeZone)
	assert.Nil(t, raw.Latitude)
	assert.Nil(t, raw.Longitude)
}

func TestIP2LocationBackend_LookupNotFound(t *testing.T) {
	b := &IP2LocationBackend{db: newFakeIP2Location()}

	_, err := b.Lookup(context.Background(), "10.0.0.1")
	assert.True(t, errors.Is(err, geo.ErrNotFound))
}

func TestIP2LocationBackend_LookupError(t *testing.T) {
	db := newFakeIP2Location()
	db.err = errors.New("read error")
	b := &IP2LocationBackend{db: db}

	_, err := b.Lookup(context.Background(), "8.8.8.8")

	var upstream *geo.UpstreamError
	assert.True(t, errors.As(err, &upstream))
}

func TestIP2LocationBackend_Close(t *testing.T) {
	db := newFakeIP2Location()
	b := &IP2LocationBackend{db: db}

	assert.NoError(t, b.Close())
	assert.True(t, db.closed)
}

func TestOpenIP2LocationMissingFile(t *testing.T) {
	_, err := OpenIP2Location(filepath.Join(t.TempDir(), "IP2LOCATION.BIN"))
	assert.Error(t, err)
}
