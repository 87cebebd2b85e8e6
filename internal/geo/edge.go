package geo

import (
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/evyataryagoni/ipgeo/internal/clientip"
	"github.com/evyataryagoni/ipgeo/internal/models"
)

// Edge proxy geolocation headers
const (
	HeaderCountry   = "CF-IPCountry"
	HeaderCity      = "CF-IPCity"
	HeaderRegion    = "CF-Region"
	HeaderTimezone  = "CF-Timezone"
	HeaderLatitude  = "CF-IPLatitude"
	HeaderLongitude = "CF-IPLongitude"
)

// UnknownCountry is what the edge proxy sends when it has no country.
const UnknownCountry = "XX"

// FromEdgeHeaders builds a record from the geolocation headers set by the
// edge proxy. It returns nil when the proxy sent no usable country or the
// client address cannot be determined; the caller then falls back to the
// database.
//
// The country header is echoed into both country_code and country_name.
func FromEdgeHeaders(r *http.Request) *models.GeoLocationInfo {
	country := r.Header.Get(HeaderCountry)
	if country == "" || country == UnknownCountry {
		return nil
	}

	ip := clientip.Resolve(r)
	if ip == "" {
		return nil
	}

	region := r.Header.Get(HeaderRegion)
	if region == "" {
		region = RegionUnknown
	}

	return &models.GeoLocationInfo{
		CountryCode: optString(country),
		CountryName: optString(country),
		City:        optString(r.Header.Get(HeaderCity)),
		Latitude:    parseCoordinate(r.Header.Get(HeaderLatitude)),
		Longitude:   parseCoordinate(r.Header.Get(HeaderLongitude)),
		IPv4:        ip,
		EU:          EUFlag(country),
		Region:      region,
		Timezone:    optString(r.Header.Get(HeaderTimezone)),
	}
}

// leadingDecimal matches the numeric prefix of a header value, so "40.7N"
// still reads as 40.7.
var leadingDecimal = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// parseCoordinate returns nil for values without a numeric prefix and for
// anything that is not finite, since JSON has no NaN or Infinity.
func parseCoordinate(value string) *float64 {
	prefix := leadingDecimal.FindString(strings.TrimSpace(value))
	if prefix == "" {
		return nil
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
