package geo

import "github.com/evyataryagoni/ipgeo/internal/models"

// RegionUnknown is the region value used when no subdivision is known.
const RegionUnknown = "00"

// RawRecord is the backend-neutral result of a database lookup.
// Every backend maps its native shape into a RawRecord; Normalize turns it
// into the response record. Empty strings mean "absent".
type RawRecord struct {
	CountryCode  string   `json:"country_code"`
	CountryName  string   `json:"country_name"`
	City         string   `json:"city"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	TimeZone     string   `json:"timezone"`
	Subdivisions []string `json:"subdivisions"` // ISO codes, most general first
}

// Region returns the ISO code of the first subdivision, or RegionUnknown.
func (r *RawRecord) Region() string {
	if len(r.Subdivisions) == 0 || r.Subdivisions[0] == "" {
		return RegionUnknown
	}
	return r.Subdivisions[0]
}

// Normalize builds the response record for ip from a backend record.
func Normalize(ip string, raw *RawRecord) *models.GeoLocationInfo {
	return &models.GeoLocationInfo{
		CountryCode: optString(raw.CountryCode),
		CountryName: optString(raw.CountryName),
		City:        optString(raw.City),
		Latitude:    raw.Latitude,
		Longitude:   raw.Longitude,
		IPv4:        ip,
		EU:          EUFlag(raw.CountryCode),
		Region:      raw.Region(),
		Timezone:    optString(raw.TimeZone),
	}
}

// Coordinate converts a backend coordinate into its nullable form.
// Databases that store coordinates as plain floats use 0 for "unknown",
// so 0 maps to nil.
func Coordinate(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
