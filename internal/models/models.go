package models

// GeoLocationInfo is the response body of both /ip routes.
// The shape is identical whether the data came from edge headers or a
// database backend; nullable fields are pointers so they encode as null.
type GeoLocationInfo struct {
	CountryCode *string  `json:"country_code"`
	CountryName *string  `json:"country_name"`
	City        *string  `json:"city"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	IPv4        string   `json:"IPv4"`
	EU          string   `json:"eu"`       // "1" or "0", never a boolean
	Region      string   `json:"region"`   // ISO subdivision code or "00"
	Timezone    *string  `json:"timezone"` // IANA zone name
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}
