package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/evyataryagoni/ipgeo/internal/geo"
	"github.com/goccy/go-json"
)

// DefaultIPAPIURL is the free ip-api.com JSON endpoint
const DefaultIPAPIURL = "http://ip-api.com/json/"

const ipapiFields = "status,message,country,countryCode,region,city,lat,lon,timezone,query"

// ipapiResponse is the subset of the ip-api.com JSON format we request
type ipapiResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	Query       string  `json:"query"`
}

// IPAPIBackend asks the ip-api.com HTTP API instead of a local file.
// Requests are not retried and carry no timeout of their own; they end
// with the caller's context.
type IPAPIBackend struct {
	baseURL string
	client  *http.Client
}

// NewIPAPIBackend creates a backend for the API at baseURL.
// An empty baseURL means DefaultIPAPIURL, a nil client http.DefaultClient.
func NewIPAPIBackend(baseURL string, client *http.Client) *IPAPIBackend {
	if baseURL == "" {
		baseURL = DefaultIPAPIURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &IPAPIBackend{baseURL: baseURL, client: client}
}

func (b *IPAPIBackend) Name() string {
	return NameIPAPI
}

func (b *IPAPIBackend) Lookup(ctx context.Context, ip string) (*geo.RawRecord, error) {
	endpoint := b.baseURL + url.PathEscape(ip) + "?fields=" + ipapiFields

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, geo.Upstream("cannot build ip-api request", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, geo.Upstream("ip-api request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, geo.Upstream("ip-api request failed", fmt.Errorf("unexpected status %s", resp.Status))
	}

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, geo.Upstream("cannot decode ip-api response", err)
	}

	// "fail" covers private and reserved ranges as well as bad queries
	if body.Status != "success" {
		return nil, geo.ErrNotFound
	}

	raw := &geo.RawRecord{
		CountryCode: body.CountryCode,
		CountryName: body.Country,
		City:        body.City,
		Latitude:    geo.Coordinate(body.Latitude),
		Longitude:   geo.Coordinate(body.Longitude),
		TimeZone:    body.Timezone,
	}
	if body.Region != "" {
		raw.Subdivisions = []string{body.Region}
	}

	return raw, nil
}

// Close is a no-op; idle connections belong to the shared client
func (b *IPAPIBackend) Close() error {
	return nil
}
