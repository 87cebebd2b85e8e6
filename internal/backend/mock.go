package backend

import (
	"context"

	"github.com/evyataryagoni/ipgeo/internal/geo"
)

// MockBackend is a test double for the Backend interface.
// It serves records from Data and records every call.
type MockBackend struct {
	Data map[string]*geo.RawRecord

	LookupCalls []string
	CloseCalled bool

	LookupError error
	CloseError  error
}

// NewMockBackend creates a mock pre-populated with common test addresses
func NewMockBackend() *MockBackend {
	return &MockBackend{
		Data: map[string]*geo.RawRecord{
			"8.8.8.8": {
				CountryCode:  "US",
				CountryName:  "United States",
				City:         "New York",
				Latitude:     float64Ptr(40.7128),
				Longitude:    float64Ptr(-74.006),
				TimeZone:     "America/New_York",
				Subdivisions: []string{"NY"},
			},
			"203.0.113.10": {
				CountryCode:  "FR",
				CountryName:  "France",
				City:         "Paris",
				Latitude:     float64Ptr(48.8566),
				Longitude:    float64Ptr(2.3522),
				TimeZone:     "Europe/Paris",
				Subdivisions: []string{"IDF"},
			},
			"1.1.1.1": {
				CountryCode: "AU",
				CountryName: "Australia",
			},
		},
		LookupCalls: []string{},
	}
}

// NewEmptyMockBackend creates a mock with no records
func NewEmptyMockBackend() *MockBackend {
	return &MockBackend{
		Data:        map[string]*geo.RawRecord{},
		LookupCalls: []string{},
	}
}

func (m *MockBackend) Name() string {
	return "mock"
}

func (m *MockBackend) Lookup(_ context.Context, ip string) (*geo.RawRecord, error) {
	m.LookupCalls = append(m.LookupCalls, ip)

	if m.LookupError != nil {
		return nil, m.LookupError
	}

	raw, ok := m.Data[ip]
	if !ok {
		return nil, geo.ErrNotFound
	}
	return raw, nil
}

func (m *MockBackend) Close() error {
	m.CloseCalled = true
	return m.CloseError
}

func float64Ptr(v float64) *float64 {
	return &v
}
