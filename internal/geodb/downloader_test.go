package geodb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/evyataryagoni/ipgeo/internal/geo"
	"github.com/evyataryagoni/ipgeo/internal/logger"
	"github.com/jarcoal/httpmock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	sourceURL = "https://example.com/GeoLite2-City.mmdb"
	mirrorURL = "https://mirror.example.com/files/GeoLite2-City.mmdb"
	dest      = "/data/GeoLite2-City.mmdb"
	payload   = "mmdb-bytes"
)

func redirectTo(location string) httpmock.Responder {
	return func(*http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusFound, "")
		if location != "" {
			resp.Header.Set("Location", location)
		}
		return resp, nil
	}
}

type DownloaderSuite struct {
	suite.Suite
	transport  *httpmock.MockTransport
	fs         afero.Fs
	downloader *Downloader
}

func (s *DownloaderSuite) SetupTest() {
	s.transport = httpmock.NewMockTransport()
	s.fs = afero.NewMemMapFs()
	s.downloader = &Downloader{
		Client:       &http.Client{Transport: s.transport},
		Fs:           s.fs,
		MaxRedirects: 3,
		Logger:       logger.NewNop(),
	}
}

func (s *DownloaderSuite) TestDirectDownload() {
	s.transport.RegisterResponder(http.MethodGet, sourceURL, httpmock.NewStringResponder(http.StatusOK, payload))
	s.Require().NoError(s.fs.MkdirAll("/data", 0o755))

	s.Require().NoError(s.downloader.Download(context.Background(), sourceURL, dest))

	data, err := afero.ReadFile(s.fs, dest)
	s.Require().NoError(err)
	s.Equal(payload, string(data))

	partial, _ := afero.Exists(s.fs, dest+partialSuffix)
	s.False(partial, "partial file should be renamed away")
}

func (s *DownloaderSuite) TestFollowsRedirects() {
	s.transport.RegisterResponder(http.MethodGet, sourceURL, redirectTo(mirrorURL))
	s.transport.RegisterResponder(http.MethodGet, mirrorURL, redirectTo("/files/v2/GeoLite2-City.mmdb"))
	s.transport.RegisterResponder(http.MethodGet, "https://mirror.example.com/files/v2/GeoLite2-City.mmdb",
		httpmock.NewStringResponder(http.StatusOK, payload))

	s.Require().NoError(s.downloader.Download(context.Background(), sourceURL, dest))

	data, err := afero.ReadFile(s.fs, dest)
	s.Require().NoError(err)
	s.Equal(payload, string(data))
	s.Equal(3, s.transport.GetTotalCallCount())
}

func (s *DownloaderSuite) TestMovedPermanently() {
	s.transport.RegisterResponder(http.MethodGet, sourceURL, func(*http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusMovedPermanently, "")
		resp.Header.Set("Location", mirrorURL)
		return resp, nil
	})
	s.transport.RegisterResponder(http.MethodGet, mirrorURL, httpmock.NewStringResponder(http.StatusOK, payload))

	s.Require().NoError(s.downloader.Download(context.Background(), sourceURL, dest))
}

func (s *DownloaderSuite) TestRedirectWithoutLocation() {
	s.transport.RegisterResponder(http.MethodGet, sourceURL, redirectTo(""))

	err := s.downloader.Download(context.Background(), sourceURL, dest)

	s.Require().Error(err)
	s.ErrorIs(err, ErrMissingLocation)
	s.Contains(err.Error(), "Redirect without location header")
}

func (s *DownloaderSuite) TestTooManyRedirects() {
	// Every hop redirects to the next one.
	for i := 0; i < 10; i++ {
		s.transport.RegisterResponder(http.MethodGet, fmt.Sprintf("https://example.com/hop/%d", i),
			redirectTo(fmt.Sprintf("https://example.com/hop/%d", i+1)))
	}

	err := s.downloader.Download(context.Background(), "https://example.com/hop/0", dest)

	s.Require().Error(err)
	s.ErrorIs(err, ErrTooManyRedirects)
	// The initial request plus MaxRedirects followed hops.
	s.Equal(4, s.transport.GetTotalCallCount())

	exists, _ := afero.Exists(s.fs, dest)
	s.False(exists)
}

func (s *DownloaderSuite) TestRedirectLoop() {
	s.transport.RegisterResponder(http.MethodGet, sourceURL, redirectTo(sourceURL))

	err := s.downloader.Download(context.Background(), sourceURL, dest)

	s.ErrorIs(err, ErrTooManyRedirects)
}

func (s *DownloaderSuite) TestHTTPError() {
	s.transport.RegisterResponder(http.MethodGet, sourceURL, httpmock.NewStringResponder(http.StatusNotFound, "missing"))

	err := s.downloader.Download(context.Background(), sourceURL, dest)

	s.Require().Error(err)
	var upstream *geo.UpstreamError
	s.Require().True(errors.As(err, &upstream))
	s.Equal("HTTP 404: Not Found", upstream.Err.Error())
}

func (s *DownloaderSuite) TestTransportError() {
	s.transport.RegisterResponder(http.MethodGet, sourceURL, httpmock.NewErrorResponder(errors.New("connection reset")))

	err := s.downloader.Download(context.Background(), sourceURL, dest)

	s.Require().Error(err)
	s.Contains(err.Error(), "connection reset")
}

func (s *DownloaderSuite) TestEnsureCreatesDirectory() {
	s.transport.RegisterResponder(http.MethodGet, sourceURL, httpmock.NewStringResponder(http.StatusOK, payload))

	s.Require().NoError(s.downloader.Ensure(context.Background(), sourceURL, "/var/lib/ipgeo/db.mmdb"))

	data, err := afero.ReadFile(s.fs, "/var/lib/ipgeo/db.mmdb")
	s.Require().NoError(err)
	s.Equal(payload, string(data))
}

func (s *DownloaderSuite) TestEnsureSkipsExistingFile() {
	s.Require().NoError(afero.WriteFile(s.fs, dest, []byte("existing"), 0o644))

	s.Require().NoError(s.downloader.Ensure(context.Background(), sourceURL, dest))

	s.Equal(0, s.transport.GetTotalCallCount())
	data, _ := afero.ReadFile(s.fs, dest)
	s.Equal("existing", string(data))
}

func (s *DownloaderSuite) TestEnsurePropagatesFailure() {
	s.transport.RegisterResponder(http.MethodGet, sourceURL, httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))

	err := s.downloader.Ensure(context.Background(), sourceURL, dest)

	s.Require().Error(err)
	s.Contains(err.Error(), "HTTP 503: Service Unavailable")
}

func (s *DownloaderSuite) TestFetchReplacesExistingFile() {
	s.Require().NoError(afero.WriteFile(s.fs, dest, []byte("stale"), 0o644))
	s.transport.RegisterResponder(http.MethodGet, sourceURL, httpmock.NewStringResponder(http.StatusOK, payload))

	s.Require().NoError(s.downloader.Fetch(context.Background(), sourceURL, dest))

	data, _ := afero.ReadFile(s.fs, dest)
	s.Equal(payload, string(data))
}

func TestDownloaderSuite(t *testing.T) {
	suite.Run(t, new(DownloaderSuite))
}

func TestDownload_InvalidURL(t *testing.T) {
	d := &Downloader{Fs: afero.NewMemMapFs(), Logger: logger.NewNop()}

	err := d.Download(context.Background(), "://bad", dest)

	require.Error(t, err)
	var upstream *geo.UpstreamError
	assert.True(t, errors.As(err, &upstream))
}

func TestStatusError(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"}
	assert.EqualError(t, statusError(resp), "HTTP 403: Forbidden")

	resp = &http.Response{StatusCode: http.StatusBadGateway, Status: "502"}
	assert.EqualError(t, statusError(resp), "HTTP 502: Bad Gateway")
}
