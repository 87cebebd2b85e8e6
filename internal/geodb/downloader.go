// Package geodb fetches the geolocation database file on first start.
package geodb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/evyataryagoni/ipgeo/internal/geo"
	"github.com/evyataryagoni/ipgeo/internal/logger"
	"github.com/spf13/afero"
)

// DefaultMaxRedirects bounds the redirect chain followed by Download.
const DefaultMaxRedirects = 10

// partialSuffix marks a file that is still being written.
const partialSuffix = ".download"

var (
	ErrMissingLocation  = errors.New("Redirect without location header")
	ErrTooManyRedirects = errors.New("too many redirects")
)

// Downloader streams a remote file to disk, following 301/302 redirects
// itself so the hop count can be capped.
type Downloader struct {
	Client       *http.Client
	Fs           afero.Fs
	MaxRedirects int
	Logger       *logger.Logger
}

// NewDownloader returns a Downloader on the OS filesystem.
func NewDownloader(log *logger.Logger) *Downloader {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Downloader{
		Client:       &http.Client{},
		Fs:           afero.NewOsFs(),
		MaxRedirects: DefaultMaxRedirects,
		Logger:       log.WithComponent("geodb"),
	}
}

// client returns a copy of d.Client that hands redirects back to us.
func (d *Downloader) client() *http.Client {
	c := http.Client{}
	if d.Client != nil {
		c = *d.Client
	}
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &c
}

// Download fetches rawURL into dest. The body is written to
// dest+".download" and renamed into place once complete, so dest never
// holds a truncated file.
func (d *Downloader) Download(ctx context.Context, rawURL, dest string) error {
	current, err := url.Parse(rawURL)
	if err != nil {
		return geo.Upstream("invalid download URL", err)
	}

	client := d.client()
	for hops := 0; ; hops++ {
		resp, err := d.get(ctx, client, current)
		if err != nil {
			return geo.Upstream("failed to download database", err)
		}

		switch resp.StatusCode {
		case http.StatusMovedPermanently, http.StatusFound:
			location := resp.Header.Get("Location")
			resp.Body.Close()

			if location == "" {
				return geo.Upstream("failed to download database", ErrMissingLocation)
			}
			if hops >= d.maxRedirects() {
				return geo.Upstream("failed to download database", fmt.Errorf("%w (limit %d)", ErrTooManyRedirects, d.maxRedirects()))
			}

			next, err := current.Parse(location)
			if err != nil {
				return geo.Upstream("failed to download database", err)
			}
			d.log().Debug().Str("from", current.String()).Str("to", next.String()).Msg("Following redirect")
			current = next

		case http.StatusOK:
			err := d.save(resp.Body, dest)
			resp.Body.Close()
			if err != nil {
				return geo.Upstream("failed to save database", err)
			}
			return nil

		default:
			resp.Body.Close()
			return geo.Upstream("failed to download database", statusError(resp))
		}
	}
}

// Ensure downloads rawURL into dest unless dest already exists.
func (d *Downloader) Ensure(ctx context.Context, rawURL, dest string) error {
	exists, err := afero.Exists(d.Fs, dest)
	if err != nil {
		return geo.Upstream("cannot stat database file", err)
	}
	if exists {
		d.log().Debug().Str("path", dest).Msg("Database file present")
		return nil
	}

	d.log().Info().Str("url", rawURL).Str("path", dest).Msg("Database not found, downloading")
	return d.Fetch(ctx, rawURL, dest)
}

// Fetch creates the destination directory and downloads rawURL into dest,
// replacing any existing file.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dest string) error {
	if err := d.Fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return geo.Upstream("cannot create database directory", err)
	}
	if err := d.Download(ctx, rawURL, dest); err != nil {
		return err
	}

	if info, err := d.Fs.Stat(dest); err == nil {
		d.log().Info().
			Str("path", dest).
			Str("size", fmt.Sprintf("%.2f MB", float64(info.Size())/1024/1024)).
			Msg("Database downloaded")
	}
	return nil
}

func (d *Downloader) get(ctx context.Context, client *http.Client, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}

func (d *Downloader) save(body io.Reader, dest string) error {
	partial := dest + partialSuffix

	f, err := d.Fs.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = d.Fs.Remove(partial)
		return err
	}
	if err := f.Close(); err != nil {
		_ = d.Fs.Remove(partial)
		return err
	}

	return d.Fs.Rename(partial, dest)
}

func (d *Downloader) maxRedirects() int {
	if d.MaxRedirects < 0 {
		return 0
	}
	return d.MaxRedirects
}

func (d *Downloader) log() *logger.Logger {
	if d.Logger == nil {
		return logger.NewNop()
	}
	return d.Logger
}

// statusError formats a non-200 response as "HTTP <code>: <status text>".
func statusError(resp *http.Response) error {
	text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
	if text == "" || text == resp.Status {
		text = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, text)
}
