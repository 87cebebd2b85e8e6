package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/evyataryagoni/ipgeo/internal/config"
	"github.com/evyataryagoni/ipgeo/internal/geodb"
	"github.com/evyataryagoni/ipgeo/internal/logger"
	"gopkg.in/alecthomas/kingpin.v2"
)

// Fetches the MaxMind city database ahead of the first server start,
// e.g. while building a container image.
func main() {
	appConfig := config.Load()

	app := kingpin.New("download-db", "Download the GeoLite2 city database.")
	url := app.Flag("url", "Database download URL.").Default(appConfig.GeoDBURL).String()
	dest := app.Flag("dest", "Destination file.").Default(appConfig.GeoDBPath).String()
	maxRedirects := app.Flag("max-redirects", "Maximum redirects to follow.").
		Default(strconv.Itoa(appConfig.GeoDBMaxRedirects)).Int()
	force := app.Flag("force", "Download even if the destination exists.").Short('f').Bool()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := logger.New(logger.Config{Level: appConfig.LogLevel, Pretty: true})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	downloader := geodb.NewDownloader(log)
	downloader.MaxRedirects = *maxRedirects

	fetch := downloader.Ensure
	if *force {
		fetch = downloader.Fetch
	}
	if err := fetch(ctx, *url, *dest); err != nil {
		log.Fatal().Err(err).Str("url", *url).Msg("Download failed")
	}

	log.Info().Str("path", *dest).Msg("Database ready")
}
