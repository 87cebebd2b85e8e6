package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/evyataryagoni/ipgeo/internal/backend"
	"github.com/evyataryagoni/ipgeo/internal/config"
	"github.com/evyataryagoni/ipgeo/internal/logger"
	"gopkg.in/alecthomas/kingpin.v2"
)

// Seeds the redis geolocation backend from the CSV dataset.
// Flags default to the server's environment configuration.
func main() {
	appConfig := config.Load()

	app := kingpin.New("load-redis", "Load the CSV geolocation dataset into Redis.")
	csvPath := app.Flag("csv", "CSV dataset to load.").Default(appConfig.DatastorePath).String()
	redisAddr := app.Flag("redis-addr", "Redis address.").Default(appConfig.RedisAddr).String()
	redisDB := app.Flag("redis-db", "Redis database number.").Default(strconv.Itoa(appConfig.RedisDB)).Int()
	onlyIfEmpty := app.Flag("if-empty", "Skip loading when Redis already holds records.").Bool()
	timeout := app.Flag("timeout", "Overall deadline.").Default("5m").Duration()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := logger.New(logger.Config{Level: appConfig.LogLevel, Pretty: true}).WithComponent("load-redis")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Info().Str("addr", *redisAddr).Msg("Connecting to Redis")
	redisBackend, err := backend.NewRedisBackend(ctx, *redisAddr, appConfig.RedisPassword, *redisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisBackend.Close()

	if *onlyIfEmpty {
		empty, err := redisBackend.IsEmpty(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to inspect Redis")
		}
		if !empty {
			log.Info().Msg("Redis already holds records, nothing to do")
			return
		}
	}

	start := time.Now()
	n, err := redisBackend.LoadFromCSV(ctx, *csvPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *csvPath).Msg("Failed to load CSV data")
	}

	log.Info().
		Int("records", n).
		Dur("took", time.Since(start)).
		Msg("Data loaded, start the server with GEO_BACKEND=redis")
}
