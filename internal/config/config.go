package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Logging
	LogLevel  string
	LogPretty bool
	LogFile   string

	// Geolocation backend
	GeoBackend        string // maxmind, ip2location, ipapi, mysql, redis, csv
	GeoDBPath         string // mmdb file used by the maxmind backend
	GeoDBURL          string // download source when GeoDBPath is missing
	GeoDBMaxRedirects int
	IP2LocationPath   string
	IPAPIURL          string

	// Datastore configuration
	DatastorePath string // CSV dataset for the csv backend and redis seeding

	// MySQL configuration
	MySQLDSN string

	// Redis configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	RateLimitType   string // none, memory or redis
	RateLimit       int    // requests allowed per window
	RateLimitWindow int    // window in seconds

	// DotEnvLoaded reports whether a .env file was read.
	DotEnvLoaded bool
}

// Defaults applied when the matching environment variable is unset.
const (
	DefaultPort              = "7755"
	DefaultGeoDBPath         = "./data/GeoLite2-City.mmdb"
	DefaultGeoDBURL          = "https://github.com/P3TERX/GeoLite.mmdb/raw/download/GeoLite2-City.mmdb"
	DefaultGeoDBMaxRedirects = 10
)

// Load reads a .env file if one exists, then the environment.
// Variables already present in the environment take precedence over .env.
func Load() *Config {
	loaded := godotenv.Load() == nil

	cfg := FromEnv()
	cfg.DotEnvLoaded = loaded
	return cfg
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	return &Config{
		Port: getEnv("PORT", DefaultPort),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
		LogFile:   getEnv("LOG_FILE", ""),

		GeoBackend:        strings.ToLower(getEnv("GEO_BACKEND", "maxmind")),
		GeoDBPath:         getEnv("GEODB_PATH", DefaultGeoDBPath),
		GeoDBURL:          getEnv("GEODB_URL", DefaultGeoDBURL),
		GeoDBMaxRedirects: getEnvAsInt("GEODB_MAX_REDIRECTS", DefaultGeoDBMaxRedirects),
		IP2LocationPath:   getEnv("IP2LOCATION_DB_PATH", "./data/IP2LOCATION.BIN"),
		IPAPIURL:          getEnv("IPAPI_URL", "http://ip-api.com/json/"),

		DatastorePath: getEnv("DATASTORE_PATH", "./data/geo.csv"),

		MySQLDSN: getEnv("MYSQL_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		RateLimitType:   strings.ToLower(getEnv("RATE_LIMITER_TYPE", "none")),
		RateLimit:       getEnvAsInt("RATE_LIMIT", 10),
		RateLimitWindow: getEnvAsInt("RATE_LIMIT_WINDOW", 1),
	}
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt reads an environment variable as an integer
// Returns default if not set or invalid
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBool accepts the forms strconv.ParseBool does.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
