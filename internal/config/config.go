package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time is used for interval settings
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  The same binary serves two deployments:
// the workstation tier (embedded sqlite store) and the relay tier (shared
// MySQL store); DBDriver selects between them.
type Config struct {
	Env      string // application environment (e.g. "dev", "prod")
	Port     string // HTTP port to listen on
	DBDriver string // "sqlite3" (workstation tier) or "mysql" (relay tier)
	DBPath   string // sqlite database file path
	DBUser   string // mysql username
	DBPass   string // mysql password (optional)
	DBHost   string // mysql host address
	DBPort   string // mysql port number
	DBName   string // mysql database name

	JWTSecret string // secret verifying workstation tokens; empty disables the middleware

	LockTTL   time.Duration // default check lock lease duration
	TaxRate   float64       // flat tax rate stand-in (e.g. 0.08)

	CloudBaseURL   string        // base URL of the cloud sync endpoint
	CloudHealthURL string        // cloud health probe target
	RelayHealthURL string        // relay health probe target (empty on the relay itself)
	ProbeInterval  time.Duration // connectivity re-evaluation interval
	SyncInterval   time.Duration // fixed sync drain interval
	SyncBatch      int           // max queue entries per drain cycle

	AlertsConsumer bool // run the dead-letter alerts consumer in-process
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:      must("APP_ENV"),      // environment (dev/test/prod)
		Port:     must("APP_PORT"),     // port to bind the HTTP server
		DBDriver: getenv("DB_DRIVER", "sqlite3"),
		DBPath:   getenv("DB_PATH", "caps.db"),
		DBPass:   os.Getenv("DB_PASS"), // mysql password (empty allowed)

		JWTSecret: os.Getenv("JWT_SECRET"),

		LockTTL: time.Duration(envInt("LOCK_TTL_SECONDS", 300)) * time.Second,
		TaxRate: envFloat("TAX_RATE", 0.08),

		CloudBaseURL:   os.Getenv("CLOUD_BASE_URL"),
		CloudHealthURL: os.Getenv("CLOUD_HEALTH_URL"),
		RelayHealthURL: os.Getenv("RELAY_HEALTH_URL"),
		ProbeInterval:  time.Duration(envInt("PROBE_INTERVAL_SECONDS", 10)) * time.Second,
		SyncInterval:   time.Duration(envInt("SYNC_INTERVAL_SECONDS", 15)) * time.Second,
		SyncBatch:      envInt("SYNC_BATCH", 50),

		AlertsConsumer: getenv("ALERTS_CONSUMER_ENABLED", "false") == "true",
	}
	// The mysql connection settings are only required on the relay tier.
	if cfg.DBDriver == "mysql" {
		cfg.DBUser = must("DB_USER")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// getenv returns the variable's value or a default when unset.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt parses an optional integer variable, falling back to the default
// on absence or a malformed value.
func envInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// envFloat parses an optional float variable.
func envFloat(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Fatalf("invalid float for %s: %q", key, s)
	}
	return f
}
