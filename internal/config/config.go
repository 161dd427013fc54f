package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Port                  string
	StoreDriver           string
	DatabaseURL           string
	MongoURI              string
	MongoDatabase         string
	SQLitePath            string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	StockPolicy           domain.StockPolicy
	ReportTimezone        string
	AllowedOrigins        []string
	StaticDir             string
	LogLevel              string
	LogFormat             string
	RequestTimeoutSeconds int
	SeedDemoData          bool
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	timeout, err := strconv.Atoi(getEnv("REQUEST_TIMEOUT_SECONDS", "15"))
	if err != nil || timeout < 1 {
		timeout = 15
	}
	seed, _ := strconv.ParseBool(getEnv("SEED_DEMO_DATA", "false"))

	mongoURI := getEnv("MONGO_URI", os.Getenv("MONGODB_URI"))
	databaseURL := os.Getenv("DATABASE_URL")

	cfg := Config{
		Port:                  getEnv("PORT", "10000"),
		StoreDriver:           strings.ToLower(strings.TrimSpace(getEnv("STORE_DRIVER", inferDriver(mongoURI, databaseURL)))),
		DatabaseURL:           databaseURL,
		MongoURI:              mongoURI,
		MongoDatabase:         getEnv("MONGO_DATABASE", "billing"),
		SQLitePath:            getEnv("SQLITE_PATH", "billing.db"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		StockPolicy:           domain.StockPolicy(strings.ToLower(strings.TrimSpace(getEnv("BILLING_STOCK_POLICY", string(domain.StockPolicyReject))))),
		ReportTimezone:        strings.TrimSpace(os.Getenv("REPORT_TIMEZONE")),
		AllowedOrigins:        splitList(getEnv("ALLOWED_ORIGINS", "*")),
		StaticDir:             os.Getenv("STATIC_DIR"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
		RequestTimeoutSeconds: timeout,
		SeedDemoData:          seed,
	}

	return cfg
}

func inferDriver(mongoURI string, databaseURL string) string {
	switch {
	case mongoURI != "":
		return DriverMongo
	case databaseURL != "":
		return DriverPostgres
	default:
		return DriverMemory
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if !domain.ValidStockPolicy(c.StockPolicy) {
		errs = append(errs, fmt.Errorf("BILLING_STOCK_POLICY must be reject or record, got %q", c.StockPolicy))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("REPORT_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location is the zone report windows are computed in.
func (c Config) Location() (*time.Location, error) {
	if c.ReportTimezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.ReportTimezone)
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
