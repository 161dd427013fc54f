package config

import (
	"testing"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "STORE_DRIVER", "DATABASE_URL", "MONGO_URI", "MONGODB_URI", "BILLING_STOCK_POLICY",
		"REPORT_TIMEZONE", "ALLOWED_ORIGINS", "REQUEST_TIMEOUT_SECONDS", "SEED_DEMO_DATA",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if cfg.Port != "10000" || cfg.Address() != ":10000" {
		t.Fatalf("unexpected port %q", cfg.Port)
	}
	if cfg.StoreDriver != DriverMemory {
		t.Fatalf("expected memory driver, got %q", cfg.StoreDriver)
	}
	if cfg.StockPolicy != domain.StockPolicyReject {
		t.Fatalf("expected reject policy, got %q", cfg.StockPolicy)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.RequestTimeoutSeconds != 15 {
		t.Fatalf("unexpected timeout %d", cfg.RequestTimeoutSeconds)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadInfersDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/billing")
	if got := Load().StoreDriver; got != DriverPostgres {
		t.Fatalf("expected postgres, got %q", got)
	}

	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	cfg := Load()
	if cfg.StoreDriver != DriverMongo || cfg.MongoURI != "mongodb://localhost:27017" {
		t.Fatalf("expected mongo from MONGODB_URI, got %q %q", cfg.StoreDriver, cfg.MongoURI)
	}

	t.Setenv("STORE_DRIVER", "SQLite")
	if got := Load().StoreDriver; got != DriverSQLite {
		t.Fatalf("explicit driver should win, got %q", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("BILLING_STOCK_POLICY", "ignore")
	t.Setenv("REPORT_TIMEZONE", "Mars/Olympus")

	if err := Load().Validate(); err == nil {
		t.Fatalf("expected validation errors")
	}
}

func TestSplitOrigins(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOWED_ORIGINS", "https://shop.example, http://localhost:3000 ,")
	cfg := Load()
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://localhost:3000" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}
