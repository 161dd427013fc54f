package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/config"
)

func TestOpenRepositoryMemorySeeded(t *testing.T) {
	repo, err := OpenRepository(context.Background(), config.Config{StoreDriver: config.DriverMemory, SeedDemoData: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()

	if repo.Driver() != "memory" {
		t.Fatalf("unexpected driver %q", repo.Driver())
	}
	count, _ := repo.CountItems(context.Background())
	if count == 0 {
		t.Fatalf("expected seeded items")
	}
}

func TestOpenRepositorySQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billing.db")
	repo, err := OpenRepository(context.Background(), config.Config{StoreDriver: config.DriverSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()

	if repo.Driver() != "sqlite" {
		t.Fatalf("unexpected driver %q", repo.Driver())
	}
}

func TestOpenRepositoryUnknownDriver(t *testing.T) {
	if _, err := OpenRepository(context.Background(), config.Config{StoreDriver: "cassandra"}); err == nil {
		t.Fatalf("expected unknown driver to fail")
	}
}

func TestOpenSequenceFallsBackToLocal(t *testing.T) {
	seq, closeFn := OpenSequence(context.Background(), config.Config{})
	defer closeFn()
	if seq.Name() != "local" {
		t.Fatalf("expected local sequence, got %q", seq.Name())
	}
}
