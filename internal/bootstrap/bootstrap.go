// Package bootstrap opens the backends selected by configuration. It is shared
// by the server and the legacy import command.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/config"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/sequence"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store/memory"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store/mongodb"
	pgstore "github.com/srikarsubramaniam/kishore-billing-software/internal/store/postgres"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store/sqlite"
)

// OpenRepository connects the configured store. A configured database that
// cannot be reached is an error; there is no silent in-memory fallback.
func OpenRepository(ctx context.Context, cfg config.Config) (store.Repository, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		repo, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return repo, nil
	case config.DriverMongo:
		repo, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		return repo, nil
	case config.DriverSQLite:
		repo, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return repo, nil
	case config.DriverMemory, "":
		if cfg.SeedDemoData {
			return memory.NewSeeded(), nil
		}
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// OpenSequence returns the shared Redis bill-number sequence when REDIS_ADDR
// is set and reachable, and the process-local one otherwise. The returned
// close func is never nil.
func OpenSequence(ctx context.Context, cfg config.Config) (sequence.Sequence, func() error) {
	if cfg.RedisAddr == "" {
		return sequence.NewLocal(), func() error { return nil }
	}

	seq := sequence.NewRedisSequence(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, sequence.DefaultRedisKey)
	if err := seq.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, using local bill sequence")
		_ = seq.Close()
		return sequence.NewLocal(), func() error { return nil }
	}
	return seq, seq.Close
}
