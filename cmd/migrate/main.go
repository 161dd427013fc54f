// Command migrate copies the old till's data/inventory.json and data/bills.json
// into the store selected by the usual environment variables.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/bootstrap"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/config"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/logger"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/migrate"
)

func main() {
	inventoryPath := flag.String("inventory", "data/inventory.json", "legacy inventory file")
	billsPath := flag.String("bills", "data/bills.json", "legacy bills file")
	force := flag.Bool("force", false, "import even when the store already has data")
	flag.Parse()

	cfg := config.Load()
	logger.Init("billing-migrate", cfg.LogFormat, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn().Msg("memory driver selected; imported data will be lost on exit")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	repo, err := bootstrap.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer repo.Close()

	res, err := migrate.Run(ctx, repo, migrate.Options{
		InventoryPath: *inventoryPath,
		BillsPath:     *billsPath,
		Force:         *force,
	})
	if err != nil {
		_ = repo.Close()
		log.Fatal().Err(err).Msg("migration failed")
	}
	if res.Skipped {
		log.Warn().
			Int64("inventory_items", res.ExistingItems).
			Int64("bills", res.ExistingBills).
			Msg("store already has data; rerun with -force to import anyway")
		return
	}
	log.Info().Str("driver", repo.Driver()).Int("items", res.Items).Int("bills", res.Bills).Msg("migration completed")
}
