// Package migrate imports the JSON files written by the old file-backed till
// (data/inventory.json and data/bills.json) into any configured store.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/sequence"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store"
)

type Options struct {
	InventoryPath string
	BillsPath     string
	// Force imports even when the store already holds data.
	Force bool
}

type Result struct {
	Items         int
	Bills         int
	Skipped       bool
	ExistingItems int64
	ExistingBills int64
}

// LoadItems decodes a legacy inventory array and fills in what old records
// may lack: ids, timestamps and a normalised category.
func LoadItems(r io.Reader, now time.Time) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	for i := range items {
		item := &items[i]
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.Name = strings.TrimSpace(item.Name)
		item.Category = strings.ToLower(strings.TrimSpace(item.Category))
		item.Price = domain.RoundMoney(item.Price)
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if item.UpdatedAt.IsZero() {
			item.UpdatedAt = item.CreatedAt
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("inventory record %d: %w", i, err)
		}
	}
	return items, nil
}

// LoadBills decodes a legacy bills array. Bills written before payment
// methods existed are treated as cash.
func LoadBills(r io.Reader, now time.Time) ([]domain.Bill, error) {
	var bills []domain.Bill
	if err := json.NewDecoder(r).Decode(&bills); err != nil {
		return nil, fmt.Errorf("decode bills: %w", err)
	}
	for i := range bills {
		bill := &bills[i]
		bill.ID = strings.TrimSpace(bill.ID)
		if bill.ID == "" {
			bill.ID = uuid.NewString()
		}
		if bill.CreatedAt.IsZero() {
			bill.CreatedAt = now
		}
		if strings.TrimSpace(bill.BillNumber) == "" {
			bill.BillNumber = sequence.FormatBillNumber(bill.CreatedAt.UnixMilli())
		}
		bill.PaymentMethod = strings.ToLower(strings.TrimSpace(bill.PaymentMethod))
		if bill.PaymentMethod == "" {
			bill.PaymentMethod = domain.PaymentCash
		}
		bill.Shortfalls = nil
		for j := range bill.Items {
			bill.Items[j].Price = domain.RoundMoney(bill.Items[j].Price)
		}
		bill.Total = domain.RoundMoney(bill.Total)
		if err := bill.Validate(); err != nil {
			return nil, fmt.Errorf("bill record %d: %w", i, err)
		}
	}
	return bills, nil
}

// Run imports both files. A store that already has items or bills is left
// untouched unless opts.Force is set. Missing files are skipped.
func Run(ctx context.Context, repo store.Repository, opts Options) (Result, error) {
	var res Result

	existingItems, err := repo.CountItems(ctx)
	if err != nil {
		return res, fmt.Errorf("count inventory: %w", err)
	}
	existingBills, err := repo.CountBills(ctx)
	if err != nil {
		return res, fmt.Errorf("count bills: %w", err)
	}
	res.ExistingItems, res.ExistingBills = existingItems, existingBills
	if (existingItems > 0 || existingBills > 0) && !opts.Force {
		res.Skipped = true
		return res, nil
	}

	now := time.Now().UTC()

	items, err := loadFile(opts.InventoryPath, func(r io.Reader) ([]domain.InventoryItem, error) {
		return LoadItems(r, now)
	})
	if err != nil {
		return res, err
	}
	if len(items) > 0 {
		if err := repo.ImportItems(ctx, items); err != nil {
			return res, fmt.Errorf("import inventory: %w", err)
		}
		res.Items = len(items)
		log.Info().Int("items", res.Items).Msg("inventory imported")
	}

	bills, err := loadFile(opts.BillsPath, func(r io.Reader) ([]domain.Bill, error) {
		return LoadBills(r, now)
	})
	if err != nil {
		return res, err
	}
	if len(bills) > 0 {
		if err := repo.ImportBills(ctx, bills); err != nil {
			return res, fmt.Errorf("import bills: %w", err)
		}
		res.Bills = len(bills)
		log.Info().Int("bills", res.Bills).Msg("bills imported")
	}

	return res, nil
}

func loadFile[T any](path string, decode func(io.Reader) ([]T, error)) ([]T, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("legacy file not found, skipping")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
