package migrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store/memory"
)

const legacyInventory = `[
  {
    "id": "3f1c",
    "name": "Crystal Vase Set",
    "category": "Fancy",
    "price": 1299,
    "quantity": 25,
    "description": "Elegant crystal vase set",
    "sku": "FANCY-003",
    "createdAt": "2024-02-01T09:30:00.000Z",
    "updatedAt": "2024-02-03T10:00:00.000Z"
  },
  {
    "name": "Electrical Wire (1mm)",
    "category": "electronics",
    "price": 49.5,
    "quantity": 500
  }
]`

const legacyBills = `[
  {
    "id": "b-1",
    "billNumber": "BILL-1706779800000",
    "items": [{"id": "3f1c", "name": "Crystal Vase Set", "price": 1299, "quantity": 1}],
    "total": 1299,
    "customerName": "Meena",
    "customerPhone": "",
    "createdAt": "2024-02-01T10:10:00.000Z"
  }
]`

func TestLoadItemsFillsDefaults(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	items, err := LoadItems(strings.NewReader(legacyInventory), now)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Category != domain.CategoryFancy || !items[0].Price.Equal(decimal.NewFromInt(1299)) {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].ID == "" || !items[1].CreatedAt.Equal(now) || !items[1].UpdatedAt.Equal(now) {
		t.Fatalf("missing defaults on second item: %+v", items[1])
	}
	if !items[1].Price.Equal(decimal.RequireFromString("49.5")) {
		t.Fatalf("unexpected price %s", items[1].Price)
	}
}

func TestLoadItemsRejectsUnknownCategory(t *testing.T) {
	_, err := LoadItems(strings.NewReader(`[{"id":"x","name":"Kite","category":"toys","price":5,"quantity":1}]`), time.Now())
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadItemsRoundsLegacyPrices(t *testing.T) {
	items, err := LoadItems(strings.NewReader(`[{"id":"x","name":"Kite","category":"fancy","price":49.999,"quantity":1}]`), time.Now())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !items[0].Price.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected price rounded to 50, got %s", items[0].Price)
	}
}

func TestLoadBillsDefaultsPaymentMethod(t *testing.T) {
	bills, err := LoadBills(strings.NewReader(legacyBills), time.Now())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bills) != 1 || bills[0].PaymentMethod != domain.PaymentCash {
		t.Fatalf("unexpected bills: %+v", bills)
	}
	if bills[0].BillNumber != "BILL-1706779800000" {
		t.Fatalf("bill number must be preserved, got %q", bills[0].BillNumber)
	}
}

func writeLegacyFiles(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	inv := filepath.Join(dir, "inventory.json")
	bills := filepath.Join(dir, "bills.json")
	if err := os.WriteFile(inv, []byte(legacyInventory), 0o600); err != nil {
		t.Fatalf("write inventory: %v", err)
	}
	if err := os.WriteFile(bills, []byte(legacyBills), 0o600); err != nil {
		t.Fatalf("write bills: %v", err)
	}
	return inv, bills
}

func TestRunImportsIntoEmptyStore(t *testing.T) {
	inv, bills := writeLegacyFiles(t)
	repo := memory.New()

	res, err := Run(context.Background(), repo, Options{InventoryPath: inv, BillsPath: bills})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Skipped || res.Items != 2 || res.Bills != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	bill, err := repo.GetBill(context.Background(), "b-1")
	if err != nil {
		t.Fatalf("get imported bill: %v", err)
	}
	if !bill.Total.Equal(decimal.NewFromInt(1299)) {
		t.Fatalf("unexpected total %s", bill.Total)
	}
	item, err := repo.GetItem(context.Background(), "3f1c")
	if err != nil || item.Quantity != 25 {
		t.Fatalf("imported item must keep its stock: %+v %v", item, err)
	}
}

func TestRunSkipsNonEmptyStoreWithoutForce(t *testing.T) {
	inv, bills := writeLegacyFiles(t)
	repo := memory.NewSeeded()

	res, err := Run(context.Background(), repo, Options{InventoryPath: inv, BillsPath: bills})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Skipped || res.ExistingItems == 0 {
		t.Fatalf("expected skip, got %+v", res)
	}
	if count, _ := repo.CountBills(context.Background()); count != 0 {
		t.Fatalf("skipped run must not import bills")
	}

	res, err = Run(context.Background(), repo, Options{InventoryPath: inv, BillsPath: bills, Force: true})
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if res.Skipped || res.Bills != 1 {
		t.Fatalf("expected forced import, got %+v", res)
	}
}

func TestRunToleratesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), memory.New(), Options{
		InventoryPath: filepath.Join(dir, "inventory.json"),
		BillsPath:     filepath.Join(dir, "bills.json"),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Items != 0 || res.Bills != 0 {
		t.Fatalf("expected nothing imported, got %+v", res)
	}
}
