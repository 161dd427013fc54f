package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store"
)

func seedItem(t *testing.T, s *Store, id string, qty int, createdAt time.Time) domain.InventoryItem {
	t.Helper()
	item := domain.InventoryItem{
		ID:        id,
		Name:      "Item " + id,
		Category:  domain.CategoryFancy,
		Price:     decimal.RequireFromString("100.50"),
		Quantity:  qty,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if _, err := s.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("seed item %s: %v", id, err)
	}
	return item
}

func billFor(number string, at time.Time, lines ...domain.BillLine) domain.Bill {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return domain.Bill{
		ID:            "bill-" + number,
		BillNumber:    "BILL-" + number,
		Items:         lines,
		Total:         total,
		PaymentMethod: domain.PaymentCash,
		CreatedAt:     at,
	}
}

func TestListItemsNewestFirstAndCategoryFilter(t *testing.T) {
	s := New()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	seedItem(t, s, "a", 1, base)
	seedItem(t, s, "b", 1, base.Add(time.Minute))
	elec := domain.InventoryItem{ID: "c", Name: "Cable", Category: domain.CategoryElectronics, Quantity: 2, CreatedAt: base.Add(2 * time.Minute)}
	if _, err := s.CreateItem(context.Background(), elec); err != nil {
		t.Fatalf("create electronics: %v", err)
	}

	all, err := s.ListItems(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("unexpected order: %+v", all)
	}

	fancy, _ := s.ListItems(context.Background(), "FANCY")
	if len(fancy) != 2 {
		t.Fatalf("expected 2 fancy items, got %d", len(fancy))
	}
}

func TestCreateItemRejectsDuplicateAndInvalid(t *testing.T) {
	s := New()
	seedItem(t, s, "a", 1, time.Now())

	if _, err := s.CreateItem(context.Background(), domain.InventoryItem{ID: "a", Name: "x", Category: "fancy"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := s.CreateItem(context.Background(), domain.InventoryItem{ID: "z", Name: "x", Category: "toys"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateAndDeleteMissingItem(t *testing.T) {
	s := New()
	if _, err := s.UpdateItem(context.Background(), domain.InventoryItem{ID: "nope", Name: "x", Category: "fancy"}, true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
	if err := s.DeleteItem(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestUpdateItemWithoutQuantityKeepsBilledStock(t *testing.T) {
	s := New()
	stale := seedItem(t, s, "i1", 5, time.Now())

	line := domain.BillLine{ID: "i1", Name: stale.Name, Price: stale.Price, Quantity: 2}
	if _, err := s.CreateBill(context.Background(), billFor("1", time.Now(), line), domain.StockPolicyReject); err != nil {
		t.Fatalf("create bill: %v", err)
	}

	stale.Name = "Renamed"
	updated, err := s.UpdateItem(context.Background(), stale, false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Quantity != 3 || updated.Name != "Renamed" {
		t.Fatalf("stale update must keep billed stock: %+v", updated)
	}

	stale.Quantity = 8
	updated, err = s.UpdateItem(context.Background(), stale, true)
	if err != nil || updated.Quantity != 8 {
		t.Fatalf("explicit quantity must be written: %+v %v", updated, err)
	}
}

func TestCreateItemRejectsSubPaisaPrice(t *testing.T) {
	s := New()
	item := domain.InventoryItem{ID: "p", Name: "Bead", Category: domain.CategoryFancy, Price: decimal.RequireFromString("0.00004")}
	if _, err := s.CreateItem(context.Background(), item); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateBillDecrementsStock(t *testing.T) {
	s := New()
	item := seedItem(t, s, "i1", 10, time.Now())
	at := time.Now().UTC()

	created, err := s.CreateBill(context.Background(), billFor("1", at, domain.BillLine{ID: "i1", Name: item.Name, Price: item.Price, Quantity: 3}), domain.StockPolicyReject)
	if err != nil {
		t.Fatalf("create bill: %v", err)
	}
	if len(created.Shortfalls) != 0 {
		t.Fatalf("expected no shortfalls, got %+v", created.Shortfalls)
	}
	got, _ := s.GetItem(context.Background(), "i1")
	if got.Quantity != 7 {
		t.Fatalf("expected quantity 7, got %d", got.Quantity)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Fatalf("expected updatedAt to follow bill time")
	}
}

func TestCreateBillRejectLeavesStockUntouched(t *testing.T) {
	s := New()
	seedItem(t, s, "i1", 5, time.Now())
	seedItem(t, s, "i2", 1, time.Now())

	bill := billFor("2", time.Now(),
		domain.BillLine{ID: "i1", Name: "one", Price: decimal.NewFromInt(10), Quantity: 2},
		domain.BillLine{ID: "i2", Name: "two", Price: decimal.NewFromInt(10), Quantity: 4},
	)
	_, err := s.CreateBill(context.Background(), bill, domain.StockPolicyReject)
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) || !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
	if len(stockErr.Shortfalls) != 1 || stockErr.Shortfalls[0].ItemID != "i2" || stockErr.Shortfalls[0].Available != 1 {
		t.Fatalf("unexpected shortfalls: %+v", stockErr.Shortfalls)
	}

	one, _ := s.GetItem(context.Background(), "i1")
	if one.Quantity != 5 {
		t.Fatalf("expected i1 untouched, got %d", one.Quantity)
	}
	if n, _ := s.CountBills(context.Background()); n != 0 {
		t.Fatalf("expected no bill persisted, got %d", n)
	}
}

func TestCreateBillDuplicateLinesAreCumulative(t *testing.T) {
	s := New()
	seedItem(t, s, "i1", 5, time.Now())

	bill := billFor("3", time.Now(),
		domain.BillLine{ID: "i1", Price: decimal.NewFromInt(1), Quantity: 3},
		domain.BillLine{ID: "i1", Price: decimal.NewFromInt(1), Quantity: 3},
	)
	if _, err := s.CreateBill(context.Background(), bill, domain.StockPolicyReject); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected cumulative lines to exceed stock, got %v", err)
	}
}

func TestCreateBillRecordPolicyPersistsWithShortfalls(t *testing.T) {
	s := New()
	seedItem(t, s, "i1", 1, time.Now())

	bill := billFor("4", time.Now(),
		domain.BillLine{ID: "i1", Name: "one", Price: decimal.NewFromInt(50), Quantity: 2},
		domain.BillLine{ID: "gone", Name: "Old item", Price: decimal.NewFromInt(20), Quantity: 1},
	)
	created, err := s.CreateBill(context.Background(), bill, domain.StockPolicyRecord)
	if err != nil {
		t.Fatalf("record policy should persist: %v", err)
	}
	if len(created.Shortfalls) != 2 {
		t.Fatalf("expected 2 shortfalls, got %+v", created.Shortfalls)
	}
	if !created.Total.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected full charge 120, got %s", created.Total)
	}
	item, _ := s.GetItem(context.Background(), "i1")
	if item.Quantity != 1 {
		t.Fatalf("short line must not decrement, got %d", item.Quantity)
	}
	stored, _ := s.GetBill(context.Background(), created.ID)
	if len(stored.Shortfalls) != 0 {
		t.Fatalf("shortfalls must not be persisted")
	}
}

func TestCreateBillMissingItemDoesNotBlock(t *testing.T) {
	s := New()
	bill := billFor("5", time.Now(), domain.BillLine{ID: "gone", Name: "Old", Price: decimal.NewFromInt(5), Quantity: 1})
	created, err := s.CreateBill(context.Background(), bill, domain.StockPolicyReject)
	if err != nil {
		t.Fatalf("expected bill to persist, got %v", err)
	}
	if len(created.Shortfalls) != 1 || created.Shortfalls[0].Reason != domain.ShortfallNotInInventory {
		t.Fatalf("expected not_in_inventory shortfall, got %+v", created.Shortfalls)
	}
}

func TestCreateBillDuplicateNumber(t *testing.T) {
	s := New()
	seedItem(t, s, "i1", 10, time.Now())
	line := domain.BillLine{ID: "i1", Price: decimal.NewFromInt(1), Quantity: 1}
	if _, err := s.CreateBill(context.Background(), billFor("6", time.Now(), line), domain.StockPolicyReject); err != nil {
		t.Fatalf("first bill: %v", err)
	}
	dup := billFor("6", time.Now(), line)
	dup.ID = "another-id"
	if _, err := s.CreateBill(context.Background(), dup, domain.StockPolicyReject); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate bill number, got %v", err)
	}
	item, _ := s.GetItem(context.Background(), "i1")
	if item.Quantity != 9 {
		t.Fatalf("duplicate bill must not move stock, got %d", item.Quantity)
	}
}

func TestConcurrentBillsNeverOversell(t *testing.T) {
	s := New()
	seedItem(t, s, "i1", 10, time.Now())

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			bill := billFor(fmt.Sprintf("c%d", n), time.Now(),
				domain.BillLine{ID: "i1", Price: decimal.NewFromInt(1), Quantity: 1})
			if _, err := s.CreateBill(context.Background(), bill, domain.StockPolicyReject); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 successful bills, got %d", succeeded)
	}
	item, _ := s.GetItem(context.Background(), "i1")
	if item.Quantity != 0 {
		t.Fatalf("expected stock to reach 0, got %d", item.Quantity)
	}
}

func TestListBillsRangeIsHalfOpen(t *testing.T) {
	s := New()
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)
	line := domain.BillLine{ID: "x", Price: decimal.NewFromInt(1), Quantity: 1}
	for i, at := range []time.Time{day, next.Add(-time.Millisecond), next} {
		if err := s.ImportBills(context.Background(), []domain.Bill{billFor(string(rune('a'+i)), at, line)}); err != nil {
			t.Fatalf("import: %v", err)
		}
	}

	bills, err := s.ListBills(context.Background(), day, next)
	if err != nil {
		t.Fatalf("list bills: %v", err)
	}
	if len(bills) != 2 {
		t.Fatalf("expected 2 bills in range, got %d", len(bills))
	}
	if !bills[0].CreatedAt.After(bills[1].CreatedAt) {
		t.Fatalf("expected newest first")
	}
}
