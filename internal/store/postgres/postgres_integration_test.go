package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("BILLING_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BILLING_TEST_DATABASE_URL to run postgres integration test")
	}

	s, err := New(context.Background(), databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestCreateBillDecrementsAndRejects(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	itemID := fmt.Sprintf("item-it-%d", stamp)
	billID := fmt.Sprintf("bill-it-%d", stamp)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM bills WHERE id LIKE $1`, billID+"%")
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, itemID)
	})

	now := time.Now().UTC().Truncate(time.Microsecond)
	if _, err := s.CreateItem(ctx, domain.InventoryItem{
		ID: itemID, Name: "Integration Bangle", Category: domain.CategoryFancy,
		Price: decimal.RequireFromString("120.50"), Quantity: 5, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	line := domain.BillLine{ID: itemID, Name: "Integration Bangle", Price: decimal.RequireFromString("120.50"), Quantity: 3}
	bill := domain.Bill{
		ID: billID, BillNumber: fmt.Sprintf("BILL-IT-%d", stamp), Items: []domain.BillLine{line},
		Total: decimal.RequireFromString("361.50"), PaymentMethod: domain.PaymentCash, CreatedAt: now,
	}
	if _, err := s.CreateBill(ctx, bill, domain.StockPolicyReject); err != nil {
		t.Fatalf("create bill: %v", err)
	}

	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", item.Quantity)
	}

	again := bill
	again.ID = billID + "-2"
	again.BillNumber = bill.BillNumber + "-2"
	if _, err := s.CreateBill(ctx, again, domain.StockPolicyReject); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if item, _ := s.GetItem(ctx, itemID); item.Quantity != 2 {
		t.Fatalf("rejected bill moved stock: %d", item.Quantity)
	}

	stored, err := s.GetBill(ctx, billID)
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if len(stored.Items) != 1 || !stored.Total.Equal(bill.Total) {
		t.Fatalf("unexpected stored bill: %+v", stored)
	}
}
