package mongodb

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

func TestCreateBillCompensatesRejectedLines(t *testing.T) {
	uri := os.Getenv("BILLING_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("set BILLING_TEST_MONGO_URI to run mongo integration test")
	}

	ctx := context.Background()
	database := fmt.Sprintf("billing_it_%d", time.Now().UnixNano())
	s, err := New(ctx, uri, database)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.client.Database(database).Drop(context.Background())
		_ = s.Close()
	})

	now := time.Now().UTC().Truncate(time.Millisecond)
	for _, item := range []domain.InventoryItem{
		{ID: "i1", Name: "Bangle", Category: domain.CategoryFancy, Price: decimal.RequireFromString("120.5"), Quantity: 5, CreatedAt: now, UpdatedAt: now},
		{ID: "i2", Name: "Torch", Category: domain.CategoryElectronics, Price: decimal.RequireFromString("349"), Quantity: 1, CreatedAt: now, UpdatedAt: now},
	} {
		if _, err := s.CreateItem(ctx, item); err != nil {
			t.Fatalf("create item: %v", err)
		}
	}

	bill := domain.Bill{
		ID:         "b1",
		BillNumber: "BILL-1",
		Items: []domain.BillLine{
			{ID: "i1", Name: "Bangle", Price: decimal.RequireFromString("120.5"), Quantity: 2},
			{ID: "i2", Name: "Torch", Price: decimal.RequireFromString("349"), Quantity: 2},
		},
		Total:         decimal.RequireFromString("939"),
		PaymentMethod: domain.PaymentCash,
		CreatedAt:     now,
	}
	if _, err := s.CreateBill(ctx, bill, domain.StockPolicyReject); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	item, err := s.GetItem(ctx, "i1")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Quantity != 5 {
		t.Fatalf("expected compensated quantity 5, got %d", item.Quantity)
	}

	bill.Items = bill.Items[:1]
	bill.Total = decimal.RequireFromString("241")
	if _, err := s.CreateBill(ctx, bill, domain.StockPolicyReject); err != nil {
		t.Fatalf("create bill: %v", err)
	}
	stored, err := s.GetBill(ctx, "b1")
	if err != nil {
		t.Fatalf("get bill: %v", err)
	}
	if !stored.Total.Equal(bill.Total) || len(stored.Items) != 1 {
		t.Fatalf("unexpected stored bill: %+v", stored)
	}
}
