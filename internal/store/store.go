package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicate         = errors.New("duplicate key")
	ErrUnavailable       = errors.New("datastore unavailable")
)

// InsufficientStockError lists the lines that blocked a bill.
type InsufficientStockError struct {
	Shortfalls []domain.StockShortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		label := s.Name
		if label == "" {
			label = s.ItemID
		}
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", label, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

type Repository interface {
	// Driver names the backend, e.g. "memory" or "postgres".
	Driver() string
	Ping(ctx context.Context) error
	Close() error

	ListItems(ctx context.Context, category string) ([]domain.InventoryItem, error)
	GetItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	GetItemsByIDs(ctx context.Context, ids []string) (map[string]domain.InventoryItem, error)
	CreateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	// UpdateItem replaces an item's editable fields. Quantity is only written
	// when setQuantity is true so a stale copy cannot undo a bill's decrement.
	UpdateItem(ctx context.Context, item domain.InventoryItem, setQuantity bool) (*domain.InventoryItem, error)
	DeleteItem(ctx context.Context, id string) error
	CountItems(ctx context.Context) (int64, error)

	// CreateBill decrements stock for every line and persists the bill as one
	// atomic step. Under StockPolicyReject no stock moves when it fails.
	CreateBill(ctx context.Context, bill domain.Bill, policy domain.StockPolicy) (*domain.Bill, error)
	GetBill(ctx context.Context, id string) (*domain.Bill, error)
	// ListBills returns bills created in [from, to), newest first. A zero bound
	// is open.
	ListBills(ctx context.Context, from time.Time, to time.Time) ([]domain.Bill, error)
	CountBills(ctx context.Context) (int64, error)

	ImportItems(ctx context.Context, items []domain.InventoryItem) error
	ImportBills(ctx context.Context, bills []domain.Bill) error
}

// CheckShortfalls decides whether a bill with the given shortfalls may be
// persisted. Lines for items missing from inventory never block a bill.
func CheckShortfalls(policy domain.StockPolicy, shortfalls []domain.StockShortfall) error {
	if policy == domain.StockPolicyRecord {
		return nil
	}
	blocking := make([]domain.StockShortfall, 0, len(shortfalls))
	for _, s := range shortfalls {
		if s.Reason == domain.ShortfallInsufficientStock {
			blocking = append(blocking, s)
		}
	}
	if len(blocking) > 0 {
		return &InsufficientStockError{Shortfalls: blocking}
	}
	return nil
}

// InRange reports whether t falls in [from, to) with zero bounds open.
func InRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
