package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store"
)

type Store struct {
	mu            sync.RWMutex
	items         map[string]domain.InventoryItem
	bills         map[string]domain.Bill
	billsByNumber map[string]string
}

func New() *Store {
	return &Store{
		items:         map[string]domain.InventoryItem{},
		bills:         map[string]domain.Bill{},
		billsByNumber: map[string]string{},
	}
}

// NewSeeded returns a store holding the sample catalogue.
func NewSeeded() *Store {
	s := New()
	for _, item := range domain.SampleInventory(time.Now().UTC()) {
		s.items[item.ID] = item
	}
	return s
}

func (s *Store) Driver() string {
	return "memory"
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) ListItems(_ context.Context, category string) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		if category != "" && !strings.EqualFold(item.Category, category) {
			continue
		}
		result = append(result, item)
	}
	slices.SortFunc(result, func(a, b domain.InventoryItem) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) GetItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) GetItemsByIDs(_ context.Context, ids []string) (map[string]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.InventoryItem, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			result[id] = item
		}
	}
	return result, nil
}

func (s *Store) CreateItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return nil, store.ErrDuplicate
	}
	s.items[item.ID] = item
	return &item, nil
}

func (s *Store) UpdateItem(_ context.Context, item domain.InventoryItem, setQuantity bool) (*domain.InventoryItem, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[item.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	item.CreatedAt = existing.CreatedAt
	if !setQuantity {
		item.Quantity = existing.Quantity
	}
	s.items[item.ID] = item
	return &item, nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Store) CountItems(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.items)), nil
}

func (s *Store) CreateBill(_ context.Context, bill domain.Bill, policy domain.StockPolicy) (*domain.Bill, error) {
	if err := bill.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bills[bill.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if _, exists := s.billsByNumber[bill.BillNumber]; exists {
		return nil, store.ErrDuplicate
	}

	// Work on a scratch copy of the quantities so a rejected bill leaves
	// inventory untouched.
	remaining := map[string]int{}
	shortfalls := make([]domain.StockShortfall, 0)
	for _, line := range bill.Items {
		item, ok := s.items[line.ID]
		if !ok {
			shortfalls = append(shortfalls, domain.StockShortfall{
				ItemID:    line.ID,
				Name:      line.Name,
				Requested: line.Quantity,
				Reason:    domain.ShortfallNotInInventory,
			})
			continue
		}
		available, seen := remaining[line.ID]
		if !seen {
			available = item.Quantity
		}
		if available < line.Quantity {
			remaining[line.ID] = available
			shortfalls = append(shortfalls, domain.StockShortfall{
				ItemID:    line.ID,
				Name:      line.Name,
				Requested: line.Quantity,
				Available: available,
				Reason:    domain.ShortfallInsufficientStock,
			})
			continue
		}
		remaining[line.ID] = available - line.Quantity
	}

	if err := store.CheckShortfalls(policy, shortfalls); err != nil {
		return nil, err
	}

	for id, qty := range remaining {
		item := s.items[id]
		if item.Quantity == qty {
			continue
		}
		item.Quantity = qty
		item.UpdatedAt = bill.CreatedAt
		s.items[id] = item
	}

	bill.Shortfalls = nil
	s.bills[bill.ID] = cloneBill(bill)
	s.billsByNumber[bill.BillNumber] = bill.ID

	created := cloneBill(bill)
	if len(shortfalls) > 0 {
		created.Shortfalls = shortfalls
	}
	return &created, nil
}

func (s *Store) GetBill(_ context.Context, id string) (*domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, ok := s.bills[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	result := cloneBill(bill)
	return &result, nil
}

func (s *Store) ListBills(_ context.Context, from time.Time, to time.Time) ([]domain.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Bill, 0, len(s.bills))
	for _, bill := range s.bills {
		if !store.InRange(bill.CreatedAt, from, to) {
			continue
		}
		result = append(result, cloneBill(bill))
	}
	slices.SortFunc(result, func(a, b domain.Bill) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.BillNumber, a.BillNumber)
	})
	return result, nil
}

func (s *Store) CountBills(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.bills)), nil
}

func (s *Store) ImportItems(_ context.Context, items []domain.InventoryItem) error {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, exists := s.items[item.ID]; exists {
			return store.ErrDuplicate
		}
		if _, dup := seen[item.ID]; dup {
			return store.ErrDuplicate
		}
		seen[item.ID] = struct{}{}
	}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return nil
}

func (s *Store) ImportBills(_ context.Context, bills []domain.Bill) error {
	for _, bill := range bills {
		if err := bill.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[string]struct{}, len(bills))
	numbers := make(map[string]struct{}, len(bills))
	for _, bill := range bills {
		if _, exists := s.bills[bill.ID]; exists {
			return store.ErrDuplicate
		}
		if _, exists := s.billsByNumber[bill.BillNumber]; exists {
			return store.ErrDuplicate
		}
		if _, dup := ids[bill.ID]; dup {
			return store.ErrDuplicate
		}
		if _, dup := numbers[bill.BillNumber]; dup {
			return store.ErrDuplicate
		}
		ids[bill.ID] = struct{}{}
		numbers[bill.BillNumber] = struct{}{}
	}
	for _, bill := range bills {
		bill.Shortfalls = nil
		s.bills[bill.ID] = cloneBill(bill)
		s.billsByNumber[bill.BillNumber] = bill.ID
	}
	return nil
}

func cloneBill(bill domain.Bill) domain.Bill {
	bill.Items = slices.Clone(bill.Items)
	bill.Shortfalls = slices.Clone(bill.Shortfalls)
	return bill
}
