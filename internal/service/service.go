package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/sequence"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store"
)

var (
	ErrItemNotFound = fmt.Errorf("item %w", store.ErrNotFound)
	ErrBillNotFound = fmt.Errorf("bill %w", store.ErrNotFound)
)

type Service struct {
	repo     store.Repository
	sequence sequence.Sequence
	policy   domain.StockPolicy
	location *time.Location
	now      func() time.Time
}

func New(repo store.Repository, seq sequence.Sequence, policy domain.StockPolicy, location *time.Location) *Service {
	if seq == nil {
		seq = sequence.NewLocal()
	}
	if !domain.ValidStockPolicy(policy) {
		policy = domain.StockPolicyReject
	}
	if location == nil {
		location = time.Local
	}

	return &Service{
		repo:     repo,
		sequence: seq,
		policy:   policy,
		location: location,
		now:      time.Now,
	}
}

func (s *Service) Location() *time.Location {
	return s.location
}

func (s *Service) ListItems(ctx context.Context, category string) ([]domain.InventoryItem, error) {
	return s.repo.ListItems(ctx, strings.ToLower(strings.TrimSpace(category)))
}

func (s *Service) GetItem(ctx context.Context, id string) (domain.InventoryItem, error) {
	item, err := s.repo.GetItem(ctx, strings.TrimSpace(id))
	if errors.Is(err, store.ErrNotFound) {
		return domain.InventoryItem{}, ErrItemNotFound
	}
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *item, nil
}

func (s *Service) CreateItem(ctx context.Context, req domain.InventoryCreateRequest) (domain.InventoryItem, error) {
	switch {
	case req.Name == nil || strings.TrimSpace(*req.Name) == "":
		return domain.InventoryItem{}, domain.Invalid("name", "is required")
	case req.Category == nil || strings.TrimSpace(*req.Category) == "":
		return domain.InventoryItem{}, domain.Invalid("category", "is required")
	case req.Price == nil:
		return domain.InventoryItem{}, domain.Invalid("price", "is required")
	case req.Quantity == nil:
		return domain.InventoryItem{}, domain.Invalid("quantity", "is required")
	}

	now := s.now().UTC()
	item := domain.InventoryItem{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(*req.Name),
		Category:    normalizeCategory(*req.Category),
		Price:       domain.RoundMoney(*req.Price),
		Quantity:    *req.Quantity,
		Description: strings.TrimSpace(req.Description),
		SKU:         strings.TrimSpace(req.SKU),
		Image:       strings.TrimSpace(req.Image),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := item.Validate(); err != nil {
		return domain.InventoryItem{}, err
	}

	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *created, nil
}

func (s *Service) UpdateItem(ctx context.Context, id string, req domain.InventoryUpdateRequest) (domain.InventoryItem, error) {
	existing, err := s.GetItem(ctx, id)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	merged := existing
	if req.Name != nil {
		merged.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		merged.Category = normalizeCategory(*req.Category)
	}
	if req.Price != nil {
		merged.Price = domain.RoundMoney(*req.Price)
	}
	if req.Quantity != nil {
		merged.Quantity = *req.Quantity
	}
	if req.Description != nil {
		merged.Description = strings.TrimSpace(*req.Description)
	}
	if req.SKU != nil {
		merged.SKU = strings.TrimSpace(*req.SKU)
	}
	if req.Image != nil {
		merged.Image = strings.TrimSpace(*req.Image)
	}
	merged.UpdatedAt = s.now().UTC()
	if err := merged.Validate(); err != nil {
		return domain.InventoryItem{}, err
	}

	updated, err := s.repo.UpdateItem(ctx, merged, req.Quantity != nil)
	if errors.Is(err, store.ErrNotFound) {
		return domain.InventoryItem{}, ErrItemNotFound
	}
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteItem(ctx context.Context, id string) error {
	err := s.repo.DeleteItem(ctx, strings.TrimSpace(id))
	if errors.Is(err, store.ErrNotFound) {
		return ErrItemNotFound
	}
	return err
}

// InitializeInventory loads the sample catalogue into an empty store. A store
// that already holds items is left alone.
func (s *Service) InitializeInventory(ctx context.Context) (domain.InitializeResponse, error) {
	count, err := s.repo.CountItems(ctx)
	if err != nil {
		return domain.InitializeResponse{}, err
	}
	if count > 0 {
		return domain.InitializeResponse{Message: "Inventory already initialized", Count: count}, nil
	}

	items := domain.SampleInventory(s.now().UTC())
	if err := s.repo.ImportItems(ctx, items); err != nil {
		return domain.InitializeResponse{}, fmt.Errorf("seed inventory: %w", err)
	}
	return domain.InitializeResponse{Message: "Sample inventory initialized", Count: int64(len(items))}, nil
}

func (s *Service) ListBills(ctx context.Context) ([]domain.Bill, error) {
	return s.repo.ListBills(ctx, time.Time{}, time.Time{})
}

func (s *Service) GetBill(ctx context.Context, id string) (domain.Bill, error) {
	bill, err := s.repo.GetBill(ctx, strings.TrimSpace(id))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Bill{}, ErrBillNotFound
	}
	if err != nil {
		return domain.Bill{}, err
	}
	return *bill, nil
}

// Health pings the store and counts inventory. The returned status is filled
// in even when err is non-nil.
func (s *Service) Health(ctx context.Context) (domain.HealthStatus, error) {
	status := domain.HealthStatus{
		Status:         "ok",
		Timestamp:      s.now().UTC().Format(time.RFC3339Nano),
		Database:       "connected",
		Driver:         s.repo.Driver(),
		Sequence:       s.sequence.Name(),
		SequenceStatus: "connected",
	}

	if err := s.repo.Ping(ctx); err != nil {
		status.Status = "error"
		status.Database = "disconnected"
		status.Message = "Database connection failed"
		status.Error = err.Error()
		return status, err
	}
	if err := s.sequence.Ping(ctx); err != nil {
		status.Status = "error"
		status.SequenceStatus = "disconnected"
		status.Message = "Bill number sequence unavailable"
		status.Error = err.Error()
		return status, err
	}
	count, err := s.repo.CountItems(ctx)
	if err != nil {
		status.Status = "error"
		status.Message = "Inventory count failed"
		status.Error = err.Error()
		return status, err
	}
	status.InventoryCount = count
	return status, nil
}

func normalizeCategory(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
