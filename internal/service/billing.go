package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/logger"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/sequence"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store"
)

const maxBillNumberAttempts = 3

// CreateBill prices the cart from current inventory and hands the bill to the
// store, which decrements stock and persists it in one step.
func (s *Service) CreateBill(ctx context.Context, req domain.BillCreateRequest) (domain.Bill, error) {
	if len(req.Items) == 0 {
		return domain.Bill{}, domain.Invalid("items", "must contain at least one line")
	}

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = domain.PaymentCash
	}
	if !domain.ValidPaymentMethod(method) {
		return domain.Bill{}, domain.Invalid("paymentMethod", "must be one of cash, online")
	}

	ids := make([]string, 0, len(req.Items))
	for i := range req.Items {
		req.Items[i].ID = strings.TrimSpace(req.Items[i].ID)
		if req.Items[i].ID == "" {
			return domain.Bill{}, domain.Invalid("items.id", "is required")
		}
		if req.Items[i].Quantity < 1 {
			return domain.Bill{}, domain.Invalid("items.quantity", "must be at least 1")
		}
		ids = append(ids, req.Items[i].ID)
	}

	snapshot, err := s.repo.GetItemsByIDs(ctx, ids)
	if err != nil {
		return domain.Bill{}, fmt.Errorf("load inventory snapshot: %w", err)
	}

	lines := make([]domain.BillLine, 0, len(req.Items))
	total := decimal.Zero
	for _, cartLine := range req.Items {
		line := domain.BillLine{ID: cartLine.ID, Quantity: cartLine.Quantity}
		if item, ok := snapshot[cartLine.ID]; ok {
			line.Name = item.Name
			line.Price = domain.RoundMoney(item.Price)
		} else {
			line.Name = strings.TrimSpace(cartLine.Name)
			line.Price = decimal.Zero
			if cartLine.Price != nil {
				if cartLine.Price.IsNegative() {
					return domain.Bill{}, domain.Invalid("items.price", "must not be negative")
				}
				line.Price = domain.RoundMoney(*cartLine.Price)
			}
		}
		lines = append(lines, line)
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	bill := domain.Bill{
		ID:            uuid.NewString(),
		Items:         lines,
		Total:         total,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		PaymentMethod: method,
		CreatedAt:     s.now().UTC(),
	}

	for attempt := 1; attempt <= maxBillNumberAttempts; attempt++ {
		n, err := s.sequence.Next(ctx)
		if err != nil {
			return domain.Bill{}, fmt.Errorf("allocate bill number: %w", err)
		}
		bill.BillNumber = sequence.FormatBillNumber(n)

		created, err := s.repo.CreateBill(ctx, bill, s.policy)
		if errors.Is(err, store.ErrDuplicate) {
			logger.Warn(ctx).Str("bill_number", bill.BillNumber).Int("attempt", attempt).Msg("bill number collision, retrying")
			continue
		}
		if err != nil {
			return domain.Bill{}, err
		}
		if len(created.Shortfalls) > 0 {
			logger.Warn(ctx).Str("bill_number", created.BillNumber).Int("shortfalls", len(created.Shortfalls)).Msg("bill recorded with stock shortfalls")
		}
		return *created, nil
	}
	return domain.Bill{}, fmt.Errorf("allocate bill number after %d attempts: %w", maxBillNumberAttempts, store.ErrDuplicate)
}
