package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func ValidCategory(category string) bool {
	return category == CategoryFancy || category == CategoryElectronics
}

func ValidPaymentMethod(method string) bool {
	return method == PaymentCash || method == PaymentOnline
}

// MoneyPlaces is the number of decimal places stored for prices and totals.
const MoneyPlaces = 2

// RoundMoney rounds an amount to MoneyPlaces, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

func validMoney(d decimal.Decimal) bool {
	return d.Equal(RoundMoney(d))
}

func ValidStockPolicy(policy StockPolicy) bool {
	return policy == StockPolicyReject || policy == StockPolicyRecord
}

// Validate checks the invariants every stored inventory item must hold.
func (i InventoryItem) Validate() error {
	switch {
	case i.ID == "":
		return Invalid("id", "is required")
	case i.Name == "":
		return Invalid("name", "is required")
	case !ValidCategory(i.Category):
		return Invalid("category", "must be one of fancy, electronics")
	case i.Price.IsNegative():
		return Invalid("price", "must not be negative")
	case !validMoney(i.Price):
		return Invalid("price", "must have at most 2 decimal places")
	case i.Quantity < 0:
		return Invalid("quantity", "must not be negative")
	}
	return nil
}

func (b Bill) Validate() error {
	switch {
	case b.ID == "":
		return Invalid("id", "is required")
	case b.BillNumber == "":
		return Invalid("billNumber", "is required")
	case len(b.Items) == 0:
		return Invalid("items", "must not be empty")
	case !ValidPaymentMethod(b.PaymentMethod):
		return Invalid("paymentMethod", "must be one of cash, online")
	case !validMoney(b.Total):
		return Invalid("total", "must have at most 2 decimal places")
	}
	for _, line := range b.Items {
		if line.ID == "" {
			return Invalid("items.id", "is required")
		}
		if line.Quantity < 1 {
			return Invalid("items.quantity", "must be at least 1")
		}
		if line.Price.IsNegative() {
			return Invalid("items.price", "must not be negative")
		}
		if !validMoney(line.Price) {
			return Invalid("items.price", "must have at most 2 decimal places")
		}
	}
	return nil
}
