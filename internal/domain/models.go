package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The browser UI reads prices and totals as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	CategoryFancy       = "fancy"
	CategoryElectronics = "electronics"
	CategoryUnknown     = "unknown"
)

const (
	PaymentCash   = "cash"
	PaymentOnline = "online"
)

type StockPolicy string

const (
	// StockPolicyReject fails the whole bill when any line cannot be stocked.
	StockPolicyReject StockPolicy = "reject"
	// StockPolicyRecord persists and charges the bill anyway and reports the lines.
	StockPolicyRecord StockPolicy = "record"
)

const (
	ShortfallInsufficientStock = "insufficient_stock"
	ShortfallNotInInventory    = "not_in_inventory"
)

type InventoryItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Description string          `json:"description"`
	SKU         string          `json:"sku"`
	Image       string          `json:"image"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type InventoryCreateRequest struct {
	Name        *string          `json:"name"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity"`
	Description string           `json:"description"`
	SKU         string           `json:"sku"`
	Image       string           `json:"image"`
}

// InventoryUpdateRequest carries the fields to merge over an existing item.
// Nil means "leave unchanged".
type InventoryUpdateRequest struct {
	Name        *string          `json:"name,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	Description *string          `json:"description,omitempty"`
	SKU         *string          `json:"sku,omitempty"`
	Image       *string          `json:"image,omitempty"`
}

type DeleteResponse struct {
	Message string `json:"message"`
}

// CartLine is one requested line of a bill. Name and Price are only used when
// the item no longer exists in inventory.
type CartLine struct {
	ID       string           `json:"id"`
	Quantity int              `json:"quantity"`
	Name     string           `json:"name,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

type BillCreateRequest struct {
	Items         []CartLine `json:"items"`
	CustomerName  string     `json:"customerName"`
	CustomerPhone string     `json:"customerPhone"`
	PaymentMethod string     `json:"paymentMethod"`
}

type BillLine struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type StockShortfall struct {
	ItemID    string `json:"id"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Reason    string `json:"reason"`
}

type Bill struct {
	ID            string          `json:"id"`
	BillNumber    string          `json:"billNumber"`
	Items         []BillLine      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	CustomerName  string          `json:"customerName"`
	CustomerPhone string          `json:"customerPhone"`
	PaymentMethod string          `json:"paymentMethod"`
	CreatedAt     time.Time       `json:"createdAt"`

	// Shortfalls is filled in on creation only and never persisted.
	Shortfalls []StockShortfall `json:"shortfalls,omitempty"`
}

func (b Bill) TotalQuantity() int {
	qty := 0
	for _, line := range b.Items {
		qty += line.Quantity
	}
	return qty
}

type CategoryStat struct {
	Count    int             `json:"count"`
	Revenue  decimal.Decimal `json:"revenue"`
	Quantity int             `json:"quantity"`
}

type DailyStat struct {
	BillCount int             `json:"billCount"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type BillSummary struct {
	ID         string          `json:"id"`
	BillNumber string          `json:"billNumber"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Report struct {
	Period         string                   `json:"period"`
	Date           string                   `json:"date"`
	TotalBills     int                      `json:"totalBills"`
	TotalRevenue   decimal.Decimal          `json:"totalRevenue"`
	CategoryStats  map[string]*CategoryStat `json:"categoryStats"`
	DailyBreakdown map[string]*DailyStat    `json:"dailyBreakdown"`
	Bills          []BillSummary            `json:"bills"`
}

type HealthStatus struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	Database       string `json:"database"`
	Driver         string `json:"driver"`
	InventoryCount int64  `json:"inventoryCount"`
	Sequence       string `json:"sequence"`
	SequenceStatus string `json:"sequenceStatus"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}
