package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InitializeResponse struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

type sampleItem struct {
	name        string
	category    string
	price       string
	quantity    int
	description string
	sku         string
}

var sampleCatalog = []sampleItem{
	{"Handmade Bracelet Set", CategoryFancy, "299.00", 50, "Beautiful handmade bracelet set", "FANCY-001"},
	{"Decorative Wall Clock", CategoryFancy, "899.00", 30, "Vintage style decorative wall clock", "FANCY-002"},
	{"Crystal Vase Set", CategoryFancy, "1299.00", 25, "Elegant crystal vase set", "FANCY-003"},
	{"Wireless Bluetooth Headphones", CategoryElectronics, "2499.00", 40, "Premium wireless Bluetooth headphones", "ELEC-001"},
	{"Smart LED TV 32 inch", CategoryElectronics, "15999.00", 15, "32 inch Smart LED TV", "ELEC-002"},
	{"Electrical Wire (1mm)", CategoryElectronics, "49.00", 500, "Copper electrical wire 1mm", "ELEC-011"},
	{"PVC Electrical Pipe 20mm", CategoryElectronics, "89.00", 300, "PVC electrical conduit pipe 20mm", "ELEC-012"},
	{"LED Tubelight 20W", CategoryElectronics, "449.00", 100, "Energy efficient LED tubelight 20W", "ELEC-013"},
	{"Screws Set (Assorted)", CategoryElectronics, "149.00", 200, "Assorted electrical screws set", "ELEC-014"},
}

// SampleInventory builds the starter catalogue with fresh ids. Creation times
// are spaced a millisecond apart so listing order is stable.
func SampleInventory(now time.Time) []InventoryItem {
	items := make([]InventoryItem, 0, len(sampleCatalog))
	for i, s := range sampleCatalog {
		at := now.Add(time.Duration(i) * time.Millisecond)
		items = append(items, InventoryItem{
			ID:          uuid.NewString(),
			Name:        s.name,
			Category:    s.category,
			Price:       decimal.RequireFromString(s.price),
			Quantity:    s.quantity,
			Description: s.description,
			SKU:         s.sku,
			CreatedAt:   at,
			UpdatedAt:   at,
		})
	}
	return items
}
