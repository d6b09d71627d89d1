package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type MenuItem struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Price       decimal.Decimal `json:"price"`
	StockCount  int             `json:"stockCount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// MenuItemRequest is the body of create and update calls.
type MenuItemRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"imageUrl"`
	Price       decimal.Decimal `json:"price"`
	StockCount  int             `json:"stockCount"`
}

// Validate returns a description of the first invalid field, or "" when
// the request is acceptable.
func (r MenuItemRequest) Validate() string {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return "name is required"
	case r.Price.IsNegative():
		return "price must not be negative"
	case r.StockCount < 0:
		return "stock count must not be negative"
	}
	return ""
}

// Apply copies the request fields onto item.
func (r MenuItemRequest) Apply(item *MenuItem) {
	item.Name = strings.TrimSpace(r.Name)
	item.Description = r.Description
	item.Category = r.Category
	item.ImageURL = r.ImageURL
	item.Price = r.Price
	item.StockCount = r.StockCount
}
