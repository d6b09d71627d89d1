package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no transition may leave s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCancelled:
		return true
	}
	return false
}

// ParseOrderStatus accepts any letter case.
func ParseOrderStatus(v string) (OrderStatus, error) {
	s := OrderStatus(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status %q", v)
	}
	return s, nil
}

// Order references its menu item by id only; price, name and stock stay
// with the menu item.
type Order struct {
	ID         int64       `json:"id"`
	MenuItemID int64       `json:"menuItemId"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// OrderView is the API shape of an order: the order plus its menu item as
// it is now. MenuItem is nil once the item has been deleted.
type OrderView struct {
	Order
	MenuItem   *MenuItem       `json:"menuItem"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// NewOrderView prices a single-unit order at the item's current price.
func NewOrderView(o Order, item *MenuItem) OrderView {
	v := OrderView{Order: o, MenuItem: item, TotalPrice: decimal.Zero}
	if item != nil {
		v.TotalPrice = item.Price
	}
	return v
}

type CreateOrderRequest struct {
	MenuItemID int64 `json:"menuItemId" binding:"required"`
}

type OrderStats struct {
	TotalOrders     int             `json:"totalOrders"`
	PendingOrders   int             `json:"pendingOrders"`
	PaidOrders      int             `json:"paidOrders"`
	CancelledOrders int             `json:"cancelledOrders"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
}
