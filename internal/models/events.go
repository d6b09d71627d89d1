package models

import "time"

type OrderEventType string

// Event types double as the RabbitMQ queue names.
const (
	OrderCreatedEvent   OrderEventType = "order.created"
	OrderPaidEvent      OrderEventType = "order.paid"
	OrderCancelledEvent OrderEventType = "order.cancelled"
)

const (
	CancelReasonCustomer = "customer"
	CancelReasonTimeout  = "timeout"
)

// OrderEvent is published after an order transition commits
type OrderEvent struct {
	Type       OrderEventType `json:"type"`
	OrderID    int64          `json:"orderId"`
	MenuItemID int64          `json:"menuItemId"`
	Status     OrderStatus    `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

func NewOrderEvent(t OrderEventType, order *Order) OrderEvent {
	return OrderEvent{
		Type:       t,
		OrderID:    order.ID,
		MenuItemID: order.MenuItemID,
		Status:     order.Status,
		OccurredAt: order.UpdatedAt,
	}
}
