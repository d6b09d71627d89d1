package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/apperrors"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
)

// MenuLookup is implemented by service.InventoryService.
type MenuLookup interface {
	GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error)
}

const DefaultRetryDelay = 2 * time.Second

// KitchenConsumer turns order.paid events into kitchen tickets.
type KitchenConsumer struct {
	menu       MenuLookup
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewKitchenConsumer waits retryDelay before requeueing a delivery whose
// menu lookup failed, so an unreachable store does not spin the queue.
func NewKitchenConsumer(menu MenuLookup, retryDelay time.Duration, logger *slog.Logger) *KitchenConsumer {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &KitchenConsumer{
		menu:       menu,
		retryDelay: retryDelay,
		logger:     logger.With("component", "kitchen"),
	}
}

type ack int

const (
	ackDone ack = iota
	ackDrop
	ackRetry
)

// Run handles deliveries until ctx is done or the channel is closed.
func (c *KitchenConsumer) Run(ctx context.Context, messages <-chan amqp.Delivery) error {
	c.logger.Info("kitchen consumer started", "queue", models.OrderPaidEvent)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kitchen consumer stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				c.logger.Warn("delivery channel closed")
				return nil
			}
			result := c.handle(ctx, msg.Body)
			if result == ackRetry {
				c.backoff(ctx)
			}
			c.settle(msg, result)
		}
	}
}

// backoff pauses before a requeue. Consumption stops meanwhile; the
// prefetched deliveries stay unacked on the broker.
func (c *KitchenConsumer) backoff(ctx context.Context) {
	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (c *KitchenConsumer) settle(msg amqp.Delivery, result ack) {
	var err error
	switch result {
	case ackDone:
		err = msg.Ack(false)
	case ackDrop:
		err = msg.Nack(false, false) // Don't requeue bad messages
	case ackRetry:
		err = msg.Nack(false, true) // Requeue for retry
	}
	if err != nil {
		c.logger.Error("failed to settle delivery", "delivery_tag", msg.DeliveryTag, "error", err)
	}
}

func (c *KitchenConsumer) handle(ctx context.Context, body []byte) ack {
	var event models.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error("failed to parse order event", "error", err)
		return ackDrop
	}
	if event.Type != models.OrderPaidEvent || event.OrderID <= 0 {
		c.logger.Error("unexpected order event", "type", event.Type, "order_id", event.OrderID)
		return ackDrop
	}

	name, err := c.itemName(ctx, event.MenuItemID)
	if err != nil {
		c.logger.Warn("menu lookup failed, requeueing", "order_id", event.OrderID, "error", err)
		return ackRetry
	}

	c.logger.Info("kitchen ticket",
		"order_id", event.OrderID,
		"menu_item_id", event.MenuItemID,
		"item", name,
		"paid_at", event.OccurredAt,
	)
	return ackDone
}

// itemName falls back to the id when the item has been deleted since the
// order was placed.
func (c *KitchenConsumer) itemName(ctx context.Context, id int64) (string, error) {
	item, err := c.menu.GetMenuItem(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Sprintf("menu item #%d", id), nil
	}
	if err != nil {
		return "", err
	}
	return item.Name, nil
}
