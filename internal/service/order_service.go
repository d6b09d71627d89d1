package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/apperrors"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/store"
)

const DefaultPendingTimeout = 15 * time.Minute

// EventPublisher receives order events after the transition has committed.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

type OrderServiceConfig struct {
	Store     store.Store
	Inventory *InventoryService
	Publisher EventPublisher // optional
	Clock     Clock
	Logger    *slog.Logger

	// PendingTimeout is how long an order may stay PENDING before the
	// sweep cancels it.
	PendingTimeout time.Duration
}

type OrderService struct {
	store          store.Store
	inventory      *InventoryService
	publisher      EventPublisher
	clock          Clock
	logger         *slog.Logger
	pendingTimeout time.Duration
}

func NewOrderService(cfg OrderServiceConfig) *OrderService {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = DefaultPendingTimeout
	}
	if cfg.Inventory == nil {
		cfg.Inventory = NewInventoryService(cfg.Store, cfg.Logger)
	}
	return &OrderService{
		store:          cfg.Store,
		inventory:      cfg.Inventory,
		publisher:      cfg.Publisher,
		clock:          cfg.Clock,
		logger:         cfg.Logger.With("component", "orders"),
		pendingTimeout: cfg.PendingTimeout,
	}
}

// CreateOrder reserves one unit of the menu item and records a PENDING
// order in the same transaction.
func (s *OrderService) CreateOrder(ctx context.Context, menuItemID int64) (*models.Order, error) {
	var order *models.Order
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		outcome, item, err := s.inventory.reserve(ctx, tx, menuItemID, 1)
		if err != nil {
			return err
		}
		switch outcome {
		case itemMissing:
			return apperrors.NotFound("menu item not found with id: %d", menuItemID)
		case stockShort:
			return apperrors.InsufficientStock("insufficient stock for menu item: %s", item.Name)
		}

		now := s.clock.Now()
		order = &models.Order{
			MenuItemID: menuItemID,
			Status:     models.OrderStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return tx.InsertOrder(ctx, order)
	})
	if err != nil {
		return nil, apperrors.Fault(err)
	}

	s.logger.Info("order created", "order_id", order.ID, "menu_item_id", menuItemID)
	s.publish(ctx, models.NewOrderEvent(models.OrderCreatedEvent, order))
	return order, nil
}

// CancelOrder returns the order's unit of stock and marks it CANCELLED.
// The release and the status write commit together.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order *models.Order
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return apperrors.NotFound("order not found with id: %d", orderID)
		}

		switch order.Status {
		case models.OrderStatusCancelled:
			return apperrors.InvalidState("order is already cancelled")
		case models.OrderStatusPaid:
			return apperrors.InvalidState("cannot cancel a paid order")
		}

		return s.cancelPending(ctx, tx, order)
	})
	if err != nil {
		return nil, apperrors.Fault(err)
	}

	s.logger.Info("order cancelled", "order_id", orderID, "menu_item_id", order.MenuItemID)
	event := models.NewOrderEvent(models.OrderCancelledEvent, order)
	event.Reason = models.CancelReasonCustomer
	s.publish(ctx, event)
	return order, nil
}

// cancelPending expects order to be locked by tx and PENDING.
func (s *OrderService) cancelPending(ctx context.Context, tx store.Tx, order *models.Order) error {
	if err := s.inventory.release(ctx, tx, order.MenuItemID, 1); err != nil {
		return err
	}

	now := s.clock.Now()
	if err := tx.SetOrderStatus(ctx, order.ID, models.OrderStatusCancelled, now); err != nil {
		return err
	}
	order.Status = models.OrderStatusCancelled
	order.UpdatedAt = now
	return nil
}

// PayOrder marks a PENDING order PAID. The reserved unit is consumed, so
// stock is not touched.
func (s *OrderService) PayOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order *models.Order
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return apperrors.NotFound("order not found with id: %d", orderID)
		}
		if order.Status != models.OrderStatusPending {
			return apperrors.InvalidState("only pending orders can be paid")
		}

		now := s.clock.Now()
		if err := tx.SetOrderStatus(ctx, orderID, models.OrderStatusPaid, now); err != nil {
			return err
		}
		order.Status = models.OrderStatusPaid
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, apperrors.Fault(err)
	}

	s.logger.Info("order paid", "order_id", orderID)
	s.publish(ctx, models.NewOrderEvent(models.OrderPaidEvent, order))
	return order, nil
}

type SweepResult struct {
	Scanned   int
	Cancelled int
	Skipped   int
	Failed    int
}

var errNoLongerPending = errors.New("order is no longer pending")

// AutoCancelStalePending cancels every PENDING order created before
// now minus the pending timeout. Each order gets its own transaction; a
// failure on one is logged and counted and the rest are still processed.
// The returned error is only set when the candidate list can't be read.
func (s *OrderService) AutoCancelStalePending(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	cutoff := s.clock.Now().Add(-s.pendingTimeout)
	stale, err := s.store.Orders().GetByStatusCreatedBefore(ctx, models.OrderStatusPending, cutoff)
	if err != nil {
		return result, apperrors.Fault(err)
	}
	result.Scanned = len(stale)

	for _, candidate := range stale {
		if ctx.Err() != nil {
			break
		}

		var cancelled *models.Order
		err := s.store.InTx(ctx, func(tx store.Tx) error {
			order, err := tx.LockOrder(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if order == nil || order.Status != models.OrderStatusPending {
				return errNoLongerPending
			}
			if err := s.cancelPending(ctx, tx, order); err != nil {
				return err
			}
			cancelled = order
			return nil
		})

		switch {
		case errors.Is(err, errNoLongerPending):
			result.Skipped++
		case err != nil:
			result.Failed++
			s.logger.Error("failed to auto-cancel order", "order_id", candidate.ID, "error", err)
		default:
			result.Cancelled++
			s.logger.Info("auto-cancelled stale order", "order_id", cancelled.ID, "created_at", cancelled.CreatedAt)
			event := models.NewOrderEvent(models.OrderCancelledEvent, cancelled)
			event.Reason = models.CancelReasonTimeout
			s.publish(ctx, event)
		}
	}

	if result.Scanned > 0 {
		s.logger.Info("stale order sweep finished",
			"scanned", result.Scanned,
			"cancelled", result.Cancelled,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
	}
	return result, nil
}

func (s *OrderService) publish(ctx context.Context, event models.OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish order event", "type", event.Type, "order_id", event.OrderID, "error", err)
	}
}

func (s *OrderService) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.store.Orders().GetAll(ctx)
	return orders, apperrors.Fault(err)
}

// GetOrderHistory lists every order, newest first.
func (s *OrderService) GetOrderHistory(ctx context.Context) ([]models.Order, error) {
	return s.GetAllOrders(ctx)
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Fault(err)
	}
	if order == nil {
		return nil, apperrors.NotFound("order not found with id: %d", id)
	}
	return order, nil
}

func (s *OrderService) GetOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	if !status.Valid() {
		return nil, apperrors.InvalidInput("unknown order status %q", status)
	}
	orders, err := s.store.Orders().GetByStatus(ctx, status)
	return orders, apperrors.Fault(err)
}

func (s *OrderService) GetPendingOrders(ctx context.Context) ([]models.Order, error) {
	return s.GetOrdersByStatus(ctx, models.OrderStatusPending)
}

func (s *OrderService) GetPaidOrders(ctx context.Context) ([]models.Order, error) {
	return s.GetOrdersByStatus(ctx, models.OrderStatusPaid)
}

func (s *OrderService) GetCancelledOrders(ctx context.Context) ([]models.Order, error) {
	return s.GetOrdersByStatus(ctx, models.OrderStatusCancelled)
}

// GetOrderStats counts orders per status. Revenue is the current price of
// each paid order's menu item; items that no longer exist add nothing.
func (s *OrderService) GetOrderStats(ctx context.Context) (models.OrderStats, error) {
	stats := models.OrderStats{TotalRevenue: decimal.Zero}

	orders, err := s.store.Orders().GetAll(ctx)
	if err != nil {
		return stats, apperrors.Fault(err)
	}
	items, err := s.store.Menu().GetAll(ctx)
	if err != nil {
		return stats, apperrors.Fault(err)
	}

	prices := make(map[int64]decimal.Decimal, len(items))
	for _, item := range items {
		prices[item.ID] = item.Price
	}

	stats.TotalOrders = len(orders)
	for _, o := range orders {
		switch o.Status {
		case models.OrderStatusPending:
			stats.PendingOrders++
		case models.OrderStatusPaid:
			stats.PaidOrders++
			if price, ok := prices[o.MenuItemID]; ok {
				stats.TotalRevenue = stats.TotalRevenue.Add(price)
			}
		case models.OrderStatusCancelled:
			stats.CancelledOrders++
		}
	}
	return stats, nil
}

// Describe pairs each order with its menu item as it is now. Orders whose
// item was deleted get a nil MenuItem and a zero total.
func (s *OrderService) Describe(ctx context.Context, orders ...models.Order) ([]models.OrderView, error) {
	items := make(map[int64]*models.MenuItem)
	if len(orders) == 1 {
		item, err := s.store.Menu().GetByID(ctx, orders[0].MenuItemID)
		if err != nil {
			return nil, apperrors.Fault(err)
		}
		items[orders[0].MenuItemID] = item
	} else if len(orders) > 1 {
		all, err := s.store.Menu().GetAll(ctx)
		if err != nil {
			return nil, apperrors.Fault(err)
		}
		for i := range all {
			items[all[i].ID] = &all[i]
		}
	}

	views := make([]models.OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, models.NewOrderView(o, items[o.MenuItemID]))
	}
	return views, nil
}
