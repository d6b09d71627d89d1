package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/apperrors"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/store"
)

// InventoryService is the only writer of MenuItem.StockCount outside of
// administrative create and update.
type InventoryService struct {
	store  store.Store
	logger *slog.Logger
}

func NewInventoryService(st store.Store, logger *slog.Logger) *InventoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InventoryService{
		store:  st,
		logger: logger.With("component", "inventory"),
	}
}

type reserveOutcome int

const (
	reserved reserveOutcome = iota
	itemMissing
	stockShort
)

// Reserve takes quantity units of stock under the item's row lock. It
// returns false, without changing anything, when the item does not exist
// or has fewer than quantity units left.
func (s *InventoryService) Reserve(ctx context.Context, menuItemID int64, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, apperrors.InvalidInput("quantity must be positive")
	}

	var outcome reserveOutcome
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		outcome, _, err = s.reserve(ctx, tx, menuItemID, quantity)
		return err
	})
	if err != nil {
		return false, apperrors.Fault(err)
	}
	return outcome == reserved, nil
}

func (s *InventoryService) reserve(ctx context.Context, tx store.Tx, menuItemID int64, quantity int) (reserveOutcome, *models.MenuItem, error) {
	item, err := tx.LockMenuItem(ctx, menuItemID)
	if err != nil {
		return 0, nil, err
	}
	if item == nil {
		s.logger.Warn("menu item not found", "menu_item_id", menuItemID)
		return itemMissing, nil, nil
	}

	if item.StockCount < quantity {
		s.logger.Warn("insufficient stock",
			"menu_item_id", menuItemID,
			"name", item.Name,
			"available", item.StockCount,
			"requested", quantity,
		)
		return stockShort, item, nil
	}

	if err := tx.SetStock(ctx, menuItemID, item.StockCount-quantity); err != nil {
		return 0, nil, err
	}
	item.StockCount -= quantity

	s.logger.Info("stock reserved", "menu_item_id", menuItemID, "quantity", quantity, "remaining", item.StockCount)
	return reserved, item, nil
}

// Release gives quantity units back. A missing item is logged and skipped;
// only storage faults are returned.
func (s *InventoryService) Release(ctx context.Context, menuItemID int64, quantity int) error {
	if quantity <= 0 {
		return apperrors.InvalidInput("quantity must be positive")
	}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		return s.release(ctx, tx, menuItemID, quantity)
	})
	return apperrors.Fault(err)
}

func (s *InventoryService) release(ctx context.Context, tx store.Tx, menuItemID int64, quantity int) error {
	item, err := tx.LockMenuItem(ctx, menuItemID)
	if err != nil {
		return err
	}
	if item == nil {
		s.logger.Error("menu item not found, skipping stock release", "menu_item_id", menuItemID, "quantity", quantity)
		return nil
	}

	if err := tx.SetStock(ctx, menuItemID, item.StockCount+quantity); err != nil {
		return err
	}

	s.logger.Info("stock released", "menu_item_id", menuItemID, "quantity", quantity, "remaining", item.StockCount+quantity)
	return nil
}

func (s *InventoryService) ListMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	items, err := s.store.Menu().GetAll(ctx)
	return items, apperrors.Fault(err)
}

// ListAvailable returns items that still have stock.
func (s *InventoryService) ListAvailable(ctx context.Context) ([]models.MenuItem, error) {
	items, err := s.store.Menu().FindByStockGreaterThan(ctx, 0)
	return items, apperrors.Fault(err)
}

func (s *InventoryService) SearchMenuItems(ctx context.Context, name string) ([]models.MenuItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("search term is required")
	}
	items, err := s.store.Menu().SearchByName(ctx, name)
	return items, apperrors.Fault(err)
}

func (s *InventoryService) GetMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	item, err := s.store.Menu().GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Fault(err)
	}
	if item == nil {
		return nil, apperrors.NotFound("menu item not found with id: %d", id)
	}
	return item, nil
}

func (s *InventoryService) CreateMenuItem(ctx context.Context, req models.MenuItemRequest) (*models.MenuItem, error) {
	if msg := req.Validate(); msg != "" {
		return nil, apperrors.InvalidInput("%s", msg)
	}

	var item models.MenuItem
	req.Apply(&item)
	if err := s.store.Menu().Create(ctx, &item); err != nil {
		return nil, apperrors.Fault(err)
	}

	s.logger.Info("menu item created", "menu_item_id", item.ID, "name", item.Name)
	return &item, nil
}

func (s *InventoryService) UpdateMenuItem(ctx context.Context, id int64, req models.MenuItemRequest) (*models.MenuItem, error) {
	if msg := req.Validate(); msg != "" {
		return nil, apperrors.InvalidInput("%s", msg)
	}

	item := models.MenuItem{ID: id}
	req.Apply(&item)
	ok, err := s.store.Menu().Update(ctx, &item)
	if err != nil {
		return nil, apperrors.Fault(err)
	}
	if !ok {
		return nil, apperrors.NotFound("menu item not found with id: %d", id)
	}

	s.logger.Info("menu item updated", "menu_item_id", id)
	return &item, nil
}

func (s *InventoryService) DeleteMenuItem(ctx context.Context, id int64) error {
	ok, err := s.store.Menu().Delete(ctx, id)
	if err != nil {
		return apperrors.Fault(err)
	}
	if !ok {
		return apperrors.NotFound("menu item not found with id: %d", id)
	}

	s.logger.Info("menu item deleted", "menu_item_id", id)
	return nil
}
