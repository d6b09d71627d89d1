// Package store defines the persistence contract the canteen services run
// on. Implementations live in internal/db (PostgreSQL) and
// internal/store/memory.
//
// Reads that find nothing return a nil entity and a nil error.
package store

import (
	"context"
	"time"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
)

type Store interface {
	Menu() MenuRepository
	Orders() OrderRepository

	// InTx runs fn inside a transaction. Rows locked through the Tx stay
	// locked until InTx returns. A non-nil error from fn rolls back every
	// write made through the Tx and is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type MenuRepository interface {
	GetAll(ctx context.Context) ([]models.MenuItem, error)
	GetByID(ctx context.Context, id int64) (*models.MenuItem, error)
	FindByStockGreaterThan(ctx context.Context, n int) ([]models.MenuItem, error)
	// SearchByName matches a case-insensitive substring of the name.
	SearchByName(ctx context.Context, substr string) ([]models.MenuItem, error)
	Create(ctx context.Context, item *models.MenuItem) error
	// Update reports false when the item does not exist.
	Update(ctx context.Context, item *models.MenuItem) (bool, error)
	// Delete reports false when the item does not exist.
	Delete(ctx context.Context, id int64) (bool, error)
}

type OrderRepository interface {
	// GetAll orders by created_at descending; equal timestamps keep
	// insertion order.
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	GetByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	GetByStatusCreatedBefore(ctx context.Context, status models.OrderStatus, before time.Time) ([]models.Order, error)
}

// Tx is the locking half of the contract. Only use it inside the fn passed
// to Store.InTx.
type Tx interface {
	// LockMenuItem reads a menu item and holds an exclusive lock on its row.
	LockMenuItem(ctx context.Context, id int64) (*models.MenuItem, error)
	SetStock(ctx context.Context, id int64, stock int) error

	// LockOrder reads an order and holds an exclusive lock on its row.
	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	// InsertOrder assigns order.ID.
	InsertOrder(ctx context.Context, order *models.Order) error
	SetOrderStatus(ctx context.Context, id int64, status models.OrderStatus, at time.Time) error
}
