package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/store"
)

// Store is the PostgreSQL store.Store. Row locks are SELECT ... FOR UPDATE
// inside a database/sql transaction.
type Store struct {
	db     *sql.DB
	menu   *MenuRepository
	orders *OrderRepository
}

func NewStore(database *PostgresDB) *Store {
	return &Store{
		db:     database.Conn,
		menu:   NewMenuRepository(database),
		orders: NewOrderRepository(database),
	}
}

func (s *Store) Menu() store.MenuRepository {
	return s.menu
}

func (s *Store) Orders() store.OrderRepository {
	return s.orders
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	// Start transaction
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LockMenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	query := "SELECT " + menuItemColumns + " FROM menu_items WHERE id = $1 FOR UPDATE"

	m, err := scanMenuItem(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock menu item: %w", err)
	}
	return m, nil
}

func (t *pgTx) SetStock(ctx context.Context, id int64, stock int) error {
	result, err := t.tx.ExecContext(ctx,
		"UPDATE menu_items SET stock_count = $1, updated_at = NOW() WHERE id = $2", stock, id)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	return expectOneRow(result, "menu item", id)
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1 FOR UPDATE"

	o, err := scanOrder(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return o, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (menu_item_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := t.tx.QueryRowContext(ctx, query, order.MenuItemID, order.Status, order.CreatedAt, order.UpdatedAt).
		Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (t *pgTx) SetOrderStatus(ctx context.Context, id int64, status models.OrderStatus, at time.Time) error {
	result, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3", status, at, id)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return expectOneRow(result, "order", id)
}

func expectOneRow(result sql.Result, what string, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %d not found", what, id)
	}
	return nil
}
