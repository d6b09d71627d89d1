package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
)

const orderColumns = "id, menu_item_id, status, created_at, updated_at"

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(database *PostgresDB) *OrderRepository {
	return &OrderRepository{db: database.Conn}
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	if err := row.Scan(&o.ID, &o.MenuItemID, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	return orders, nil
}

// GetAll returns all orders, newest first
func (r *OrderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	return r.list(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC, id ASC")
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) GetByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE status = $1 ORDER BY created_at DESC, id ASC"
	return r.list(ctx, query, status)
}

// GetByStatusCreatedBefore returns the oldest orders first
func (r *OrderRepository) GetByStatusCreatedBefore(ctx context.Context, status models.OrderStatus, before time.Time) ([]models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC, id ASC"
	return r.list(ctx, query, status, before)
}
