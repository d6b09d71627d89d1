package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
)

const menuItemColumns = "id, name, description, category, image_url, price, stock_count, created_at, updated_at"

type MenuRepository struct {
	db *sql.DB
}

func NewMenuRepository(database *PostgresDB) *MenuRepository {
	return &MenuRepository{db: database.Conn}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMenuItem(row rowScanner) (*models.MenuItem, error) {
	var m models.MenuItem
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Category, &m.ImageURL,
		&m.Price, &m.StockCount, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MenuRepository) list(ctx context.Context, query string, args ...any) ([]models.MenuItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}
	defer rows.Close()

	items := make([]models.MenuItem, 0)
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read menu items: %w", err)
	}

	return items, nil
}

// GetAll returns all menu items
func (r *MenuRepository) GetAll(ctx context.Context) ([]models.MenuItem, error) {
	return r.list(ctx, "SELECT "+menuItemColumns+" FROM menu_items ORDER BY id")
}

func (r *MenuRepository) GetByID(ctx context.Context, id int64) (*models.MenuItem, error) {
	query := "SELECT " + menuItemColumns + " FROM menu_items WHERE id = $1"

	m, err := scanMenuItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get menu item: %w", err)
	}

	return m, nil
}

func (r *MenuRepository) FindByStockGreaterThan(ctx context.Context, n int) ([]models.MenuItem, error) {
	return r.list(ctx, "SELECT "+menuItemColumns+" FROM menu_items WHERE stock_count > $1 ORDER BY id", n)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchByName matches name case-insensitively; % and _ in substr are
// literal.
func (r *MenuRepository) SearchByName(ctx context.Context, substr string) ([]models.MenuItem, error) {
	query := "SELECT " + menuItemColumns + ` FROM menu_items
		WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY id`
	return r.list(ctx, query, likeEscaper.Replace(substr))
}

// Create inserts a new menu item
func (r *MenuRepository) Create(ctx context.Context, item *models.MenuItem) error {
	query := `
		INSERT INTO menu_items (name, description, category, image_url, price, stock_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		item.Name, item.Description, item.Category, item.ImageURL, item.Price, item.StockCount,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create menu item: %w", err)
	}

	return nil
}

func (r *MenuRepository) Update(ctx context.Context, item *models.MenuItem) (bool, error) {
	query := `
		UPDATE menu_items
		SET name = $1, description = $2, category = $3, image_url = $4,
		    price = $5, stock_count = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		item.Name, item.Description, item.Category, item.ImageURL, item.Price, item.StockCount, item.ID,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to update menu item: %w", err)
	}

	return true, nil
}

// Delete removes a menu item
func (r *MenuRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM menu_items WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete menu item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete menu item: %w", err)
	}

	return rowsAffected > 0, nil
}
