package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

type PostgresDB struct {
	Conn *sql.DB
}

func NewPostgresDB(ctx context.Context, host string, port int, user, password, dbname string) (*PostgresDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	// Test connection
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ Connected to PostgreSQL")
	return &PostgresDB{Conn: conn}, nil
}

// orders.menu_item_id carries no foreign key: menu items can be deleted
// while orders still point at them.
const schema = `
CREATE TABLE IF NOT EXISTS menu_items (
	id          BIGSERIAL PRIMARY KEY,
	name        VARCHAR(255) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category    VARCHAR(100) NOT NULL DEFAULT '',
	image_url   TEXT NOT NULL DEFAULT '',
	price       NUMERIC(10, 2) NOT NULL CHECK (price >= 0),
	stock_count INTEGER NOT NULL CHECK (stock_count >= 0),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS orders (
	id           BIGSERIAL PRIMARY KEY,
	menu_item_id BIGINT NOT NULL,
	status       VARCHAR(20) NOT NULL CHECK (status IN ('PENDING', 'PAID', 'CANCELLED')),
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at DESC, id);
CREATE INDEX IF NOT EXISTS idx_orders_status_created_at ON orders (status, created_at);
`

// Migrate creates the tables and indexes if they are missing.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if _, err := db.Conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("✅ Database schema ready")
	return nil
}

func (db *PostgresDB) Close() error {
	return db.Conn.Close()
}
