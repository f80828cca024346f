package sqlite3

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		id                  TEXT PRIMARY KEY,
		name                TEXT NOT NULL,
		is_active           BOOLEAN NOT NULL DEFAULT 1,
		is_accepting_orders BOOLEAN NOT NULL DEFAULT 1,
		marketing_enabled   BOOLEAN NOT NULL DEFAULT 0,
		lat                 REAL,
		lng                 REAL,
		avg_prep_minutes    INTEGER NOT NULL DEFAULT 0,
		language            TEXT NOT NULL DEFAULT '',
		created_at          DATETIME NOT NULL,
		updated_at          DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id         TEXT PRIMARY KEY,
		company_id TEXT NOT NULL REFERENCES companies(id),
		name       TEXT NOT NULL,
		price      TEXT NOT NULL,
		category   TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL,
		image_url  TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_company ON products(company_id)`,
	`CREATE TABLE IF NOT EXISTS customers (
		phone            TEXT PRIMARY KEY,
		name             TEXT,
		telegram_chat_id INTEGER,
		created_at       DATETIME NOT NULL,
		updated_at       DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                        TEXT PRIMARY KEY,
		company_id                TEXT NOT NULL REFERENCES companies(id),
		ticket_code               TEXT NOT NULL,
		ticket_number             INTEGER,
		phone                     TEXT NOT NULL,
		status                    TEXT NOT NULL,
		cancelled_by              TEXT,
		total                     TEXT,
		timer_accumulated_seconds INTEGER NOT NULL DEFAULT 0,
		timer_last_started_at     DATETIME,
		order_type                TEXT NOT NULL,
		delivery_address          TEXT,
		delivery_lat              REAL,
		delivery_lng              REAL,
		version                   INTEGER NOT NULL DEFAULT 1,
		created_at                DATETIME NOT NULL,
		updated_at                DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_company_status ON orders(company_id, status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_phone ON orders(phone)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id    TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		product_id  TEXT NOT NULL,
		name        TEXT NOT NULL,
		quantity    INTEGER NOT NULL CHECK (quantity >= 1),
		unit_price  TEXT NOT NULL,
		observation TEXT,
		PRIMARY KEY (order_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS sms_logs (
		id         TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		order_id   TEXT,
		recipient  TEXT NOT NULL,
		channel    TEXT NOT NULL,
		message    TEXT NOT NULL,
		cost       TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sms_logs_company ON sms_logs(company_id, created_at)`,
}

// Migrate creates missing tables. Statements are idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}
