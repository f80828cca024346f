package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"queue-bot/internal/stories/customers"
)

const customersTable = "customers"

var customerRowFields = fields(customerRow{})

type customerRow struct {
	Phone          string    `db:"phone"`
	Name           *string   `db:"name"`
	TelegramChatID *int64    `db:"telegram_chat_id"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (c customerRow) ToModel() *customers.Customer {
	return &customers.Customer{
		Phone:          c.Phone,
		Name:           c.Name,
		TelegramChatID: c.TelegramChatID,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// UpsertCustomer keeps the stored name when the new one is empty.
func (s *storageImpl) UpsertCustomer(ctx context.Context, customer customers.Customer) (*customers.Customer, error) {
	now := s.now()

	q, args, err := s.stmpBuilder().
		Insert(customersTable).
		SetMap(map[string]interface{}{
			"phone":            customer.Phone,
			"name":             customer.Name,
			"telegram_chat_id": customer.TelegramChatID,
			"created_at":       now,
			"updated_at":       now,
		}).
		Suffix(`ON CONFLICT(phone) DO UPDATE SET
			name = COALESCE(excluded.name, customers.name),
			telegram_chat_id = COALESCE(excluded.telegram_chat_id, customers.telegram_chat_id),
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("db.ExecContext: %w", err)
	}

	return s.GetCustomer(ctx, customer.Phone)
}

func (s *storageImpl) GetCustomer(ctx context.Context, phone string) (*customers.Customer, error) {
	q, args, err := s.stmpBuilder().
		Select(customerRowFields).
		From(customersTable).
		Where(sq.Eq{"phone": phone}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var row customerRow
	if err := s.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}
	return row.ToModel(), nil
}
