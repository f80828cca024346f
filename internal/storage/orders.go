package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"queue-bot/internal/stories/orders"
	"queue-bot/internal/stories/presence"
)

const (
	ordersTable     = "orders"
	orderItemsTable = "order_items"
)

var (
	orderRecordFields     = fields(OrderRecord{})
	orderItemRecordFields = fields(OrderItemRecord{})
)

// OrderRecord is the row shape of orders, also used as change event payload.
type OrderRecord struct {
	ID                      string              `db:"id" json:"id"`
	CompanyID               string              `db:"company_id" json:"company_id"`
	TicketCode              string              `db:"ticket_code" json:"ticket_code"`
	TicketNumber            *int64              `db:"ticket_number" json:"ticket_number"`
	Phone                   string              `db:"phone" json:"phone"`
	Status                  string              `db:"status" json:"status"`
	CancelledBy             *string             `db:"cancelled_by" json:"cancelled_by"`
	Total                   decimal.NullDecimal `db:"total" json:"total"`
	TimerAccumulatedSeconds int64               `db:"timer_accumulated_seconds" json:"timer_accumulated_seconds"`
	TimerLastStartedAt      *time.Time          `db:"timer_last_started_at" json:"timer_last_started_at"`
	OrderType               string              `db:"order_type" json:"order_type"`
	DeliveryAddress         *string             `db:"delivery_address" json:"delivery_address"`
	DeliveryLat             *float64            `db:"delivery_lat" json:"delivery_lat"`
	DeliveryLng             *float64            `db:"delivery_lng" json:"delivery_lng"`
	Version                 int64               `db:"version" json:"version"`
	CreatedAt               time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time           `db:"updated_at" json:"updated_at"`

	Items []OrderItemRecord `db:"-" json:"items"`
}

type OrderItemRecord struct {
	OrderID     string          `db:"order_id" json:"order_id"`
	Position    int             `db:"position" json:"position"`
	ProductID   string          `db:"product_id" json:"product_id"`
	Name        string          `db:"name" json:"name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	Observation *string         `db:"observation" json:"observation"`
}

// ToModel validates the stored enums; a row with an unknown status is an error, not a guess.
func (r OrderRecord) ToModel() (*orders.Order, error) {
	status, err := orders.ParseStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", r.ID, err)
	}
	orderType, err := orders.ParseOrderType(r.OrderType)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", r.ID, err)
	}

	o := &orders.Order{
		ID:                      r.ID,
		CompanyID:               r.CompanyID,
		TicketCode:              r.TicketCode,
		TicketNumber:            r.TicketNumber,
		Phone:                   r.Phone,
		Status:                  status,
		TimerAccumulatedSeconds: r.TimerAccumulatedSeconds,
		TimerLastStartedAt:      r.TimerLastStartedAt,
		OrderType:               orderType,
		DeliveryAddress:         r.DeliveryAddress,
		Version:                 r.Version,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}
	if r.CancelledBy != nil {
		actor, err := orders.ParseActor(*r.CancelledBy)
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", r.ID, err)
		}
		o.CancelledBy = &actor
	}
	if r.Total.Valid {
		o.Total = lo.ToPtr(r.Total.Decimal)
	}
	if r.DeliveryLat != nil && r.DeliveryLng != nil {
		o.DeliveryCoords = &presence.Coords{Lat: *r.DeliveryLat, Lng: *r.DeliveryLng}
	}
	if len(r.Items) > 0 {
		o.Items = lo.Map(r.Items, func(item OrderItemRecord, _ int) orders.LineItem {
			return orders.LineItem{
				ProductID:   item.ProductID,
				Name:        item.Name,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Observation: item.Observation,
			}
		})
	}
	return o, nil
}

func (s *storageImpl) CreateOrder(ctx context.Context, order orders.Order) (*orders.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := s.now()
	createdAt := now
	if !order.CreatedAt.IsZero() {
		createdAt = order.CreatedAt.UTC()
	}

	var record *OrderRecord
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		number, err := s.nextTicketNumber(ctx, tx, order.CompanyID, createdAt)
		if err != nil {
			return err
		}

		params := map[string]interface{}{
			"id":                        order.ID,
			"company_id":                order.CompanyID,
			"ticket_code":               order.TicketCode,
			"ticket_number":             number,
			"phone":                     order.Phone,
			"status":                    string(order.Status),
			"cancelled_by":              nil,
			"total":                     nil,
			"timer_accumulated_seconds": order.TimerAccumulatedSeconds,
			"timer_last_started_at":     utc(order.TimerLastStartedAt),
			"order_type":                string(order.OrderType),
			"delivery_address":          order.DeliveryAddress,
			"delivery_lat":              nil,
			"delivery_lng":              nil,
			"version":                   1,
			"created_at":                createdAt,
			"updated_at":                now,
		}
		if order.CancelledBy != nil {
			params["cancelled_by"] = string(*order.CancelledBy)
		}
		if order.Total != nil {
			params["total"] = *order.Total
		}
		if order.DeliveryCoords != nil {
			params["delivery_lat"] = order.DeliveryCoords.Lat
			params["delivery_lng"] = order.DeliveryCoords.Lng
		}

		q, args, err := s.stmpBuilder().
			Insert(ordersTable).
			SetMap(params).
			ToSql()
		if err != nil {
			return fmt.Errorf("build sql query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		if err := s.replaceItems(ctx, tx, order.ID, order.Items); err != nil {
			return err
		}

		record, err = s.getOrderRecord(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(TableOrders, EventInsert, record.CompanyID, nil, record)
	return record.ToModel()
}

// nextTicketNumber numbers orders per company per UTC day, starting at 1.
func (s *storageImpl) nextTicketNumber(ctx context.Context, tx *sqlx.Tx, companyID string, at time.Time) (int64, error) {
	dayStart := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)

	q, args, err := s.stmpBuilder().
		Select("COALESCE(MAX(ticket_number), 0) + 1").
		From(ordersTable).
		Where(sq.Eq{"company_id": companyID}).
		Where(sq.GtOrEq{"created_at": dayStart}).
		Where(sq.Lt{"created_at": dayStart.Add(24 * time.Hour)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sql query: %w", err)
	}

	var number int64
	if err := tx.GetContext(ctx, &number, q, args...); err != nil {
		return 0, fmt.Errorf("tx.GetContext: %w", err)
	}
	return number, nil
}

func (s *storageImpl) GetOrder(ctx context.Context, criteria orders.GetCriteria) (*orders.Order, error) {
	if criteria.ID == nil {
		return nil, fmt.Errorf("order id is required")
	}
	record, err := s.getOrderRecord(ctx, s.db, *criteria.ID)
	if err != nil || record == nil {
		return nil, err
	}
	return record.ToModel()
}

func (s *storageImpl) getOrderRecord(ctx context.Context, db sqlx.QueryerContext, id string) (*OrderRecord, error) {
	q, args, err := s.stmpBuilder().
		Select(orderRecordFields).
		From(ordersTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var record OrderRecord
	if err := sqlx.GetContext(ctx, db, &record, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db.GetContext: %w", err)
	}

	items, err := s.listItems(ctx, db, []string{id})
	if err != nil {
		return nil, err
	}
	record.Items = items[id]
	return &record, nil
}

func (s *storageImpl) listItems(ctx context.Context, db sqlx.QueryerContext, orderIDs []string) (map[string][]OrderItemRecord, error) {
	if len(orderIDs) == 0 {
		return map[string][]OrderItemRecord{}, nil
	}

	q, args, err := s.stmpBuilder().
		Select(orderItemRecordFields).
		From(orderItemsTable).
		Where(sq.Eq{"order_id": orderIDs}).
		OrderBy("order_id", "position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var items []OrderItemRecord
	if err := sqlx.SelectContext(ctx, db, &items, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}
	return lo.GroupBy(items, func(item OrderItemRecord) string { return item.OrderID }), nil
}

func (s *storageImpl) replaceItems(ctx context.Context, tx *sqlx.Tx, orderID string, items []orders.LineItem) error {
	q, args, err := s.stmpBuilder().
		Delete(orderItemsTable).
		Where(sq.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("tx.ExecContext: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	insert := s.stmpBuilder().
		Insert(orderItemsTable).
		Columns("order_id", "position", "product_id", "name", "quantity", "unit_price", "observation")
	for i, item := range items {
		insert = insert.Values(orderID, i, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.Observation)
	}

	q, args, err = insert.ToSql()
	if err != nil {
		return fmt.Errorf("build sql query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("tx.ExecContext: %w", err)
	}
	return nil
}

func (s *storageImpl) ListOrders(ctx context.Context, criteria orders.ListCriteria) ([]*orders.Order, error) {
	query := s.stmpBuilder().
		Select(orderRecordFields).
		From(ordersTable).
		OrderBy("created_at ASC", "id ASC")

	if len(criteria.CompanyIDs) > 0 {
		query = query.Where(sq.Eq{"company_id": criteria.CompanyIDs})
	}
	if len(criteria.Statuses) > 0 {
		query = query.Where(sq.Eq{"status": lo.Map(criteria.Statuses, func(st orders.Status, _ int) string { return string(st) })})
	}
	if criteria.Phone != nil {
		query = query.Where(sq.Eq{"phone": *criteria.Phone})
	}
	if criteria.TicketCode != nil {
		query = query.Where(sq.Eq{"ticket_code": *criteria.TicketCode})
	}
	if criteria.CreatedAfter != nil {
		query = query.Where(sq.GtOrEq{"created_at": criteria.CreatedAfter.UTC()})
	}
	if criteria.CreatedBefore != nil {
		query = query.Where(sq.Lt{"created_at": criteria.CreatedBefore.UTC()})
	}
	if criteria.Limit > 0 {
		query = query.Limit(uint64(criteria.Limit))
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var records []OrderRecord
	if err := s.db.SelectContext(ctx, &records, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}

	items, err := s.listItems(ctx, s.db, lo.Map(records, func(r OrderRecord, _ int) string { return r.ID }))
	if err != nil {
		return nil, err
	}

	result := make([]*orders.Order, 0, len(records))
	for _, r := range records {
		r.Items = items[r.ID]
		o, err := r.ToModel()
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, nil
}

// UpdateOrder is a compare-and-swap on version: the write lands only if nobody else
// changed the row since it was read.
func (s *storageImpl) UpdateOrder(ctx context.Context, id string, expectedVersion int64, patch orders.Patch) (*orders.Order, error) {
	var old, record *OrderRecord
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		var err error
		old, err = s.getOrderRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if old == nil {
			return orders.ErrOrderNotFound
		}
		if old.Version != expectedVersion {
			return orders.ErrVersionConflict
		}

		query := s.stmpBuilder().
			Update(ordersTable).
			Set("version", expectedVersion+1).
			Set("updated_at", s.now()).
			Where(sq.Eq{"id": id, "version": expectedVersion})

		if patch.Status != nil {
			query = query.Set("status", string(*patch.Status))
		}
		if patch.CancelledBy != nil {
			query = query.Set("cancelled_by", string(*patch.CancelledBy))
		}
		if patch.Total != nil {
			query = query.Set("total", *patch.Total)
		}
		if patch.Timer != nil {
			query = query.
				Set("timer_accumulated_seconds", patch.Timer.AccumulatedSeconds).
				Set("timer_last_started_at", utc(patch.Timer.LastStartedAt))
		}

		q, args, err := query.ToSql()
		if err != nil {
			return fmt.Errorf("build sql query: %w", err)
		}

		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("result.RowsAffected: %w", err)
		}
		if affected == 0 {
			return orders.ErrVersionConflict
		}

		if patch.Items != nil {
			if err := s.replaceItems(ctx, tx, id, patch.Items); err != nil {
				return err
			}
		}

		record, err = s.getOrderRecord(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(TableOrders, EventUpdate, record.CompanyID, old, record)
	return record.ToModel()
}

func (s *storageImpl) DeleteOrder(ctx context.Context, id string) error {
	var old *OrderRecord
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		var err error
		old, err = s.getOrderRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if old == nil {
			return orders.ErrOrderNotFound
		}

		for _, table := range []string{orderItemsTable, ordersTable} {
			column := "id"
			if table == orderItemsTable {
				column = "order_id"
			}
			q, args, err := s.stmpBuilder().
				Delete(table).
				Where(sq.Eq{column: id}).
				ToSql()
			if err != nil {
				return fmt.Errorf("build sql query: %w", err)
			}
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("tx.ExecContext: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(TableOrders, EventDelete, old.CompanyID, old, nil)
	return nil
}

// DecodeOrder turns a change event payload back into a validated order.
func DecodeOrder(raw []byte) (*orders.Order, error) {
	var record OrderRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode order record: %w", err)
	}
	return record.ToModel()
}
