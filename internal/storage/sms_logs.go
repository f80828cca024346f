package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"queue-bot/internal/stories/notify"
)

const smsLogsTable = "sms_logs"

var smsLogRowFields = fields(smsLogRow{})

type smsLogRow struct {
	ID        string          `db:"id"`
	CompanyID string          `db:"company_id"`
	OrderID   *string         `db:"order_id"`
	Recipient string          `db:"recipient"`
	Channel   string          `db:"channel"`
	Message   string          `db:"message"`
	Cost      decimal.Decimal `db:"cost"`
	CreatedAt time.Time       `db:"created_at"`
}

func (r smsLogRow) ToModel() *notify.SMSLog {
	return &notify.SMSLog{
		ID:        r.ID,
		CompanyID: r.CompanyID,
		OrderID:   r.OrderID,
		Recipient: r.Recipient,
		Channel:   notify.Channel(r.Channel),
		Message:   r.Message,
		Cost:      r.Cost,
		CreatedAt: r.CreatedAt,
	}
}

func (s *storageImpl) AppendSMSLog(ctx context.Context, entry notify.SMSLog) (*notify.SMSLog, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	q, args, err := s.stmpBuilder().
		Insert(smsLogsTable).
		SetMap(map[string]interface{}{
			"id":         entry.ID,
			"company_id": entry.CompanyID,
			"order_id":   entry.OrderID,
			"recipient":  entry.Recipient,
			"channel":    string(entry.Channel),
			"message":    entry.Message,
			"cost":       entry.Cost,
			"created_at": entry.CreatedAt,
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("db.ExecContext: %w", err)
	}
	return &entry, nil
}

func (s *storageImpl) ListSMSLogs(ctx context.Context, criteria notify.ListLogsCriteria) ([]*notify.SMSLog, error) {
	query := s.stmpBuilder().
		Select(smsLogRowFields).
		From(smsLogsTable).
		OrderBy("created_at DESC")

	if criteria.CompanyID != nil {
		query = query.Where(sq.Eq{"company_id": *criteria.CompanyID})
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
	if criteria.Offset > 0 {
		query = query.Offset(uint64(criteria.Offset))
	}

	q, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sql query: %w", err)
	}

	var rows []smsLogRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext: %w", err)
	}

	result := make([]*notify.SMSLog, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.ToModel())
	}
	return result, nil
}

// DeleteSMSLogsBefore removes entries older than before and returns how many went.
func (s *storageImpl) DeleteSMSLogsBefore(ctx context.Context, before time.Time) (int64, error) {
	q, args, err := s.stmpBuilder().
		Delete(smsLogsTable).
		Where(sq.Lt{"created_at": before.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sql query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("db.ExecContext: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("result.RowsAffected: %w", err)
	}
	return n, nil
}
