package storage

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"queue-bot/internal/infra/sqlite3"
)

type storageImpl struct {
	db   *sqlx.DB
	tx   sqlite3.TxManager
	feed *Feed
	now  func() time.Time
}

// New wires storage to db. Committed writes are published to feed.
func New(db *sqlx.DB, feed *Feed) *storageImpl {
	return &storageImpl{
		db:   db,
		tx:   sqlite3.WithTx(db, nil),
		feed: feed,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *storageImpl) stmpBuilder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Subscribe opens a change subscription on the storage feed.
func (s *storageImpl) Subscribe(ctx context.Context, filter Filter) (*Subscription, error) {
	return s.feed.Subscribe(ctx, filter)
}

func (s *storageImpl) publish(table Table, eventType EventType, companyID string, old, new any) {
	if s.feed == nil {
		return
	}
	ev := ChangeEvent{
		Table:     table,
		Type:      eventType,
		CompanyID: companyID,
		At:        s.now(),
	}
	if old != nil {
		ev.Old = mustJSON(old)
	}
	if new != nil {
		ev.New = mustJSON(new)
	}
	s.feed.Publish(ev)
}

// Records are plain structs; marshalling cannot fail.
func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// Fields возвращает список всех полей структуры, которые есть в БД.
func fields(data any) string {
	r := reflect.TypeOf(data)
	tags := make([]string, 0, r.NumField())
	for i := 0; i < r.NumField(); i++ {
		tag := r.Field(i).Tag.Get("db")
		if tag != "" && tag != "-" {
			tags = append(tags, tag)
		}
	}
	return strings.Join(tags, ",")
}

// utc normalises times before they hit the database so text comparison orders them.
func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return lo.ToPtr(t.UTC())
}
