package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queue-bot/internal/infra/sqlite3"
	"queue-bot/internal/stories/companies"
	"queue-bot/internal/stories/notify"
	"queue-bot/internal/stories/orders"
	"queue-bot/internal/stories/products"
)

func newTestStorage(t *testing.T) (*storageImpl, *Feed) {
	t.Helper()

	db, err := sqlite3.New(context.Background(), sqlite3.WithDSN(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	feed := NewFeed(16, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return New(db.DB, feed), feed
}

func createCompany(t *testing.T, s *storageImpl) *companies.Company {
	t.Helper()

	company, err := s.CreateCompany(context.Background(), companies.Company{
		Name:              "Kurut Cafe",
		IsActive:          true,
		IsAcceptingOrders: true,
		AvgPrepMinutes:    7,
		Language:          "ru",
	})
	require.NoError(t, err)
	return company
}

func TestCompanyCRUD(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	company := createCompany(t, s)
	assert.NotEmpty(t, company.ID)
	assert.Nil(t, company.Location)

	got, err := s.GetCompany(ctx, companies.GetCriteria{ID: &company.ID})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Kurut Cafe", got.Name)
	assert.True(t, got.IsAcceptingOrders)

	updated, err := s.UpdateCompany(ctx, companies.GetCriteria{ID: &company.ID}, companies.UpdateParams{
		IsAcceptingOrders: lo.ToPtr(false),
		AvgPrepMinutes:    lo.ToPtr(12),
	})
	require.NoError(t, err)
	assert.False(t, updated.IsAcceptingOrders)
	assert.Equal(t, 12, updated.AvgPrepMinutes)

	missing, err := s.GetCompany(ctx, companies.GetCriteria{ID: lo.ToPtr("nope")})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProductsListByIDs(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	company := createCompany(t, s)

	plov, err := s.CreateProduct(ctx, products.Product{
		CompanyID: company.ID,
		Name:      "Plov",
		Price:     decimal.RequireFromString("450.50"),
		Status:    products.StatusActive,
	})
	require.NoError(t, err)
	_, err = s.CreateProduct(ctx, products.Product{
		CompanyID: company.ID,
		Name:      "Lagman",
		Price:     decimal.NewFromInt(500),
		Status:    products.StatusOutOfStock,
	})
	require.NoError(t, err)

	list, err := s.ListProducts(ctx, products.ListCriteria{IDs: []string{plov.ID}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, decimal.RequireFromString("450.5").Equal(list[0].Price))

	available, err := s.ListProducts(ctx, products.ListCriteria{
		CompanyIDs: []string{company.ID},
		Statuses:   []products.Status{products.StatusActive, products.StatusLowStock},
	})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Plov", available[0].Name)
}

func TestCreateOrderNumbersTicketsPerDay(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	company := createCompany(t, s)
	day := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first, err := s.CreateOrder(ctx, orders.Order{
		CompanyID:  company.ID,
		TicketCode: "1234",
		Phone:      "+996555000111",
		Status:     orders.StatusPending,
		OrderType:  orders.OrderTypeEatIn,
		CreatedAt:  day,
	})
	require.NoError(t, err)
	second, err := s.CreateOrder(ctx, orders.Order{
		CompanyID:  company.ID,
		TicketCode: "5678",
		Phone:      "+996555000222",
		Status:     orders.StatusPending,
		OrderType:  orders.OrderTypeTakeAway,
		CreatedAt:  day.Add(time.Minute),
	})
	require.NoError(t, err)
	nextDay, err := s.CreateOrder(ctx, orders.Order{
		CompanyID:  company.ID,
		TicketCode: "9012",
		Phone:      "+996555000333",
		Status:     orders.StatusPending,
		OrderType:  orders.OrderTypeEatIn,
		CreatedAt:  day.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), *first.TicketNumber)
	assert.Equal(t, int64(2), *second.TicketNumber)
	assert.Equal(t, int64(1), *nextDay.TicketNumber)
	assert.Equal(t, int64(1), first.Version)
	assert.True(t, first.CreatedAt.Equal(day))
}

func TestUpdateOrderAppliesPatchAndChecksVersion(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	company := createCompany(t, s)

	order, err := s.CreateOrder(ctx, orders.Order{
		CompanyID:  company.ID,
		TicketCode: "1234",
		Phone:      "+996555000111",
		Status:     orders.StatusPending,
		OrderType:  orders.OrderTypeEatIn,
	})
	require.NoError(t, err)

	items := []orders.LineItem{
		{ProductID: "p1", Name: "Plov", Quantity: 2, UnitPrice: decimal.NewFromInt(500)},
		{ProductID: "p2", Name: "Tea", Quantity: 1, UnitPrice: decimal.NewFromInt(1000), Observation: lo.ToPtr("no sugar")},
	}
	patch, err := orders.ConfirmCart(order, items)
	require.NoError(t, err)

	updated, err := s.UpdateOrder(ctx, order.ID, order.Version, patch)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusReceived, updated.Status)
	assert.Equal(t, int64(2), updated.Version)
	require.NotNil(t, updated.Total)
	assert.True(t, decimal.NewFromInt(2000).Equal(*updated.Total))
	require.Len(t, updated.Items, 2)
	assert.Equal(t, "Plov", updated.Items[0].Name)
	assert.Equal(t, "no sugar", *updated.Items[1].Observation)

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	_, err = s.UpdateOrder(ctx, order.ID, order.Version, orders.Patch{
		Timer: &orders.TimerState{LastStartedAt: &started},
	})
	assert.ErrorIs(t, err, orders.ErrVersionConflict)

	_, err = s.UpdateOrder(ctx, "missing", 1, orders.Patch{})
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestListOrdersFilters(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	company := createCompany(t, s)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, status := range []orders.Status{orders.StatusReceived, orders.StatusPreparing, orders.StatusDelivered} {
		_, err := s.CreateOrder(ctx, orders.Order{
			CompanyID:  company.ID,
			TicketCode: "1000",
			Phone:      "+99655500011" + string(rune('0'+i)),
			Status:     status,
			OrderType:  orders.OrderTypeEatIn,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	active, err := s.ListOrders(ctx, orders.ListCriteria{
		CompanyIDs: []string{company.ID},
		Statuses:   orders.ActiveStatuses,
	})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, orders.StatusReceived, active[0].Status)

	before := base.Add(time.Minute)
	earlier, err := s.ListOrders(ctx, orders.ListCriteria{CreatedBefore: &before})
	require.NoError(t, err)
	assert.Len(t, earlier, 1)
}

func TestDeleteOrder(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	company := createCompany(t, s)

	order, err := s.CreateOrder(ctx, orders.Order{
		CompanyID:  company.ID,
		TicketCode: "1234",
		Phone:      "+996555000111",
		Status:     orders.StatusPending,
		OrderType:  orders.OrderTypeEatIn,
		Items:      []orders.LineItem{{ProductID: "p1", Name: "Plov", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteOrder(ctx, order.ID))

	got, err := s.GetOrder(ctx, orders.GetCriteria{ID: &order.ID})
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, s.DeleteOrder(ctx, order.ID), orders.ErrOrderNotFound)
}

func TestSubscribeReceivesOrderChanges(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	company := createCompany(t, s)
	other := createCompany(t, s)

	sub, err := s.Subscribe(ctx, Filter{Table: TableOrders, CompanyID: company.ID})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	_, err = s.CreateOrder(ctx, orders.Order{
		CompanyID:  other.ID,
		TicketCode: "1111",
		Phone:      "+996555000999",
		Status:     orders.StatusPending,
		OrderType:  orders.OrderTypeEatIn,
	})
	require.NoError(t, err)

	order, err := s.CreateOrder(ctx, orders.Order{
		CompanyID:  company.ID,
		TicketCode: "2222",
		Phone:      "+996555000111",
		Status:     orders.StatusReceived,
		OrderType:  orders.OrderTypeEatIn,
	})
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, EventInsert, ev.Type)
		assert.Empty(t, ev.Old)
		decoded, err := DecodeOrder(ev.New)
		require.NoError(t, err)
		assert.Equal(t, order.ID, decoded.ID)
		assert.Equal(t, orders.StatusReceived, decoded.Status)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	now := time.Now()
	_, err = s.UpdateOrder(ctx, order.ID, order.Version, orders.Patch{
		Status: lo.ToPtr(orders.StatusPreparing),
		Timer:  &orders.TimerState{LastStartedAt: &now},
	})
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, EventUpdate, ev.Type)
		prev, err := DecodeOrder(ev.Old)
		require.NoError(t, err)
		next, err := DecodeOrder(ev.New)
		require.NoError(t, err)
		assert.Equal(t, orders.StatusReceived, prev.Status)
		assert.Equal(t, orders.StatusPreparing, next.Status)
		assert.NotNil(t, next.TimerLastStartedAt)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestSMSLogRetention(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{old, old.Add(48 * time.Hour)} {
		_, err := s.AppendSMSLog(ctx, notify.SMSLog{
			CompanyID: "c1",
			Recipient: "+996555000111",
			Channel:   notify.ChannelSMS,
			Message:   "ready",
			Cost:      decimal.RequireFromString("1.25"),
			CreatedAt: at,
		})
		require.NoError(t, err)
	}

	deleted, err := s.DeleteSMSLogsBefore(ctx, old.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	logs, err := s.ListSMSLogs(ctx, notify.ListLogsCriteria{CompanyID: lo.ToPtr("c1")})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, decimal.RequireFromString("1.25").Equal(logs[0].Cost))
}
