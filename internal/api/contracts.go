package api

import (
	"context"
	"time"

	"queue-bot/internal/realtime"
	"queue-bot/internal/stories/companies"
	"queue-bot/internal/stories/notify"
	"queue-bot/internal/stories/orders"
	"queue-bot/internal/stories/products"
)

type (
	OrderService interface {
		JoinQueue(ctx context.Context, req orders.JoinRequest) (*orders.JoinResult, error)
		UpdateCart(ctx context.Context, orderID string, cart []orders.CartItem) (*orders.Order, error)
		ConfirmCart(ctx context.Context, orderID string, cart []orders.CartItem) (*orders.Order, error)
		Advance(ctx context.Context, orderID string, target orders.Status, actor orders.Actor) (*orders.Order, error)
		Cancel(ctx context.Context, orderID string, actor orders.Actor) (*orders.Order, error)
		PauseTimer(ctx context.Context, orderID string) (*orders.Order, error)
		GetOrderView(ctx context.Context, orderID string) (*orders.View, error)
		ListQueue(ctx context.Context, companyID string) ([]*orders.Order, error)
	}

	CompanyService interface {
		GetCompany(ctx context.Context, id string) (*companies.Company, error)
		ListActiveCompanies(ctx context.Context) ([]*companies.Company, error)
		SetAcceptingOrders(ctx context.Context, id string, accepting bool) (*companies.Company, error)
	}

	ProductService interface {
		Menu(ctx context.Context, companyID string) ([]*products.Product, error)
		SetStatus(ctx context.Context, id string, status products.Status) (*products.Product, error)
	}

	SMSLogService interface {
		ListLogs(ctx context.Context, companyID string, limit, offset int) ([]*notify.SMSLog, error)
	}

	// QueueView is a live, feed-backed copy of one company's queue.
	QueueView interface {
		Seed(company *companies.Company, snapshot []*orders.Order)
		Resync(snapshot []*orders.Order, listedAt time.Time)
		Start(ctx context.Context, companyID string) error
		Close()
		ActiveOrders() []*orders.Order
		Order(orderID string) (*orders.Order, bool)
	}

	// ViewFactory builds a QueueView that reports status changes to echo.
	ViewFactory func(echo realtime.Echo) QueueView
)
