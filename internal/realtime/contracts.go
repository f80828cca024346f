package realtime

import (
	"context"

	"queue-bot/internal/storage"
	"queue-bot/internal/stories/orders"
)

type (
	Subscriber interface {
		Subscribe(ctx context.Context, filter storage.Filter) (*storage.Subscription, error)
	}

	// Echo is told about every status an order reaches, once per (order, status).
	Echo interface {
		OrderStatusChanged(order *orders.Order)
	}

	Metrics interface {
		ObserveChangeEvent(table, eventType string)
	}
)
