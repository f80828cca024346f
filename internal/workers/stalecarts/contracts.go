package stalecarts

import (
	"context"
	"time"
)

type (
	OrderService interface {
		DeleteStaleCarts(ctx context.Context, ttl time.Duration) (int, error)
	}

	Metrics interface {
		ObserveStaleCartsDeleted(n int)
	}
)
