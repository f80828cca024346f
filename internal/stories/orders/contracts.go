package orders

import (
	"context"
	"time"

	"queue-bot/internal/stories/companies"
	"queue-bot/internal/stories/presence"
	"queue-bot/internal/stories/products"
)

type (
	// Storage provides database operations for orders
	Storage interface {
		CreateOrder(ctx context.Context, order Order) (*Order, error)
		GetOrder(ctx context.Context, criteria GetCriteria) (*Order, error)
		ListOrders(ctx context.Context, criteria ListCriteria) ([]*Order, error)
		// UpdateOrder applies patch only if the stored version still equals expectedVersion.
		UpdateOrder(ctx context.Context, id string, expectedVersion int64, patch Patch) (*Order, error)
		DeleteOrder(ctx context.Context, id string) error
	}

	CompanyService interface {
		GetCompany(ctx context.Context, id string) (*companies.Company, error)
	}

	ProductService interface {
		GetProducts(ctx context.Context, ids []string) (map[string]*products.Product, error)
	}

	PresenceService interface {
		Verify(ctx context.Context, locator presence.Geolocator, target *presence.Coords) (*presence.Coords, error)
		ResolveCode(ctx context.Context, scanner presence.Scanner) (string, error)
	}

	TicketAllocatorService interface {
		Allocate(ctx context.Context, companyID string, now time.Time) (string, error)
	}

	// Dispatcher delivers side effects; it must never fail the caller.
	Dispatcher interface {
		Dispatch(ctx context.Context, order *Order, company *companies.Company, effects []SideEffect)
	}

	Metrics interface {
		ObserveTransition(status string)
		ObservePreparation(seconds int64)
	}
)
