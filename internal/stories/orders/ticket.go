package orders

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/samber/lo"
)

const (
	ticketMin = 1000
	ticketMax = 9999

	defaultTicketAttempts = 5
)

type ticketStorage interface {
	ListOrders(ctx context.Context, criteria ListCriteria) ([]*Order, error)
}

// TicketAllocator hands out four-digit customer-facing codes. Codes are not unique:
// the order id is the identity, the code is only for display. With collision checks
// enabled it re-draws while the code is already used by the company that day.
type TicketAllocator struct {
	storage         ticketStorage
	intN            func(n int) int
	checkCollisions bool
	maxAttempts     int
	logger          *slog.Logger
}

type TicketOption func(*TicketAllocator)

func WithCollisionCheck(maxAttempts int) TicketOption {
	return func(a *TicketAllocator) {
		a.checkCollisions = true
		if maxAttempts > 0 {
			a.maxAttempts = maxAttempts
		}
	}
}

// WithRandom replaces the random source; intN must return a value in [0, n).
func WithRandom(intN func(n int) int) TicketOption {
	return func(a *TicketAllocator) {
		a.intN = intN
	}
}

func NewTicketAllocator(storage ticketStorage, logger *slog.Logger, opts ...TicketOption) *TicketAllocator {
	a := &TicketAllocator{
		storage:     storage,
		intN:        rand.Intn,
		maxAttempts: defaultTicketAttempts,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *TicketAllocator) draw() string {
	return strconv.Itoa(ticketMin + a.intN(ticketMax-ticketMin+1))
}

// Allocate returns a code in [1000, 9999].
func (a *TicketAllocator) Allocate(ctx context.Context, companyID string, now time.Time) (string, error) {
	if !a.checkCollisions {
		return a.draw(), nil
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	today, err := a.storage.ListOrders(ctx, ListCriteria{
		CompanyIDs:    []string{companyID},
		CreatedAfter:  &dayStart,
		CreatedBefore: &dayEnd,
	})
	if err != nil {
		return "", fmt.Errorf("list today's orders: %w", err)
	}
	used := lo.SliceToMap(today, func(o *Order) (string, struct{}) { return o.TicketCode, struct{}{} })

	code := a.draw()
	for attempt := 1; attempt < a.maxAttempts; attempt++ {
		if _, taken := used[code]; !taken {
			return code, nil
		}
		code = a.draw()
	}

	if _, taken := used[code]; taken {
		a.logger.Warn("Ticket code collision accepted",
			"company_id", companyID,
			"ticket_code", code,
			"attempts", a.maxAttempts)
	}
	return code, nil
}
