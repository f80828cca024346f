package companies

import (
	"time"

	"queue-bot/internal/stories/presence"
)

type Company struct {
	ID                string
	Name              string
	IsActive          bool
	IsAcceptingOrders bool
	MarketingEnabled  bool
	Location          *presence.Coords
	AvgPrepMinutes    int
	Language          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AcceptsOrders reports whether customers may join the queue right now.
func (c *Company) AcceptsOrders() bool {
	return c.IsActive && c.IsAcceptingOrders
}

// Критерии для получения компании
type GetCriteria struct {
	ID *string
}

// Критерии для списка компаний
type ListCriteria struct {
	IsActive *bool
	Limit    int
	Offset   int
}

// Параметры для обновления компании
type UpdateParams struct {
	Name              *string
	IsActive          *bool
	IsAcceptingOrders *bool
	MarketingEnabled  *bool
	Location          *presence.Coords
	AvgPrepMinutes    *int
	Language          *string
}
