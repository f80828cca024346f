package orders

import (
	"sort"

	"github.com/samber/lo"
)

// ComputePosition returns 1 + the number of active orders of the same company created
// strictly earlier. Orders that are not active have no position.
func ComputePosition(o *Order, siblings []*Order) *int {
	if !o.Status.IsActive() {
		return nil
	}

	ahead := lo.CountBy(siblings, func(s *Order) bool {
		return s.CompanyID == o.CompanyID &&
			s.Status.IsActive() &&
			s.CreatedAt.Before(o.CreatedAt)
	})

	position := ahead + 1
	return &position
}

// EstimateMinutes is informational only.
func EstimateMinutes(position *int, avgPrepMinutes int) *int {
	if position == nil || avgPrepMinutes <= 0 {
		return nil
	}
	minutes := *position * avgPrepMinutes
	return &minutes
}

// ActiveQueue returns the active orders of a company in FIFO order with their
// positions filled in.
func ActiveQueue(companyID string, all []*Order, avgPrepMinutes int) []*Order {
	active := lo.Filter(all, func(o *Order, _ int) bool {
		return o.CompanyID == companyID && o.Status.IsActive()
	})
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	result := make([]*Order, 0, len(active))
	for _, o := range active {
		c := o.Clone()
		c.QueuePosition = ComputePosition(o, active)
		c.EstimatedMinutes = EstimateMinutes(c.QueuePosition, avgPrepMinutes)
		result = append(result, c)
	}
	return result
}
