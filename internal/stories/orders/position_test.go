package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePosition(t *testing.T) {
	a := &Order{ID: "a", CompanyID: "c1", Status: StatusReceived, CreatedAt: at(0)}
	b := &Order{ID: "b", CompanyID: "c1", Status: StatusPreparing, CreatedAt: at(60)}
	c := &Order{ID: "c", CompanyID: "c1", Status: StatusReceived, CreatedAt: at(120)}
	otherCompany := &Order{ID: "x", CompanyID: "c2", Status: StatusReceived, CreatedAt: at(-60)}
	delivered := &Order{ID: "d", CompanyID: "c1", Status: StatusDelivered, CreatedAt: at(-30)}
	pending := &Order{ID: "p", CompanyID: "c1", Status: StatusPending, CreatedAt: at(-10)}
	all := []*Order{a, b, c, otherCompany, delivered, pending}

	tests := []struct {
		name  string
		order *Order
		want  *int
	}{
		{name: "first", order: a, want: ptr(1)},
		{name: "second among three", order: b, want: ptr(2)},
		{name: "third", order: c, want: ptr(3)},
		{name: "delivered has no position", order: delivered, want: nil},
		{name: "pending has no position", order: pending, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputePosition(tt.order, all))
		})
	}
}

func TestComputePositionTiesAreNotAhead(t *testing.T) {
	a := &Order{ID: "a", CompanyID: "c1", Status: StatusReceived, CreatedAt: at(0)}
	b := &Order{ID: "b", CompanyID: "c1", Status: StatusReceived, CreatedAt: at(0)}

	assert.Equal(t, 1, *ComputePosition(a, []*Order{a, b}))
	assert.Equal(t, 1, *ComputePosition(b, []*Order{a, b}))
}

func TestActiveQueue(t *testing.T) {
	orders := []*Order{
		{ID: "c", CompanyID: "c1", Status: StatusReady, CreatedAt: at(120)},
		{ID: "a", CompanyID: "c1", Status: StatusReceived, CreatedAt: at(0)},
		{ID: "z", CompanyID: "c1", Status: StatusCancelled, CreatedAt: at(30)},
		{ID: "b", CompanyID: "c1", Status: StatusPreparing, CreatedAt: at(60)},
	}

	queue := ActiveQueue("c1", orders, 5)
	require.Len(t, queue, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, queue[i].ID)
		assert.Equal(t, i+1, *queue[i].QueuePosition)
		assert.Equal(t, (i+1)*5, *queue[i].EstimatedMinutes)
	}
	assert.Nil(t, orders[1].QueuePosition)
}

func TestEstimateMinutes(t *testing.T) {
	assert.Nil(t, EstimateMinutes(nil, 5))
	assert.Nil(t, EstimateMinutes(ptr(2), 0))
	assert.Equal(t, 10, *EstimateMinutes(ptr(2), 5))
}

func ptr(v int) *int {
	return &v
}

