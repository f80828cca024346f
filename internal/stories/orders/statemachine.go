package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// allowedTransitions lists, for each status, the targets Transition accepts.
// RECEIVED is entered only through ConfirmCart. READY is reachable from RECEIVED so a
// kitchen may skip PREPARING; the timer then charges createdAt..now.
var allowedTransitions = map[Status][]Status{
	StatusPending:   {StatusCancelled},
	StatusReceived:  {StatusPreparing, StatusReady, StatusCancelled},
	StatusPreparing: {StatusPreparing, StatusReady, StatusCancelled},
	StatusReady:     {StatusReady, StatusDelivered},
}

// CanTransition checks if a transition of order is valid.
func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Patch is the set of persisted fields a command changes. Timer is always present
// on a successful transition. Nil fields are left untouched.
type Patch struct {
	Status      *Status
	CancelledBy *Actor
	Items       []LineItem
	Total       *decimal.Decimal
	Timer       *TimerState

	// Noop marks an idempotent re-entry: nothing needs to be written.
	Noop bool
}

// Apply returns a copy of o with the patch applied.
func (p Patch) Apply(o *Order) *Order {
	c := o.Clone()
	if p.Noop {
		return c
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.CancelledBy != nil {
		a := *p.CancelledBy
		c.CancelledBy = &a
	}
	if p.Items != nil {
		c.Items = make([]LineItem, len(p.Items))
		copy(c.Items, p.Items)
	}
	if p.Total != nil {
		t := *p.Total
		c.Total = &t
	}
	if p.Timer != nil {
		c.TimerAccumulatedSeconds = p.Timer.AccumulatedSeconds
		c.TimerLastStartedAt = nil
		if p.Timer.LastStartedAt != nil {
			t := *p.Timer.LastStartedAt
			c.TimerLastStartedAt = &t
		}
	}
	return c
}

// Transition validates target against the current status and derives the patch and
// side effects. The order itself is never modified.
func Transition(o *Order, target Status, actor Actor, now time.Time) (Patch, []SideEffect, error) {
	if !CanTransition(o.Status, target) {
		return Patch{}, nil, &TransitionError{From: o.Status, To: target}
	}
	if _, err := ParseActor(string(actor)); err != nil {
		return Patch{}, nil, err
	}

	current := o.Timer()
	patch := Patch{Status: &target}

	switch target {
	case StatusPreparing:
		if o.Status == StatusPreparing {
			if current.LastStartedAt != nil {
				patch.Noop = true
				patch.Timer = &current
				return patch, nil, nil
			}
			// Resume of a paused stopwatch: no new notification.
			timer := OnEnterPreparing(current, now)
			patch.Timer = &timer
			return patch, nil, nil
		}
		timer := OnEnterPreparing(current, now)
		patch.Timer = &timer

	case StatusReady, StatusDelivered:
		if o.Status == target {
			patch.Noop = true
			patch.Timer = &current
			return patch, nil, nil
		}
		// Only RECEIVED reaches READY without a stopwatch having run.
		timer := OnEnterReadyOrDelivered(current, o.CreatedAt, now, o.Status == StatusReceived)
		patch.Timer = &timer

	case StatusCancelled:
		timer := OnEnterCancelled(current)
		patch.Timer = &timer
		by := actor
		patch.CancelledBy = &by
		// A customer who cancels does not need to be told about it.
		if actor == ActorCustomer {
			return patch, nil, nil
		}
		return patch, []SideEffect{notifyEffect(o, target, &by)}, nil
	}

	return patch, []SideEffect{notifyEffect(o, target, nil)}, nil
}

// PauseTimer stops the stopwatch of an order being prepared without changing its status.
func PauseTimer(o *Order, now time.Time) (Patch, error) {
	if o.Status != StatusPreparing {
		return Patch{}, &TransitionError{From: o.Status, To: StatusPreparing}
	}
	current := o.Timer()
	if current.LastStartedAt == nil {
		return Patch{Noop: true, Timer: &current}, nil
	}
	timer := Pause(current, now)
	return Patch{Timer: &timer}, nil
}

// ConfirmCart freezes the cart: items carry snapshot prices and the total is computed
// once here, never again.
func ConfirmCart(o *Order, items []LineItem) (Patch, error) {
	if o.Status != StatusPending {
		return Patch{}, &TransitionError{From: o.Status, To: StatusReceived}
	}
	if len(items) == 0 {
		return Patch{}, ErrCartEmpty
	}

	total := decimal.Zero
	for _, item := range items {
		if item.Quantity < 1 {
			return Patch{}, ErrInvalidQuantity
		}
		if item.UnitPrice.IsNegative() {
			return Patch{}, ErrInvalidPrice
		}
		total = total.Add(item.Subtotal())
	}

	status := StatusReceived
	timer := o.Timer()
	frozen := make([]LineItem, len(items))
	copy(frozen, items)

	return Patch{
		Status: &status,
		Items:  frozen,
		Total:  &total,
		Timer:  &timer,
	}, nil
}

func notifyEffect(o *Order, target Status, by *Actor) SideEffect {
	return SideEffect{
		Kind:        EffectNotify,
		Channel:     ChannelSMS,
		TemplateKey: target,
		OrderType:   o.OrderType,
		CancelledBy: by,
	}
}
