package orders

import (
	"fmt"
	"time"

	"queue-bot/internal/stories/presence"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusReceived  Status = "RECEIVED"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// ActiveStatuses are the statuses counted in queue position math.
var ActiveStatuses = []Status{StatusReceived, StatusPreparing, StatusReady}

// ParseStatus converts an untrusted string into a Status.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusPending, StatusReceived, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
}

func (s Status) IsActive() bool {
	return s == StatusReceived || s == StatusPreparing || s == StatusReady
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorAdmin    Actor = "admin"
)

func ParseActor(raw string) (Actor, error) {
	switch a := Actor(raw); a {
	case ActorCustomer, ActorAdmin:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownActor, raw)
	}
}

type OrderType string

const (
	OrderTypeEatIn    OrderType = "EAT_IN"
	OrderTypeTakeAway OrderType = "TAKE_AWAY"
	OrderTypeDelivery OrderType = "DELIVERY"
)

func ParseOrderType(raw string) (OrderType, error) {
	switch t := OrderType(raw); t {
	case OrderTypeEatIn, OrderTypeTakeAway, OrderTypeDelivery:
		return t, nil
	case "":
		return OrderTypeEatIn, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownOrderType, raw)
	}
}

// LineItem is a product snapshot taken when the cart is priced.
type LineItem struct {
	ProductID   string
	Name        string
	Quantity    int
	UnitPrice   decimal.Decimal
	Observation *string
}

func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID           string
	CompanyID    string
	TicketCode   string
	TicketNumber *int64
	Phone        string
	Status       Status
	CancelledBy  *Actor
	Items        []LineItem
	Total        *decimal.Decimal

	// Derived on read, never authoritative.
	QueuePosition    *int
	EstimatedMinutes *int

	TimerAccumulatedSeconds int64
	TimerLastStartedAt      *time.Time

	OrderType       OrderType
	DeliveryAddress *string
	DeliveryCoords  *presence.Coords

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Timer returns the stopwatch fields of the order.
func (o *Order) Timer() TimerState {
	return TimerState{
		AccumulatedSeconds: o.TimerAccumulatedSeconds,
		LastStartedAt:      o.TimerLastStartedAt,
	}
}

// Clone returns a deep copy so patches never alias the caller's order.
func (o *Order) Clone() *Order {
	c := *o
	if o.Items != nil {
		c.Items = make([]LineItem, len(o.Items))
		copy(c.Items, o.Items)
	}
	if o.TimerLastStartedAt != nil {
		t := *o.TimerLastStartedAt
		c.TimerLastStartedAt = &t
	}
	if o.Total != nil {
		t := *o.Total
		c.Total = &t
	}
	if o.CancelledBy != nil {
		a := *o.CancelledBy
		c.CancelledBy = &a
	}
	return &c
}

// CartItem is what a customer asks for; prices come from the menu.
type CartItem struct {
	ProductID   string
	Quantity    int
	Observation *string
}

// Критерии для получения заказа
type GetCriteria struct {
	ID *string
}

// Критерии для списка заказов
type ListCriteria struct {
	CompanyIDs    []string
	Statuses      []Status
	Phone         *string
	TicketCode    *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
}

type EffectKind string

const EffectNotify EffectKind = "notify"

type Channel string

const ChannelSMS Channel = "sms"

// SideEffect is a non-persisted instruction emitted by a successful transition.
type SideEffect struct {
	Kind        EffectKind
	Channel     Channel
	TemplateKey Status
	OrderType   OrderType
	CancelledBy *Actor
}

// JoinRequest describes a customer joining a company queue.
type JoinRequest struct {
	CompanyID       string
	Scanner         presence.Scanner
	Locator         presence.Geolocator
	Phone           string
	OrderType       OrderType
	DeliveryAddress *string
	DeliveryCoords  *presence.Coords
	Items           []CartItem
}

type JoinResult struct {
	Order *Order
	// Existing is set when the customer already had an open order and was redirected to it.
	Existing bool
}

// View is an order enriched with the values computed on read.
type View struct {
	Order          *Order
	Position       *int
	EstimatedMins  *int
	ElapsedSeconds int64
}
