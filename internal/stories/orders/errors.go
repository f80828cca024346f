package orders

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnknownStatus      = errors.New("unknown order status")
	ErrUnknownActor       = errors.New("unknown actor")
	ErrUnknownOrderType   = errors.New("unknown order type")
	ErrOrderNotFound      = errors.New("order not found")
	ErrCartEmpty          = errors.New("cart is empty")
	ErrInvalidQuantity    = errors.New("item quantity must be at least 1")
	ErrInvalidPrice       = errors.New("item price must not be negative")
	ErrNotPending         = errors.New("order is no longer editable")
	ErrProductUnavailable = errors.New("product is not available")
	ErrCompanyClosed      = errors.New("company is not accepting orders")
	ErrPhoneRequired      = errors.New("phone is required")
	ErrDeliveryAddress    = errors.New("delivery orders need an address or coordinates")

	// ErrVersionConflict is returned by storage when the row changed since it was read.
	ErrVersionConflict = errors.New("order was modified concurrently")
)

// TransitionError reports a guard violation. It matches ErrInvalidTransition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
