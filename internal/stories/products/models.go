package products

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrUnknownProductStatus = errors.New("unknown product status")

type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusLowStock   Status = "LOW_STOCK"
	StatusOutOfStock Status = "OUT_OF_STOCK"
)

func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusActive, StatusLowStock, StatusOutOfStock:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProductStatus, raw)
	}
}

type Product struct {
	ID        string
	CompanyID string
	Name      string
	Price     decimal.Decimal
	Category  string
	Status    Status
	ImageURL  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAvailable is the binary availability flag; LOW_STOCK is still orderable.
func (p *Product) IsAvailable() bool {
	return p.Status != StatusOutOfStock
}

type GetCriteria struct {
	ID *string
}

type ListCriteria struct {
	IDs        []string
	CompanyIDs []string
	Statuses   []Status
	Category   *string
	Limit      int
	Offset     int
}

type UpdateParams struct {
	Name     *string
	Price    *decimal.Decimal
	Category *string
	Status   *Status
	ImageURL *string
}
