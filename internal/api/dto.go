package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"queue-bot/internal/stories/companies"
	"queue-bot/internal/stories/notify"
	"queue-bot/internal/stories/orders"
	"queue-bot/internal/stories/presence"
	"queue-bot/internal/stories/products"

	"github.com/samber/lo"
)

type cartItemRequest struct {
	ProductID   string  `json:"productId"`
	Quantity    int     `json:"quantity"`
	Observation *string `json:"observation"`
}

type joinRequest struct {
	Phone           string            `json:"phone"`
	OrderType       string            `json:"orderType"`
	DeliveryAddress *string           `json:"deliveryAddress"`
	DeliveryCoords  *presence.Coords  `json:"deliveryCoords"`
	ScannedCode     *string           `json:"scannedCode"`
	Location        *presence.Coords  `json:"location"`
	LocationError   string            `json:"locationError"`
	Items           []cartItemRequest `json:"items"`
}

type cartRequest struct {
	Items []cartItemRequest `json:"items"`
}

// confirmRequest.Items nil means "confirm what is already in the cart".
type confirmRequest struct {
	Items []cartItemRequest `json:"items"`
}

type statusRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
}

type cancelRequest struct {
	Actor string `json:"actor"`
}

type acceptingRequest struct {
	Accepting bool `json:"accepting"`
}

type productStatusRequest struct {
	Status string `json:"status"`
}

type lineItemResponse struct {
	ProductID   string  `json:"productId"`
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   string  `json:"unitPrice"`
	Subtotal    string  `json:"subtotal"`
	Observation *string `json:"observation,omitempty"`
}

type orderResponse struct {
	ID                      string             `json:"id"`
	CompanyID               string             `json:"companyId"`
	TicketCode              string             `json:"ticketCode"`
	TicketNumber            *int64             `json:"ticketNumber,omitempty"`
	Phone                   string             `json:"phone"`
	Status                  orders.Status      `json:"status"`
	CancelledBy             *orders.Actor      `json:"cancelledBy,omitempty"`
	OrderType               orders.OrderType   `json:"orderType"`
	DeliveryAddress         *string            `json:"deliveryAddress,omitempty"`
	DeliveryCoords          *presence.Coords   `json:"deliveryCoords,omitempty"`
	Items                   []lineItemResponse `json:"items"`
	Total                   *string            `json:"total"`
	QueuePosition           *int               `json:"queuePosition"`
	EstimatedMinutes        *int               `json:"estimatedMinutes"`
	TimerAccumulatedSeconds int64              `json:"timerAccumulatedSeconds"`
	TimerLastStartedAt      *time.Time         `json:"timerLastStartedAt"`
	Version                 int64              `json:"version"`
	CreatedAt               time.Time          `json:"createdAt"`
	UpdatedAt               time.Time          `json:"updatedAt"`
}

type joinResponse struct {
	Order    orderResponse `json:"order"`
	Existing bool          `json:"existing"`
}

type orderViewResponse struct {
	orderResponse
	ElapsedSeconds int64 `json:"elapsedSeconds"`
}

type companyResponse struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	IsActive          bool             `json:"isActive"`
	IsAcceptingOrders bool             `json:"isAcceptingOrders"`
	Location          *presence.Coords `json:"location,omitempty"`
	AvgPrepMinutes    int              `json:"avgPrepMinutes"`
	Language          string           `json:"language"`
}

type productResponse struct {
	ID        string          `json:"id"`
	CompanyID string          `json:"companyId"`
	Name      string          `json:"name"`
	Price     string          `json:"price"`
	Category  string          `json:"category"`
	Status    products.Status `json:"status"`
	ImageURL  *string         `json:"imageUrl,omitempty"`
}

type smsLogResponse struct {
	ID        string         `json:"id"`
	OrderID   *string        `json:"orderId"`
	Recipient string         `json:"recipient"`
	Channel   notify.Channel `json:"channel"`
	Message   string         `json:"message"`
	Cost      string         `json:"cost"`
	CreatedAt time.Time      `json:"createdAt"`
}

type elapsedEvent struct {
	OrderID        string        `json:"orderId"`
	Status         orders.Status `json:"status"`
	ElapsedSeconds int64         `json:"elapsedSeconds"`
}

func toCart(items []cartItemRequest) []orders.CartItem {
	if items == nil {
		return nil
	}
	return lo.Map(items, func(i cartItemRequest, _ int) orders.CartItem {
		return orders.CartItem{ProductID: i.ProductID, Quantity: i.Quantity, Observation: i.Observation}
	})
}

func toOrderResponse(o *orders.Order) orderResponse {
	resp := orderResponse{
		ID:                      o.ID,
		CompanyID:               o.CompanyID,
		TicketCode:              o.TicketCode,
		TicketNumber:            o.TicketNumber,
		Phone:                   o.Phone,
		Status:                  o.Status,
		CancelledBy:             o.CancelledBy,
		OrderType:               o.OrderType,
		DeliveryAddress:         o.DeliveryAddress,
		DeliveryCoords:          o.DeliveryCoords,
		QueuePosition:           o.QueuePosition,
		EstimatedMinutes:        o.EstimatedMinutes,
		TimerAccumulatedSeconds: o.TimerAccumulatedSeconds,
		TimerLastStartedAt:      o.TimerLastStartedAt,
		Version:                 o.Version,
		CreatedAt:               o.CreatedAt,
		UpdatedAt:               o.UpdatedAt,
		Items: lo.Map(o.Items, func(i orders.LineItem, _ int) lineItemResponse {
			return lineItemResponse{
				ProductID:   i.ProductID,
				Name:        i.Name,
				Quantity:    i.Quantity,
				UnitPrice:   i.UnitPrice.StringFixed(2),
				Subtotal:    i.Subtotal().StringFixed(2),
				Observation: i.Observation,
			}
		}),
	}
	if o.Total != nil {
		resp.Total = lo.ToPtr(o.Total.StringFixed(2))
	}
	return resp
}

func toCompanyResponse(c *companies.Company) companyResponse {
	return companyResponse{
		ID:                c.ID,
		Name:              c.Name,
		IsActive:          c.IsActive,
		IsAcceptingOrders: c.IsAcceptingOrders,
		Location:          c.Location,
		AvgPrepMinutes:    c.AvgPrepMinutes,
		Language:          c.Language,
	}
}

func toProductResponse(p *products.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		CompanyID: p.CompanyID,
		Name:      p.Name,
		Price:     p.Price.StringFixed(2),
		Category:  p.Category,
		Status:    p.Status,
		ImageURL:  p.ImageURL,
	}
}

func toSMSLogResponse(l *notify.SMSLog) smsLogResponse {
	return smsLogResponse{
		ID:        l.ID,
		OrderID:   l.OrderID,
		Recipient: l.Recipient,
		Channel:   l.Channel,
		Message:   l.Message,
		Cost:      l.Cost.StringFixed(2),
		CreatedAt: l.CreatedAt,
	}
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
