package api

import (
	"net/http"

	"queue-bot/internal/stories/orders"
	"queue-bot/internal/stories/presence"

	"github.com/go-chi/chi/v5"
)

// Join handles POST /companies/{companyID}/join and POST /join (scanned code only).
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	join := orders.JoinRequest{
		CompanyID:       chi.URLParam(r, "companyID"),
		Phone:           req.Phone,
		OrderType:       orders.OrderType(req.OrderType),
		DeliveryAddress: req.DeliveryAddress,
		DeliveryCoords:  req.DeliveryCoords,
		Items:           toCart(req.Items),
		Locator: presence.StaticLocator{
			Coords: req.Location,
			Err:    presence.ParseGeolocationError(req.LocationError),
		},
	}
	if req.ScannedCode != nil {
		join.Scanner = presence.StaticScanner(*req.ScannedCode)
	}

	result, err := h.orders.JoinQueue(r.Context(), join)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Existing {
		status = http.StatusOK
	}
	writeJSON(w, status, joinResponse{Order: toOrderResponse(result.Order), Existing: result.Existing})
}

// UpdateCart handles PUT /orders/{orderID}/cart.
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.UpdateCart(r.Context(), chi.URLParam(r, "orderID"), toCart(req.Items))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// ConfirmCart handles POST /orders/{orderID}/confirm.
func (h *Handler) ConfirmCart(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.ConfirmCart(r.Context(), chi.URLParam(r, "orderID"), toCart(req.Items))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Advance handles POST /orders/{orderID}/status. The actor defaults to admin.
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	target, err := orders.ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	actor, err := parseActor(req.Actor, orders.ActorAdmin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.Advance(r.Context(), chi.URLParam(r, "orderID"), target, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Cancel handles POST /orders/{orderID}/cancel. The actor defaults to customer.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	actor, err := parseActor(req.Actor, orders.ActorCustomer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	order, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "orderID"), actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Pause handles POST /orders/{orderID}/pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.PauseTimer(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// GetOrder handles GET /orders/{orderID}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.orders.GetOrderView(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderViewResponse{
		orderResponse:  toOrderResponse(view.Order),
		ElapsedSeconds: view.ElapsedSeconds,
	})
}

func parseActor(raw string, fallback orders.Actor) (orders.Actor, error) {
	if raw == "" {
		return fallback, nil
	}
	return orders.ParseActor(raw)
}
