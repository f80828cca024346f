package api

import (
	"errors"
	"net/http"

	"queue-bot/internal/stories/companies"
	"queue-bot/internal/stories/orders"
	"queue-bot/internal/stories/presence"
	"queue-bot/internal/stories/products"
)

var errBadRequest = errors.New("invalid request body")

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func statusFor(err error) (int, string) {
	var te *orders.TransitionError
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, companies.ErrCompanyNotFound),
		errors.Is(err, products.ErrProductNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &te):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, orders.ErrVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, orders.ErrNotPending):
		return http.StatusConflict, "not_pending"
	case errors.Is(err, presence.ErrGeolocationDenied):
		return http.StatusForbidden, "geolocation_denied"
	case errors.Is(err, presence.ErrGeolocationUnavailable):
		return http.StatusForbidden, "geolocation_unavailable"
	case errors.Is(err, presence.ErrOutOfRange):
		return http.StatusForbidden, "out_of_range"
	case errors.Is(err, presence.ErrNoMatch):
		return http.StatusUnprocessableEntity, "qr_no_match"
	case errors.Is(err, products.ErrUnknownProductStatus), orders.IsUserError(err):
		return http.StatusUnprocessableEntity, "validation"
	default:
		return http.StatusServiceUnavailable, "unavailable"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusServiceUnavailable {
		h.logger.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		msg = "service temporarily unavailable"
	} else {
		h.logger.Debug("Request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
