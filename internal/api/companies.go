package api

import (
	"net/http"
	"strconv"

	"queue-bot/internal/stories/companies"
	"queue-bot/internal/stories/notify"
	"queue-bot/internal/stories/orders"
	"queue-bot/internal/stories/products"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

// ListCompanies handles GET /companies.
func (h *Handler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	list, err := h.companies.ListActiveCompanies(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(list, func(c *companies.Company, _ int) companyResponse {
		return toCompanyResponse(c)
	}))
}

// GetCompany handles GET /companies/{companyID}.
func (h *Handler) GetCompany(w http.ResponseWriter, r *http.Request) {
	company, err := h.companies.GetCompany(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyResponse(company))
}

// SetAccepting handles POST /companies/{companyID}/accepting.
func (h *Handler) SetAccepting(w http.ResponseWriter, r *http.Request) {
	var req acceptingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	company, err := h.companies.SetAcceptingOrders(r.Context(), chi.URLParam(r, "companyID"), req.Accepting)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("Company queue toggled", "company_id", company.ID, "accepting", company.IsAcceptingOrders)
	writeJSON(w, http.StatusOK, toCompanyResponse(company))
}

// Menu handles GET /companies/{companyID}/menu.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.products.Menu(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(menu, func(p *products.Product, _ int) productResponse {
		return toProductResponse(p)
	}))
}

// SetProductStatus handles PUT /products/{productID}/status.
func (h *Handler) SetProductStatus(w http.ResponseWriter, r *http.Request) {
	var req productStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	status, err := products.ParseStatus(req.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	product, err := h.products.SetStatus(r.Context(), chi.URLParam(r, "productID"), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Queue handles GET /companies/{companyID}/queue.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	queue, err := h.orders.ListQueue(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQueueResponse(queue))
}

// SMSLogs handles GET /companies/{companyID}/sms-logs?limit=&offset=.
func (h *Handler) SMSLogs(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	if _, err := h.companies.GetCompany(r.Context(), companyID); err != nil {
		h.writeError(w, r, err)
		return
	}

	limit := queryInt(r, "limit", defaultLogsLimit)
	if limit <= 0 || limit > maxLogsLimit {
		limit = defaultLogsLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	logs, err := h.smsLogs.ListLogs(r.Context(), companyID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(logs, func(l *notify.SMSLog, _ int) smsLogResponse {
		return toSMSLogResponse(l)
	}))
}

func toQueueResponse(queue []*orders.Order) []orderResponse {
	return lo.Map(queue, func(o *orders.Order, _ int) orderResponse { return toOrderResponse(o) })
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
