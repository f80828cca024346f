package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultTimerTick  = time.Second
	defaultQueuePoll  = 2 * time.Second
	defaultLogsLimit  = 50
	maxLogsLimit      = 500
	heartbeatInterval = 15 * time.Second
)

// Handler serves the customer and staff HTTP API.
type Handler struct {
	orders    OrderService
	companies CompanyService
	products  ProductService
	smsLogs   SMSLogService
	newView   ViewFactory

	timerTick time.Duration
	queuePoll time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Handler)

// WithTimerTick sets how often the timer stream pushes elapsed seconds.
func WithTimerTick(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timerTick = d
		}
	}
}

// WithQueuePoll sets how often the queue stream checks its view for changes.
func WithQueuePoll(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.queuePoll = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

func NewHandler(
	orders OrderService,
	companies CompanyService,
	products ProductService,
	smsLogs SMSLogService,
	newView ViewFactory,
	logger *slog.Logger,
	opts ...Option,
) *Handler {
	h := &Handler{
		orders:    orders,
		companies: companies,
		products:  products,
		smsLogs:   smsLogs,
		newView:   newView,
		timerTick: defaultTimerTick,
		queuePoll: defaultQueuePoll,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/companies", h.ListCompanies)
	r.Post("/join", h.Join)

	r.Route("/companies/{companyID}", func(r chi.Router) {
		r.Get("/", h.GetCompany)
		r.Post("/join", h.Join)
		r.Post("/accepting", h.SetAccepting)
		r.Get("/menu", h.Menu)
		r.Get("/queue", h.Queue)
		r.Get("/events", h.StreamQueue)
		r.Get("/sms-logs", h.SMSLogs)
	})

	r.Route("/orders/{orderID}", func(r chi.Router) {
		r.Get("/", h.GetOrder)
		r.Put("/cart", h.UpdateCart)
		r.Post("/confirm", h.ConfirmCart)
		r.Post("/status", h.Advance)
		r.Post("/cancel", h.Cancel)
		r.Post("/pause", h.Pause)
		r.Get("/timer", h.StreamTimer)
	})

	r.Put("/products/{productID}/status", h.SetProductStatus)

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r)

		h.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
