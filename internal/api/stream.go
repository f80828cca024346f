package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"queue-bot/internal/stories/orders"

	"github.com/go-chi/chi/v5"
)

var errStreamingUnsupported = errors.New("streaming unsupported")

// sseWriter writes text/event-stream frames.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) event(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) comment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// statusEcho hands status changes from the view goroutine to the stream loop.
type statusEcho struct {
	ch chan *orders.Order
}

func newStatusEcho() statusEcho {
	return statusEcho{ch: make(chan *orders.Order, 32)}
}

func (e statusEcho) OrderStatusChanged(o *orders.Order) {
	select {
	case e.ch <- o:
	default:
	}
}

// StreamQueue handles GET /companies/{companyID}/events.
//
// Events: "queue" carries the active orders whenever they change, "status" carries
// an order that reached a new status.
func (h *Handler) StreamQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := chi.URLParam(r, "companyID")

	company, err := h.companies.GetCompany(ctx, companyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Subscribe before reading the snapshot so nothing committed in between is lost.
	echo := newStatusEcho()
	view := h.newView(echo)
	if err := view.Start(ctx, company.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	defer view.Close()

	snapshot, err := h.orders.ListQueue(ctx, company.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view.Seed(company, snapshot)

	stream, err := newSSEWriter(w)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	queue := view.ActiveOrders()
	last := queueSignature(queue)
	if err := stream.event("queue", toQueueResponse(queue)); err != nil {
		return
	}

	poll := time.NewTicker(h.queuePoll)
	defer poll.Stop()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pushQueue := func() error {
		queue := view.ActiveOrders()
		sig := queueSignature(queue)
		if sig == last {
			return nil
		}
		last = sig
		return stream.event("queue", toQueueResponse(queue))
	}

	// resync re-reads the store; it recovers events the feed dropped.
	resync := func() error {
		listedAt := h.now()
		snapshot, err := h.orders.ListQueue(ctx, company.ID)
		if err != nil {
			h.logger.Warn("Queue resync failed", "company_id", company.ID, "error", err)
			return nil
		}
		view.Resync(snapshot, listedAt)
		return nil
	}

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case o := <-echo.ch:
			if err = stream.event("status", toOrderResponse(o)); err == nil {
				err = pushQueue()
			}
		case <-poll.C:
			if err = resync(); err == nil {
				err = pushQueue()
			}
		case <-heartbeat.C:
			err = stream.comment("ping")
		}
		if err != nil {
			h.logger.Debug("Queue stream closed", "company_id", company.ID, "error", err)
			return
		}
	}
}

// StreamTimer handles GET /orders/{orderID}/timer. It pushes "elapsed" events while
// the order is being prepared and a final one once it leaves PREPARING.
func (h *Handler) StreamTimer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	orderID := chi.URLParam(r, "orderID")

	v, err := h.orders.GetOrderView(ctx, orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view := h.newView(nil)
	if err := view.Start(ctx, v.Order.CompanyID); err != nil {
		h.writeError(w, r, err)
		return
	}
	defer view.Close()

	// Re-read now that the subscription is live; Seed keeps whichever version is newer.
	if v, err = h.orders.GetOrderView(ctx, orderID); err != nil {
		h.writeError(w, r, err)
		return
	}
	order := v.Order
	view.Seed(nil, []*orders.Order{order})

	stream, err := newSSEWriter(w)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := stream.event("elapsed", elapsedEvent{OrderID: order.ID, Status: order.Status, ElapsedSeconds: v.ElapsedSeconds}); err != nil {
		return
	}
	if order.Status != orders.StatusPreparing {
		return
	}

	current := func() *orders.Order {
		o, ok := view.Order(order.ID)
		if !ok {
			return nil
		}
		return o
	}

	polled := make(chan struct{})
	go func() {
		defer close(polled)
		h.pollOrder(ctx, view, order.ID)
	}()
	defer func() { <-polled }()
	defer cancel()

	orders.Tick(ctx, h.timerTick, current, h.now, func(elapsed int64) {
		err := stream.event("elapsed", elapsedEvent{OrderID: order.ID, Status: orders.StatusPreparing, ElapsedSeconds: elapsed})
		if err != nil {
			h.logger.Debug("Timer stream closed", "order_id", order.ID, "error", err)
			cancel()
		}
	})

	if ctx.Err() != nil {
		return
	}
	if o := current(); o != nil {
		_ = stream.event("elapsed", elapsedEvent{OrderID: o.ID, Status: o.Status, ElapsedSeconds: orders.ElapsedNow(o, h.now())})
	}
}

// pollOrder re-reads the order from the store until ctx is done, so a change the
// feed dropped still reaches the view.
func (h *Handler) pollOrder(ctx context.Context, view QueueView, orderID string) {
	ticker := time.NewTicker(h.queuePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v, err := h.orders.GetOrderView(ctx, orderID)
			if err != nil {
				if ctx.Err() == nil {
					h.logger.Warn("Timer resync failed", "order_id", orderID, "error", err)
				}
				continue
			}
			view.Seed(nil, []*orders.Order{v.Order})
		}
	}
}

func queueSignature(queue []*orders.Order) string {
	var b strings.Builder
	for _, o := range queue {
		b.WriteString(o.ID)
		b.WriteByte(':')
		b.WriteString(string(o.Status))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(o.Version, 10))
		b.WriteByte(';')
	}
	return b.String()
}
