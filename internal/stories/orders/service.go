package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"queue-bot/internal/stories/companies"
	"queue-bot/internal/stories/customers"
	"queue-bot/internal/stories/presence"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Service runs the order lifecycle: join, cart, confirmation and status changes.
type Service struct {
	storage    Storage
	companies  CompanyService
	products   ProductService
	presence   PresenceService
	tickets    TicketAllocatorService
	dispatcher Dispatcher
	metrics    Metrics
	now        func() time.Time
	logger     *slog.Logger
	tracer     trace.Tracer

	// in-flight notifications
	wg sync.WaitGroup
}

func NewService(
	storage Storage,
	companies CompanyService,
	products ProductService,
	presence PresenceService,
	tickets TicketAllocatorService,
	dispatcher Dispatcher,
	metrics Metrics,
	now func() time.Time,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage:    storage,
		companies:  companies,
		products:   products,
		presence:   presence,
		tickets:    tickets,
		dispatcher: dispatcher,
		metrics:    metrics,
		now:        now,
		logger:     logger,
		tracer:     otel.Tracer("queue-bot/orders"),
	}
}

// JoinQueue puts a customer in the company queue. A customer that already has an open
// order there is redirected to it instead of getting a second one.
func (s *Service) JoinQueue(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	ctx, span := s.tracer.Start(ctx, "orders.JoinQueue")
	defer span.End()

	companyID := req.CompanyID
	if req.Scanner != nil {
		id, err := s.presence.ResolveCode(ctx, req.Scanner)
		if err != nil {
			return nil, s.fail(span, err)
		}
		companyID = id
	}
	if companyID == "" {
		return nil, s.fail(span, presence.ErrNoMatch)
	}
	span.SetAttributes(attribute.String("company_id", companyID))

	phone := customers.NormalizePhone(req.Phone)
	if phone == "" {
		return nil, s.fail(span, ErrPhoneRequired)
	}

	orderType, err := ParseOrderType(string(req.OrderType))
	if err != nil {
		return nil, s.fail(span, err)
	}
	if orderType == OrderTypeDelivery && req.DeliveryAddress == nil && req.DeliveryCoords == nil {
		return nil, s.fail(span, ErrDeliveryAddress)
	}

	company, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if !company.AcceptsOrders() {
		return nil, s.fail(span, ErrCompanyClosed)
	}

	existing, err := s.storage.ListOrders(ctx, ListCriteria{
		CompanyIDs: []string{company.ID},
		Statuses:   append([]Status{StatusPending}, ActiveStatuses...),
		Phone:      &phone,
		Limit:      1,
	})
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("list open orders: %w", err))
	}
	if len(existing) > 0 {
		s.logger.Info("Customer already in queue, redirecting",
			"company_id", company.ID,
			"order_id", existing[0].ID)
		return &JoinResult{Order: existing[0], Existing: true}, nil
	}

	if _, err := s.presence.Verify(ctx, req.Locator, company.Location); err != nil {
		s.logger.Info("Presence check failed", "company_id", company.ID, "error", err)
		return nil, s.fail(span, err)
	}

	now := s.now()
	code, err := s.tickets.Allocate(ctx, company.ID, now)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("allocate ticket: %w", err))
	}

	order := &Order{
		CompanyID:       company.ID,
		TicketCode:      code,
		Phone:           phone,
		Status:          StatusPending,
		OrderType:       orderType,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryCoords:  req.DeliveryCoords,
		CreatedAt:       now,
	}

	// Joining with a ready cart skips the PENDING step.
	if len(req.Items) > 0 {
		items, err := s.priceItems(ctx, company.ID, req.Items)
		if err != nil {
			return nil, s.fail(span, err)
		}
		patch, err := ConfirmCart(order, items)
		if err != nil {
			return nil, s.fail(span, err)
		}
		order = patch.Apply(order)
	}

	created, err := s.storage.CreateOrder(ctx, *order)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("create order: %w", err))
	}

	s.metrics.ObserveTransition(string(created.Status))
	s.logger.Info("Customer joined queue",
		"company_id", company.ID,
		"order_id", created.ID,
		"ticket_code", created.TicketCode,
		"status", created.Status)

	return &JoinResult{Order: created}, nil
}

// UpdateCart replaces the items of a PENDING order. Prices shown here are a preview;
// they are taken again on confirmation.
func (s *Service) UpdateCart(ctx context.Context, orderID string, cart []CartItem) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.UpdateCart")
	defer span.End()

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if order.Status != StatusPending {
		return nil, s.fail(span, ErrNotPending)
	}

	items, err := s.priceItems(ctx, order.CompanyID, cart)
	if err != nil {
		return nil, s.fail(span, err)
	}

	updated, err := s.storage.UpdateOrder(ctx, order.ID, order.Version, Patch{Items: items})
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("update cart: %w", err))
	}
	return updated, nil
}

// ConfirmCart moves a PENDING order to RECEIVED with snapshot prices and a frozen total.
// A nil cart confirms the items already stored on the order.
func (s *Service) ConfirmCart(ctx context.Context, orderID string, cart []CartItem) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.ConfirmCart")
	defer span.End()

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if order.Status != StatusPending {
		return nil, s.fail(span, &TransitionError{From: order.Status, To: StatusReceived})
	}

	if cart == nil {
		cart = lo.Map(order.Items, func(item LineItem, _ int) CartItem {
			return CartItem{ProductID: item.ProductID, Quantity: item.Quantity, Observation: item.Observation}
		})
	}

	items, err := s.priceItems(ctx, order.CompanyID, cart)
	if err != nil {
		return nil, s.fail(span, err)
	}

	patch, err := ConfirmCart(order, items)
	if err != nil {
		return nil, s.fail(span, err)
	}

	updated, err := s.storage.UpdateOrder(ctx, order.ID, order.Version, patch)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("confirm cart: %w", err))
	}

	s.metrics.ObserveTransition(string(updated.Status))
	s.logger.Info("Cart confirmed",
		"order_id", updated.ID,
		"items", len(updated.Items),
		"total", updated.Total.String())

	return updated, nil
}

// Advance moves an order to target on behalf of actor. Notifications go out after the
// write succeeded and never affect the result.
func (s *Service) Advance(ctx context.Context, orderID string, target Status, actor Actor) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.Advance", trace.WithAttributes(
		attribute.String("order_id", orderID),
		attribute.String("target", string(target)),
		attribute.String("actor", string(actor)),
	))
	defer span.End()

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	patch, effects, err := Transition(order, target, actor, s.now())
	if err != nil {
		s.logger.Warn("Transition rejected",
			"order_id", order.ID,
			"from", order.Status,
			"to", target,
			"actor", actor)
		return nil, s.fail(span, err)
	}
	if patch.Noop {
		return order, nil
	}

	updated, err := s.storage.UpdateOrder(ctx, order.ID, order.Version, patch)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("update order status: %w", err))
	}

	s.metrics.ObserveTransition(string(updated.Status))
	if updated.Status == StatusReady {
		s.metrics.ObservePreparation(updated.TimerAccumulatedSeconds)
	}
	s.logger.Info("Order status changed",
		"order_id", updated.ID,
		"from", order.Status,
		"to", updated.Status,
		"actor", actor,
		"accumulated_seconds", updated.TimerAccumulatedSeconds)

	s.dispatch(ctx, updated, effects)

	return updated, nil
}

// Cancel is allowed while the order is PENDING, RECEIVED or PREPARING.
func (s *Service) Cancel(ctx context.Context, orderID string, actor Actor) (*Order, error) {
	return s.Advance(ctx, orderID, StatusCancelled, actor)
}

// PauseTimer stops the preparation stopwatch; advancing to PREPARING again resumes it.
func (s *Service) PauseTimer(ctx context.Context, orderID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.PauseTimer", trace.WithAttributes(
		attribute.String("order_id", orderID),
	))
	defer span.End()

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	patch, err := PauseTimer(order, s.now())
	if err != nil {
		return nil, s.fail(span, err)
	}
	if patch.Noop {
		return order, nil
	}

	updated, err := s.storage.UpdateOrder(ctx, order.ID, order.Version, patch)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("pause timer: %w", err))
	}
	s.logger.Info("Preparation paused",
		"order_id", updated.ID,
		"accumulated_seconds", updated.TimerAccumulatedSeconds)
	return updated, nil
}

// GetOrderView returns the order with its queue position and live timer.
func (s *Service) GetOrderView(ctx context.Context, orderID string) (*View, error) {
	ctx, span := s.tracer.Start(ctx, "orders.GetOrderView", trace.WithAttributes(
		attribute.String("order_id", orderID),
	))
	defer span.End()

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	view := &View{Order: order, ElapsedSeconds: ElapsedNow(order, s.now())}
	if !order.Status.IsActive() {
		return view, nil
	}

	siblings, err := s.storage.ListOrders(ctx, ListCriteria{
		CompanyIDs:    []string{order.CompanyID},
		Statuses:      ActiveStatuses,
		CreatedBefore: &order.CreatedAt,
	})
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("list queue: %w", err))
	}

	view.Position = ComputePosition(order, siblings)

	company, err := s.companies.GetCompany(ctx, order.CompanyID)
	if err != nil {
		s.logger.Warn("Failed to load company for estimate", "company_id", order.CompanyID, "error", err)
	} else {
		view.EstimatedMins = EstimateMinutes(view.Position, company.AvgPrepMinutes)
	}

	view.Order.QueuePosition = view.Position
	view.Order.EstimatedMinutes = view.EstimatedMins
	return view, nil
}

// ListQueue returns the active orders of a company in FIFO order.
func (s *Service) ListQueue(ctx context.Context, companyID string) ([]*Order, error) {
	company, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	active, err := s.storage.ListOrders(ctx, ListCriteria{
		CompanyIDs: []string{company.ID},
		Statuses:   ActiveStatuses,
	})
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}

	return ActiveQueue(company.ID, active, company.AvgPrepMinutes), nil
}

// DeleteStaleCarts removes PENDING orders nobody confirmed within ttl.
func (s *Service) DeleteStaleCarts(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := s.now().Add(-ttl)
	stale, err := s.storage.ListOrders(ctx, ListCriteria{
		Statuses:      []Status{StatusPending},
		CreatedBefore: &cutoff,
	})
	if err != nil {
		return 0, fmt.Errorf("list stale carts: %w", err)
	}

	deleted := 0
	for _, order := range stale {
		if err := s.storage.DeleteOrder(ctx, order.ID); err != nil {
			s.logger.Error("Failed to delete stale cart", "order_id", order.ID, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Wait blocks until in-flight notifications are done.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) dispatch(ctx context.Context, order *Order, effects []SideEffect) {
	if len(effects) == 0 || s.dispatcher == nil {
		return
	}

	company, err := s.companies.GetCompany(ctx, order.CompanyID)
	if err != nil {
		s.logger.Error("Failed to load company for notification",
			"order_id", order.ID,
			"company_id", order.CompanyID,
			"error", err)
		return
	}

	s.wg.Add(1)
	go func(ctx context.Context) {
		defer s.wg.Done()
		s.dispatcher.Dispatch(ctx, order, company, effects)
	}(context.WithoutCancel(ctx))
}

func (s *Service) getOrder(ctx context.Context, id string) (*Order, error) {
	order, err := s.storage.GetOrder(ctx, GetCriteria{ID: &id})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// priceItems snapshots current menu prices into line items.
func (s *Service) priceItems(ctx context.Context, companyID string, cart []CartItem) ([]LineItem, error) {
	ids := lo.Map(cart, func(item CartItem, _ int) string { return item.ProductID })
	menu, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	items := make([]LineItem, 0, len(cart))
	for _, c := range cart {
		if c.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		product, ok := menu[c.ProductID]
		if !ok || product.CompanyID != companyID || !product.IsAvailable() {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, c.ProductID)
		}
		items = append(items, LineItem{
			ProductID:   product.ID,
			Name:        product.Name,
			Quantity:    c.Quantity,
			UnitPrice:   product.Price,
			Observation: c.Observation,
		})
	}
	return items, nil
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// IsUserError reports whether err is the caller's fault rather than an infrastructure failure.
func IsUserError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te) ||
		errors.Is(err, ErrCartEmpty) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrProductUnavailable) ||
		errors.Is(err, ErrCompanyClosed) ||
		errors.Is(err, ErrPhoneRequired) ||
		errors.Is(err, ErrDeliveryAddress) ||
		errors.Is(err, ErrUnknownOrderType) ||
		errors.Is(err, ErrUnknownStatus) ||
		errors.Is(err, ErrUnknownActor) ||
		errors.Is(err, companies.ErrCompanyNotFound)
}
