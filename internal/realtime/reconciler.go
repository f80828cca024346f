package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"queue-bot/internal/storage"
	"queue-bot/internal/stories/companies"
	"queue-bot/internal/stories/orders"
	"queue-bot/internal/stories/products"
)

var (
	ErrSubscribeTimeout = errors.New("subscription was not established in time")
	ErrAlreadyStarted   = errors.New("reconciler already started")
)

type echoKey struct {
	orderID string
	status  orders.Status
}

// Reconciler keeps an in-memory view of one company's queue in sync with the
// store's change feed.
type Reconciler struct {
	store            Subscriber
	echo             Echo
	metrics          Metrics
	subscribeTimeout time.Duration
	logger           *slog.Logger

	mu       sync.RWMutex
	company  *companies.Company
	orders   map[string]*orders.Order
	products map[string]*products.Product
	echoed   map[echoKey]struct{}
	// ids never come back once deleted
	removed  map[string]struct{}

	subs    []*storage.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New(store Subscriber, echo Echo, metrics Metrics, subscribeTimeout time.Duration, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:            store,
		echo:             echo,
		metrics:          metrics,
		subscribeTimeout: subscribeTimeout,
		logger:           logger,
		orders:           make(map[string]*orders.Order),
		products:         make(map[string]*products.Product),
		echoed:           make(map[echoKey]struct{}),
		removed:          make(map[string]struct{}),
	}
}

// Seed loads the initial snapshot. Held orders with a newer version are kept.
func (r *Reconciler) Seed(company *companies.Company, snapshot []*orders.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if company != nil {
		r.company = company
	}
	for _, o := range snapshot {
		if held, ok := r.orders[o.ID]; ok && held.Version >= o.Version {
			continue
		}
		r.orders[o.ID] = o.Clone()
		// The snapshot status is already known to the viewer.
		r.echoed[echoKey{o.ID, o.Status}] = struct{}{}
	}
}

// Resync reconciles the view with a fresh listing of the active queue taken at
// listedAt. Newer listed versions replace held orders and a changed status is echoed,
// since its change event was missed. Held orders missing from the listing and not
// changed since listedAt have left the queue and are dropped.
func (r *Reconciler) Resync(snapshot []*orders.Order, listedAt time.Time) {
	listed := lo.KeyBy(snapshot, func(o *orders.Order) string { return o.ID })

	var echoes []*orders.Order
	r.mu.Lock()
	for id, held := range r.orders {
		if _, ok := listed[id]; !ok && !held.UpdatedAt.After(listedAt) {
			delete(r.orders, id)
		}
	}
	for _, o := range snapshot {
		if _, gone := r.removed[o.ID]; gone {
			continue
		}
		held, exists := r.orders[o.ID]
		if exists && held.Version >= o.Version {
			continue
		}
		r.orders[o.ID] = o.Clone()

		key := echoKey{o.ID, o.Status}
		if _, already := r.echoed[key]; !already {
			r.echoed[key] = struct{}{}
			if exists && held.Status != o.Status {
				echoes = append(echoes, o.Clone())
			}
		}
	}
	r.mu.Unlock()

	if r.echo == nil {
		return
	}
	for _, o := range echoes {
		r.echo.OrderStatusChanged(o)
	}
}

// Start subscribes to the company's orders, products and company row and applies
// events until Close is called or ctx is done.
func (r *Reconciler) Start(ctx context.Context, companyID string) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)

	filters := []storage.Filter{
		{Table: storage.TableOrders, CompanyID: companyID},
		{Table: storage.TableProducts, CompanyID: companyID},
		{Table: storage.TableCompanies, CompanyID: companyID},
	}

	subs := make([]*storage.Subscription, 0, len(filters))
	for _, f := range filters {
		sub, err := r.subscribe(ctx, f)
		if err != nil {
			cancel()
			for _, s := range subs {
				s.Unsubscribe()
			}
			r.mu.Lock()
			r.started = false
			r.mu.Unlock()
			return fmt.Errorf("subscribe %s: %w", f.Table, err)
		}
		subs = append(subs, sub)
	}

	r.mu.Lock()
	r.subs = subs
	r.cancel = cancel
	r.mu.Unlock()

	for _, sub := range subs {
		r.wg.Add(1)
		go r.consume(ctx, sub)
	}

	r.logger.Info("Realtime view started", "company_id", companyID)
	return nil
}

func (r *Reconciler) subscribe(ctx context.Context, filter storage.Filter) (*storage.Subscription, error) {
	type result struct {
		sub *storage.Subscription
		err error
	}

	done := make(chan result, 1)
	go func() {
		sub, err := r.store.Subscribe(ctx, filter)
		done <- result{sub, err}
	}()

	timer := time.NewTimer(r.subscribeTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.sub, res.err
	case <-timer.C:
		// Release a subscription that arrives after we gave up.
		go func() {
			if res := <-done; res.sub != nil {
				res.sub.Unsubscribe()
			}
		}()
		return nil, ErrSubscribeTimeout
	}
}

func (r *Reconciler) consume(ctx context.Context, sub *storage.Subscription) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			r.Apply(ev)
		}
	}
}

// Close releases the subscriptions. It is safe to call more than once.
func (r *Reconciler) Close() {
	r.mu.Lock()
	cancel := r.cancel
	subs := r.subs
	r.cancel = nil
	r.subs = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	r.wg.Wait()
}

// Apply merges one change event into the view. Applying the same event twice has
// the same effect as applying it once.
func (r *Reconciler) Apply(ev storage.ChangeEvent) {
	if r.metrics != nil {
		r.metrics.ObserveChangeEvent(string(ev.Table), string(ev.Type))
	}

	var err error
	switch ev.Table {
	case storage.TableOrders:
		err = r.applyOrder(ev)
	case storage.TableProducts:
		err = r.applyProduct(ev)
	case storage.TableCompanies:
		err = r.applyCompany(ev)
	default:
		return
	}
	if err != nil {
		r.logger.Warn("Change event rejected",
			"table", ev.Table,
			"event_type", ev.Type,
			"error", err)
	}
}

func (r *Reconciler) applyOrder(ev storage.ChangeEvent) error {
	if ev.Type == storage.EventDelete {
		old, err := storage.DecodeOrder(ev.Old)
		if err != nil {
			return err
		}
		r.mu.Lock()
		delete(r.orders, old.ID)
		r.removed[old.ID] = struct{}{}
		r.mu.Unlock()
		return nil
	}

	next, err := storage.DecodeOrder(ev.New)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, gone := r.removed[next.ID]; gone {
		r.mu.Unlock()
		return nil
	}
	held, exists := r.orders[next.ID]
	if exists && held.Version >= next.Version {
		r.mu.Unlock()
		return nil
	}
	r.orders[next.ID] = next

	key := echoKey{next.ID, next.Status}
	_, already := r.echoed[key]
	notify := ev.Type == storage.EventUpdate && !already && (!exists || held.Status != next.Status)
	if notify || ev.Type == storage.EventInsert {
		r.echoed[key] = struct{}{}
	}
	r.mu.Unlock()

	if notify && r.echo != nil {
		r.echo.OrderStatusChanged(next.Clone())
	}
	return nil
}

func (r *Reconciler) applyProduct(ev storage.ChangeEvent) error {
	raw := ev.New
	if ev.Type == storage.EventDelete {
		raw = ev.Old
	}
	product, err := storage.DecodeProduct(raw)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Type == storage.EventDelete {
		delete(r.products, product.ID)
		return nil
	}
	r.products[product.ID] = product
	return nil
}

func (r *Reconciler) applyCompany(ev storage.ChangeEvent) error {
	if ev.Type == storage.EventDelete {
		return nil
	}
	company, err := storage.DecodeCompany(ev.New)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.company = company
	return nil
}

func (r *Reconciler) avgPrepMinutes() int {
	if r.company == nil {
		return 0
	}
	return r.company.AvgPrepMinutes
}

// ActiveOrders lists the active orders in FIFO order with positions filled in.
func (r *Reconciler) ActiveOrders() []*orders.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.orders) == 0 {
		return nil
	}
	all := lo.Values(r.orders)
	return orders.ActiveQueue(all[0].CompanyID, all, r.avgPrepMinutes())
}

// Order returns a copy of the held order.
func (r *Reconciler) Order(orderID string) (*orders.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// Position recomputes the queue position of an order from the view.
func (r *Reconciler) Position(orderID string) *int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil
	}
	return orders.ComputePosition(o, lo.Values(r.orders))
}

// Elapsed is the live preparation time of an order.
func (r *Reconciler) Elapsed(orderID string, now time.Time) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderID]
	if !ok {
		return 0
	}
	return orders.ElapsedNow(o, now)
}

// Product returns the held product, if any.
func (r *Reconciler) Product(productID string) (*products.Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[productID]
	return p, ok
}
