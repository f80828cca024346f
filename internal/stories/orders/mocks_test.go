package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"queue-bot/internal/stories/companies"
	"queue-bot/internal/stories/presence"
	"queue-bot/internal/stories/products"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// memStorage - хранилище заказов в памяти
type memStorage struct {
	mu     sync.Mutex
	orders map[string]*Order
	nextID int
}

func newMemStorage() *memStorage {
	return &memStorage{orders: map[string]*Order{}}
}

func (m *memStorage) CreateOrder(_ context.Context, order Order) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	order.ID = fmt.Sprintf("order-%d", m.nextID)
	order.Version = 1
	m.orders[order.ID] = order.Clone()
	return order.Clone(), nil
}

func (m *memStorage) GetOrder(_ context.Context, criteria GetCriteria) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[*criteria.ID]
	if !ok {
		return nil, nil
	}
	return o.Clone(), nil
}

func (m *memStorage) ListOrders(_ context.Context, criteria ListCriteria) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*Order
	for _, o := range m.orders {
		if len(criteria.CompanyIDs) > 0 && !containsString(criteria.CompanyIDs, o.CompanyID) {
			continue
		}
		if len(criteria.Statuses) > 0 && !containsStatus(criteria.Statuses, o.Status) {
			continue
		}
		if criteria.Phone != nil && o.Phone != *criteria.Phone {
			continue
		}
		if criteria.CreatedAfter != nil && o.CreatedAt.Before(*criteria.CreatedAfter) {
			continue
		}
		if criteria.CreatedBefore != nil && !o.CreatedAt.Before(*criteria.CreatedBefore) {
			continue
		}
		result = append(result, o.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if criteria.Limit > 0 && len(result) > criteria.Limit {
		result = result[:criteria.Limit]
	}
	return result, nil
}

func (m *memStorage) UpdateOrder(_ context.Context, id string, expectedVersion int64, patch Patch) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if o.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	updated := patch.Apply(o)
	updated.Version++
	m.orders[id] = updated
	return updated.Clone(), nil
}

func (m *memStorage) DeleteOrder(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return ErrOrderNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *memStorage) put(o *Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.Version == 0 {
		o.Version = 1
	}
	m.orders[o.ID] = o.Clone()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type mockCompanies map[string]*companies.Company

func (m mockCompanies) GetCompany(_ context.Context, id string) (*companies.Company, error) {
	c, ok := m[id]
	if !ok {
		return nil, companies.ErrCompanyNotFound
	}
	return c, nil
}

type mockProducts map[string]*products.Product

func (m mockProducts) GetProducts(_ context.Context, ids []string) (map[string]*products.Product, error) {
	result := map[string]*products.Product{}
	for _, id := range ids {
		if p, ok := m[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

// mockPresence - проверка присутствия, всегда успешна если не задана ошибка
type mockPresence struct {
	err    error
	code   string
	called bool
}

func (m *mockPresence) Verify(_ context.Context, _ presence.Geolocator, _ *presence.Coords) (*presence.Coords, error) {
	m.called = true
	if m.err != nil {
		return nil, m.err
	}
	return &presence.Coords{}, nil
}

func (m *mockPresence) ResolveCode(_ context.Context, _ presence.Scanner) (string, error) {
	if m.code == "" {
		return "", presence.ErrNoMatch
	}
	return m.code, nil
}

type fixedTickets string

func (f fixedTickets) Allocate(context.Context, string, time.Time) (string, error) {
	return string(f), nil
}

type dispatchCall struct {
	orderID string
	effects []SideEffect
}

type mockDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (m *mockDispatcher) Dispatch(_ context.Context, order *Order, _ *companies.Company, effects []SideEffect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, dispatchCall{orderID: order.ID, effects: effects})
}

func (m *mockDispatcher) templates() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Status
	for _, c := range m.calls {
		for _, e := range c.effects {
			result = append(result, e.TemplateKey)
		}
	}
	return result
}

type noopMetrics struct{}

func (noopMetrics) ObserveTransition(string) {}
func (noopMetrics) ObservePreparation(int64) {}

// clock - управляемые часы для тестов
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingTracer keeps span names and the errors recorded on them.
type recordingTracer struct {
	noop.Tracer

	mu     sync.Mutex
	spans  []string
	errors map[string][]error
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	ctx, span := r.Tracer.Start(ctx, name, opts...)
	r.mu.Lock()
	r.spans = append(r.spans, name)
	r.mu.Unlock()
	return ctx, &recordingSpan{Span: span, name: name, tracer: r}
}

func (r *recordingTracer) recorded(name string) []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors[name]
}

type recordingSpan struct {
	trace.Span
	name   string
	tracer *recordingTracer
}

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	if s.tracer.errors == nil {
		s.tracer.errors = make(map[string][]error)
	}
	s.tracer.errors[s.name] = append(s.tracer.errors[s.name], err)
}
