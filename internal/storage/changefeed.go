package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type Table string

const (
	TableOrders    Table = "orders"
	TableCompanies Table = "companies"
	TableProducts  Table = "products"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

var ErrFeedClosed = errors.New("change feed is closed")

// ChangeEvent describes one committed row change. Old and New hold the JSON record
// of the row (snake_case keys); Old is empty on INSERT, New on DELETE.
type ChangeEvent struct {
	Table     Table           `json:"table"`
	Type      EventType       `json:"event_type"`
	CompanyID string          `json:"company_id"`
	Old       json.RawMessage `json:"old,omitempty"`
	New       json.RawMessage `json:"new,omitempty"`
	At        time.Time       `json:"at"`
	// Origin names the process that produced the event; empty for local writes.
	Origin string `json:"origin,omitempty"`
}

// Filter selects events; zero fields match everything.
type Filter struct {
	Table     Table
	CompanyID string
}

func (f Filter) match(ev ChangeEvent) bool {
	if f.Table != "" && f.Table != ev.Table {
		return false
	}
	if f.CompanyID != "" && f.CompanyID != ev.CompanyID {
		return false
	}
	return true
}

// Sink receives every locally published event, e.g. to forward it to a broker.
type Sink func(ev ChangeEvent)

// Feed fans committed changes out to subscribers. Slow subscribers lose events
// rather than blocking writers.
type Feed struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool

	sinks  []Sink
	onDrop func(ev ChangeEvent)

	buffer int
	logger *slog.Logger
}

func NewFeed(buffer int, logger *slog.Logger) *Feed {
	if buffer <= 0 {
		buffer = 64
	}
	return &Feed{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

// AddSink registers s for locally published events. Injected events skip sinks.
func (f *Feed) AddSink(s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, s)
}

// OnDrop is called for every event a subscriber could not take.
func (f *Feed) OnDrop(fn func(ev ChangeEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDrop = fn
}

// Subscribe registers a subscription. It is removed when ctx is done or
// Unsubscribe is called.
func (f *Feed) Subscribe(ctx context.Context, filter Filter) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrFeedClosed
	}
	f.nextID++
	sub := &Subscription{
		id:     f.nextID,
		filter: filter,
		ch:     make(chan ChangeEvent, f.buffer),
		feed:   f,
		done:   make(chan struct{}),
	}
	f.subs[sub.id] = sub
	f.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Publish delivers a local change to subscribers and sinks.
func (f *Feed) Publish(ev ChangeEvent) {
	f.deliver(ev)

	f.mu.RLock()
	sinks := make([]Sink, len(f.sinks))
	copy(sinks, f.sinks)
	f.mu.RUnlock()

	for _, sink := range sinks {
		sink(ev)
	}
}

// Inject delivers a change that came from elsewhere; sinks are not called again.
func (f *Feed) Inject(ev ChangeEvent) {
	f.deliver(ev)
}

func (f *Feed) deliver(ev ChangeEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, sub := range f.subs {
		if !sub.filter.match(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			f.logger.Warn("Change event dropped, subscriber is slow",
				"table", ev.Table,
				"event_type", ev.Type,
				"subscription", sub.id)
			if f.onDrop != nil {
				f.onDrop(ev)
			}
		}
	}
}

// Close ends every subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	subs := make([]*Subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (f *Feed) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
}

type Subscription struct {
	id     uint64
	filter Filter
	ch     chan ChangeEvent
	feed   *Feed
	done   chan struct{}
	once   sync.Once
}

// Events is closed after Unsubscribe.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.ch
}

// Unsubscribe is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.feed.remove(s.id)
		close(s.done)
		// deliver holds the read lock while sending; remove took the write lock,
		// so no send is in flight any more.
		close(s.ch)
	})
}
