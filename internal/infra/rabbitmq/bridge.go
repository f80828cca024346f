package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"queue-bot/internal/storage"
)

const publishTimeout = 5 * time.Second

// Injector receives change events published by other instances.
type Injector interface {
	Inject(ev storage.ChangeEvent)
}

// Bridge mirrors the local change feed over a fanout exchange so every instance
// sees every committed write. Each instance consumes from its own exclusive queue
// and skips events it published itself.
type Bridge struct {
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	subCh    *amqp.Channel
	queue    string
	exchange string
	origin   string
	injector Injector
	logger   *slog.Logger

	out    chan storage.ChangeEvent
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func Connect(url, exchange, origin string, buffer int, injector Injector, logger *slog.Logger) (*Bridge, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	subCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open consume channel: %w", err)
	}

	err = pubCh.ExchangeDeclare(
		exchange, // name
		"fanout", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := subCh.QueueDeclare(
		"",    // name, server generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	err = subCh.QueueBind(
		q.Name,   // queue name
		"",       // routing key
		exchange, // exchange
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	if buffer <= 0 {
		buffer = 256
	}

	return &Bridge{
		conn:     conn,
		pubCh:    pubCh,
		subCh:    subCh,
		queue:    q.Name,
		exchange: exchange,
		origin:   origin,
		injector: injector,
		logger:   logger,
		out:      make(chan storage.ChangeEvent, buffer),
		stopCh:   make(chan struct{}),
	}, nil
}

// Ping fails once the broker connection is gone.
func (b *Bridge) Ping(_ context.Context) error {
	if b.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

func (b *Bridge) Name() string {
	return "rabbitmq-bridge"
}

// Sink queues a local event for publishing. It never blocks the writer.
func (b *Bridge) Sink(ev storage.ChangeEvent) {
	if ev.Origin == "" {
		ev.Origin = b.origin
	}
	select {
	case b.out <- ev:
	default:
		b.logger.Warn("Change event not forwarded, publish buffer is full",
			"table", ev.Table,
			"event_type", ev.Type)
	}
}

func (b *Bridge) Start() error {
	msgs, err := b.subCh.Consume(
		b.queue,  // queue
		b.origin, // consumer
		true,     // auto-ack
		true,     // exclusive
		false,    // no-local
		false,    // no-wait
		nil,      // args
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	b.wg.Add(2)
	go b.publishLoop()
	go b.consumeLoop(msgs)

	b.logger.Info("RabbitMQ bridge started", "exchange", b.exchange, "origin", b.origin)
	return nil
}

func (b *Bridge) Stop() {
	close(b.stopCh)
	_ = b.subCh.Cancel(b.origin, false)
	b.wg.Wait()
	if err := b.conn.Close(); err != nil {
		b.logger.Warn("Failed to close RabbitMQ connection", "error", err)
	}
	b.logger.Info("RabbitMQ bridge stopped")
}

func (b *Bridge) publishLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.stopCh:
			return
		case ev := <-b.out:
			if err := b.publish(ev); err != nil {
				b.logger.Error("Failed to publish change event",
					"table", ev.Table,
					"event_type", ev.Type,
					"error", err)
			}
		}
	}
}

func (b *Bridge) publish(ev storage.ChangeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return b.pubCh.PublishWithContext(ctx,
		b.exchange, // exchange
		"",         // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   ev.At,
			AppId:       b.origin,
		})
}

func (b *Bridge) consumeLoop(msgs <-chan amqp.Delivery) {
	defer b.wg.Done()

	for {
		select {
		case <-b.stopCh:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			b.handle(msg.Body)
		}
	}
}

func (b *Bridge) handle(body []byte) {
	ev, err := Decode(body)
	if err != nil {
		b.logger.Warn("Dropping malformed change event", "error", err)
		return
	}
	if ev.Origin == b.origin {
		return
	}
	b.injector.Inject(ev)
}

// Decode parses a broker message into a change event.
func Decode(body []byte) (storage.ChangeEvent, error) {
	var ev storage.ChangeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return storage.ChangeEvent{}, fmt.Errorf("unmarshal change event: %w", err)
	}
	if ev.Table == "" || ev.Type == "" {
		return storage.ChangeEvent{}, fmt.Errorf("change event without table or type")
	}
	return ev, nil
}
