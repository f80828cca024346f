package environment

import (
	"context"
	"log/slog"
	"os"
	"time"

	"queue-bot/internal/api"
	"queue-bot/internal/config"
	"queue-bot/internal/infra/rabbitmq"
	"queue-bot/internal/localization"
	"queue-bot/internal/metrics"
	"queue-bot/internal/realtime"
	"queue-bot/internal/storage"
	"queue-bot/internal/stories/companies"
	"queue-bot/internal/stories/customers"
	"queue-bot/internal/stories/notify"
	"queue-bot/internal/stories/orders"
	"queue-bot/internal/stories/presence"
	"queue-bot/internal/stories/products"
	"queue-bot/internal/telegram"
	"queue-bot/internal/workers"
	"queue-bot/internal/workers/healthcheck"
	"queue-bot/internal/workers/smslogretention"
	"queue-bot/internal/workers/stalecarts"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type Services struct {
	Feed           *storage.Feed
	Orders         *orders.Service
	Companies      *companies.Service
	Products       *products.Service
	Customers      *customers.Service
	Notifier       *notify.Service
	API            *api.Handler
	TelegramRouter *telegram.Router
	Bridge         *rabbitmq.Bridge
	Health         *healthcheck.Worker
	Workers        *workers.Manager
}

func newServices(_ context.Context, clients *Clients, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	var s Services

	m := metrics.New(prometheus.DefaultRegisterer)

	// Лента изменений: локальные подписчики + (опционально) брокер
	s.Feed = storage.NewFeed(cfg.Queue.FeedBuffer, logger.WithGroup("feed"))
	s.Feed.OnDrop(func(storage.ChangeEvent) { m.ObserveDroppedEvent() })
	storageImpl := storage.New(clients.SQLiteDB.DB, s.Feed)

	localizer, err := localization.NewService(cfg.Queue.Language)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create localizer")
	}

	s.Companies = companies.NewService(storageImpl)
	s.Products = products.NewService(storageImpl)
	s.Customers = customers.NewService(storageImpl)

	// nil-интерфейсы, а не типизированные nil-указатели: каналы без клиента пропускаются
	var smsSender notify.SMSSender
	if clients.SMSGateway != nil {
		smsSender = clients.SMSGateway
	}
	var telegramSender notify.TelegramSender
	if clients.TelegramBot != nil {
		telegramSender = clients.TelegramBot
	}

	s.Notifier = notify.NewService(
		smsSender,
		telegramSender,
		s.Customers,
		storageImpl,
		localizer,
		m,
		cfg.Queue.NotifyTimeout,
		time.Now,
		logger.WithGroup("notify"),
	)

	var ticketOpts []orders.TicketOption
	if cfg.Queue.TicketCollisionCheck {
		ticketOpts = append(ticketOpts, orders.WithCollisionCheck(cfg.Queue.TicketAttempts))
	}

	s.Orders = orders.NewService(
		storageImpl,
		s.Companies,
		s.Products,
		presence.NewService(cfg.Queue.GeofenceMeters, cfg.Queue.GeolocationTimeout, logger.WithGroup("presence")),
		orders.NewTicketAllocator(storageImpl, logger, ticketOpts...),
		s.Notifier,
		m,
		time.Now,
		logger.WithGroup("orders"),
	)

	newView := func(echo realtime.Echo) api.QueueView {
		return realtime.New(storageImpl, echo, m, cfg.Queue.SubscribeTimeout, logger.WithGroup("realtime"))
	}
	s.API = api.NewHandler(
		s.Orders,
		s.Companies,
		s.Products,
		s.Notifier,
		newView,
		logger.WithGroup("api"),
		api.WithTimerTick(cfg.Queue.TimerTick),
		api.WithQueuePoll(cfg.Queue.QueuePoll),
	)

	if clients.TelegramBot != nil {
		s.TelegramRouter = telegram.NewRouter(
			clients.TelegramBot,
			s.Customers,
			localizer,
			cfg.Queue.Language,
			logger.WithGroup("telegram"),
		)
	}

	checks := []healthcheck.Check{{Name: "sqlite", Ping: clients.SQLiteDB.Ping}}

	if cfg.RabbitMQ.Enabled {
		bridge, err := rabbitmq.Connect(
			cfg.RabbitMQ.URL,
			cfg.RabbitMQ.Exchange,
			origin(cfg.RabbitMQ.Origin),
			cfg.RabbitMQ.Buffer,
			s.Feed,
			logger.WithGroup("rabbitmq"),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect rabbitmq bridge")
		}
		s.Feed.AddSink(bridge.Sink)
		s.Bridge = bridge
		checks = append(checks, healthcheck.Check{Name: "rabbitmq", Ping: bridge.Ping})
	}

	var adminNotifier healthcheck.TelegramNotifier
	if clients.TelegramBot != nil {
		adminNotifier = clients.TelegramBot
	}
	s.Health = healthcheck.NewWorker(checks, adminNotifier, cfg.Telegram.AdminIDs, cfg.HealthCheck.Interval, logger.WithGroup("healthcheck"))

	background := []workers.Worker{
		s.Health,
		stalecarts.NewWorker(s.Orders, m, cfg.Queue.StaleCartSchedule, cfg.Queue.StaleCartTTL, logger.WithGroup("stalecarts")),
		smslogretention.NewWorker(s.Notifier, m, cfg.Queue.SMSLogSchedule, cfg.Queue.SMSLogRetention, logger.WithGroup("smslogretention")),
	}
	if s.Bridge != nil {
		background = append(background, s.Bridge)
	}
	s.Workers = workers.NewManager(logger.WithGroup("workers"), background...)

	return &s, nil
}

func origin(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil {
		return "queue-bot"
	}
	return host
}
