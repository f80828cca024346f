package environment

import (
	"context"
	"log/slog"

	"queue-bot/internal/config"
	"queue-bot/internal/infra/smsgateway"
	"queue-bot/internal/infra/sqlite3"
	"queue-bot/internal/infra/telegram"

	"github.com/pkg/errors"
)

type Clients struct {
	SQLiteDB    *sqlite3.DB
	TelegramBot *telegram.Client
	SMSGateway  *smsgateway.Client
}

func newClients(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Clients, error) {
	sqliteDB, err := provideSQLiteDB(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite")
	}

	telegramBot, err := provideTelegramBot(cfg, logger)
	if err != nil {
		_ = sqliteDB.Close()
		return nil, errors.Wrap(err, "telegram")
	}

	return &Clients{
		SQLiteDB:    sqliteDB,
		TelegramBot: telegramBot,
		SMSGateway:  provideSMSGateway(cfg, logger),
	}, nil
}

func provideSQLiteDB(ctx context.Context, cfg config.Config) (*sqlite3.DB, error) {
	opts := []sqlite3.Option{
		sqlite3.WithDSN(cfg.DB.Path),
		sqlite3.WithMaxOpenConns(cfg.DB.MaxOpenConns),
		sqlite3.WithMaxIdleConns(cfg.DB.MaxIdleConns),
		sqlite3.WithConnMaxLifetime(cfg.DB.MaxLifetime),
		sqlite3.WithBusyTimeout(cfg.DB.BusyTimeout),
	}

	return sqlite3.New(ctx, opts...)
}

func provideTelegramBot(cfg config.Config, logger *slog.Logger) (*telegram.Client, error) {
	// Без токена уведомления идут только по SMS
	if !cfg.Telegram.Enabled() {
		logger.Warn("Telegram bot token is not set, telegram channel disabled")
		return nil, nil
	}

	return telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.RPS, logger.WithGroup("telegram"))
}

func provideSMSGateway(cfg config.Config, logger *slog.Logger) *smsgateway.Client {
	if !cfg.SMS.Enabled() {
		logger.Warn("SMS gateway URL is not set, sms notifications will be skipped")
		return nil
	}

	return smsgateway.NewClient(
		cfg.SMS.BaseURL,
		cfg.SMS.APIKey,
		cfg.SMS.Sender,
		cfg.SMS.Timeout,
		logger.WithGroup("sms"),
		smsgateway.WithRateLimit(cfg.SMS.RateLimit.RPS, cfg.SMS.RateLimit.Burst),
	)
}
