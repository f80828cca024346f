package notify

import (
	"context"
	"time"

	"queue-bot/internal/stories/customers"
)

type (
	// SMSSender is the paid gateway; a nil sender disables SMS.
	SMSSender interface {
		SendSMS(ctx context.Context, phone, text string) (*SendResult, error)
	}

	// TelegramSender reaches customers who linked their phone in the bot.
	TelegramSender interface {
		SendMessage(ctx context.Context, chatID int64, text string) error
	}

	CustomerLookup interface {
		GetCustomer(ctx context.Context, phone string) (*customers.Customer, error)
	}

	// Storage provides database operations for the message log
	Storage interface {
		AppendSMSLog(ctx context.Context, entry SMSLog) (*SMSLog, error)
		ListSMSLogs(ctx context.Context, criteria ListLogsCriteria) ([]*SMSLog, error)
		DeleteSMSLogsBefore(ctx context.Context, before time.Time) (int64, error)
	}

	Localizer interface {
		Get(lang, key string, params map[string]interface{}) string
	}

	Metrics interface {
		ObserveNotification(channel, result string)
	}
)
