package healthcheck

import "context"

type (
	// Check probes one dependency; a nil error means healthy.
	Check struct {
		Name string
		Ping func(ctx context.Context) error
	}

	TelegramNotifier interface {
		SendMessage(ctx context.Context, chatID int64, text string) error
	}
)
