package customers

import "time"

// Customer is identified by phone number only.
type Customer struct {
	Phone          string
	Name           *string
	TelegramChatID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
