package notify

import (
	"time"

	"github.com/shopspring/decimal"
)

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelTelegram Channel = "telegram"
)

// SMSLog records one delivered outbound message. Telegram entries cost nothing.
type SMSLog struct {
	ID        string
	CompanyID string
	OrderID   *string
	Recipient string
	Channel   Channel
	Message   string
	Cost      decimal.Decimal
	CreatedAt time.Time
}

// Критерии для списка отправленных сообщений
type ListLogsCriteria struct {
	CompanyID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// SendResult is what the SMS gateway reports for an accepted message.
type SendResult struct {
	MessageID string
	Cost      decimal.Decimal
}
