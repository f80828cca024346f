package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"queue-bot/internal/stories/companies"
	"queue-bot/internal/stories/orders"
)

const (
	resultSent    = "sent"
	resultFailed  = "failed"
	resultSkipped = "skipped"
)

// Service turns transition side effects into customer messages. Delivery is best
// effort: failures are logged and counted, never returned.
type Service struct {
	sms       SMSSender
	telegram  TelegramSender
	customers CustomerLookup
	storage   Storage
	localizer Localizer
	metrics   Metrics
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewService(
	sms SMSSender,
	telegram TelegramSender,
	customers CustomerLookup,
	storage Storage,
	localizer Localizer,
	metrics Metrics,
	timeout time.Duration,
	now func() time.Time,
	logger *slog.Logger,
) *Service {
	return &Service{
		sms:       sms,
		telegram:  telegram,
		customers: customers,
		storage:   storage,
		localizer: localizer,
		metrics:   metrics,
		timeout:   timeout,
		now:       now,
		logger:    logger,
	}
}

// Dispatch sends one message per notify effect.
func (s *Service) Dispatch(ctx context.Context, order *orders.Order, company *companies.Company, effects []orders.SideEffect) {
	for _, effect := range effects {
		if effect.Kind != orders.EffectNotify {
			continue
		}

		key := TemplateKey(effect)
		if key == "" {
			continue
		}

		text := s.localizer.Get(company.Language, key, map[string]interface{}{
			"company":    company.Name,
			"ticket":     order.TicketCode,
			"order_type": s.localizer.Get(company.Language, "order_type."+string(order.OrderType), nil),
		})

		s.sendSMS(ctx, order, company, text)
		s.sendTelegram(ctx, order, company, text)
	}
}

// TemplateKey picks the message for an effect; empty means nothing to say.
func TemplateKey(effect orders.SideEffect) string {
	switch effect.TemplateKey {
	case orders.StatusPreparing:
		return "notify.preparing"
	case orders.StatusReady:
		if effect.OrderType == orders.OrderTypeDelivery {
			return "notify.ready_delivery"
		}
		return "notify.ready_pickup"
	case orders.StatusDelivered:
		return "notify.delivered"
	case orders.StatusCancelled:
		if effect.CancelledBy != nil && *effect.CancelledBy == orders.ActorAdmin {
			return "notify.cancelled_admin"
		}
		return ""
	default:
		return ""
	}
}

func (s *Service) sendSMS(ctx context.Context, order *orders.Order, company *companies.Company, text string) {
	if s.sms == nil {
		s.metrics.ObserveNotification(string(ChannelSMS), resultSkipped)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.sms.SendSMS(ctx, order.Phone, text)
	if err != nil {
		s.metrics.ObserveNotification(string(ChannelSMS), resultFailed)
		s.logger.Error("Failed to send SMS",
			"order_id", order.ID,
			"company_id", company.ID,
			"error", err)
		return
	}
	s.metrics.ObserveNotification(string(ChannelSMS), resultSent)

	cost := decimal.Zero
	if result != nil {
		cost = result.Cost
	}

	s.appendLog(ctx, order, company, ChannelSMS, order.Phone, text, cost)
}

// appendLog records a delivered message; a failed write is only logged.
func (s *Service) appendLog(
	ctx context.Context,
	order *orders.Order,
	company *companies.Company,
	channel Channel,
	recipient, text string,
	cost decimal.Decimal,
) {
	orderID := order.ID
	if _, err := s.storage.AppendSMSLog(ctx, SMSLog{
		CompanyID: company.ID,
		OrderID:   &orderID,
		Recipient: recipient,
		Channel:   channel,
		Message:   text,
		Cost:      cost,
		CreatedAt: s.now(),
	}); err != nil {
		s.logger.Error("Failed to store message log", "order_id", order.ID, "channel", channel, "error", err)
	}
}

func (s *Service) sendTelegram(ctx context.Context, order *orders.Order, company *companies.Company, text string) {
	if s.telegram == nil || s.customers == nil {
		return
	}

	customer, err := s.customers.GetCustomer(ctx, order.Phone)
	if err != nil {
		s.logger.Warn("Failed to look up customer", "order_id", order.ID, "error", err)
		return
	}
	if customer == nil || customer.TelegramChatID == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.telegram.SendMessage(ctx, *customer.TelegramChatID, text); err != nil {
		s.metrics.ObserveNotification(string(ChannelTelegram), resultFailed)
		s.logger.Error("Failed to send Telegram message",
			"order_id", order.ID,
			"chat_id", *customer.TelegramChatID,
			"error", err)
		return
	}
	s.metrics.ObserveNotification(string(ChannelTelegram), resultSent)

	// Telegram is free; the entry keeps the delivery history complete.
	s.appendLog(ctx, order, company, ChannelTelegram, strconv.FormatInt(*customer.TelegramChatID, 10), text, decimal.Zero)
}

// ListLogs returns the most recent SMS log entries of a company.
func (s *Service) ListLogs(ctx context.Context, companyID string, limit, offset int) ([]*SMSLog, error) {
	logs, err := s.storage.ListSMSLogs(ctx, ListLogsCriteria{
		CompanyID: &companyID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list sms logs: %w", err)
	}
	return logs, nil
}

// PurgeLogs drops log entries older than retention.
func (s *Service) PurgeLogs(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.storage.DeleteSMSLogsBefore(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("delete sms logs: %w", err)
	}
	return n, nil
}
