package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"queue-bot/internal/stories/customers"
)

// MockSMSSender - мок SMS шлюза
type MockSMSSender struct {
	mu   sync.Mutex
	Sent []string
	Err  error
}

func (m *MockSMSSender) SendSMS(_ context.Context, phone, text string) (*SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Sent = append(m.Sent, phone+"|"+text)
	return &SendResult{MessageID: fmt.Sprint(len(m.Sent)), Cost: decimal.RequireFromString("0.35")}, nil
}

// MockTelegramSender - мок Telegram клиента
type MockTelegramSender struct {
	Sent map[int64][]string
	Err  error
}

func (m *MockTelegramSender) SendMessage(_ context.Context, chatID int64, text string) error {
	if m.Err != nil {
		return m.Err
	}
	if m.Sent == nil {
		m.Sent = map[int64][]string{}
	}
	m.Sent[chatID] = append(m.Sent[chatID], text)
	return nil
}

type MockCustomers map[string]*customers.Customer

func (m MockCustomers) GetCustomer(_ context.Context, phone string) (*customers.Customer, error) {
	return m[phone], nil
}

type MockStorage struct {
	Logs      []SMSLog
	AppendErr error
}

func (m *MockStorage) AppendSMSLog(_ context.Context, entry SMSLog) (*SMSLog, error) {
	if m.AppendErr != nil {
		return nil, m.AppendErr
	}
	m.Logs = append(m.Logs, entry)
	return &entry, nil
}

func (m *MockStorage) ListSMSLogs(_ context.Context, criteria ListLogsCriteria) ([]*SMSLog, error) {
	var result []*SMSLog
	for i := range m.Logs {
		if criteria.CompanyID != nil && m.Logs[i].CompanyID != *criteria.CompanyID {
			continue
		}
		result = append(result, &m.Logs[i])
	}
	return result, nil
}

func (m *MockStorage) DeleteSMSLogsBefore(_ context.Context, before time.Time) (int64, error) {
	kept := m.Logs[:0]
	var deleted int64
	for _, l := range m.Logs {
		if l.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	m.Logs = kept
	return deleted, nil
}

// MockLocalizer renders "key:company:ticket:order_type"; order type labels are the raw type.
type MockLocalizer struct{}

func (MockLocalizer) Get(_ string, key string, params map[string]interface{}) string {
	if label, ok := strings.CutPrefix(key, "order_type."); ok {
		return label
	}
	return fmt.Sprintf("%s:%v:%v:%v", key, params["company"], params["ticket"], params["order_type"])
}

type MockMetrics struct {
	Counts map[string]int
}

func (m *MockMetrics) ObserveNotification(channel, result string) {
	if m.Counts == nil {
		m.Counts = map[string]int{}
	}
	m.Counts[channel+"/"+result]++
}

var errGatewayDown = errors.New("gateway down")
