package customers

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

type Service struct {
	storage Storage
}

func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

// LinkTelegram stores the chat a customer shared their contact from.
func (s *Service) LinkTelegram(ctx context.Context, phone string, chatID int64, name string) (*Customer, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, fmt.Errorf("phone is required")
	}

	customer := Customer{
		Phone:          phone,
		TelegramChatID: &chatID,
	}
	if name = strings.TrimSpace(name); name != "" {
		customer.Name = &name
	}

	return s.storage.UpsertCustomer(ctx, customer)
}

func (s *Service) GetCustomer(ctx context.Context, phone string) (*Customer, error) {
	return s.storage.GetCustomer(ctx, NormalizePhone(phone))
}

// NormalizePhone keeps a leading plus and the digits, dropping separators.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	var b strings.Builder
	b.Grow(len(phone))
	for i, r := range phone {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}

	if b.String() == "+" {
		return ""
	}
	return b.String()
}
