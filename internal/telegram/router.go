package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"queue-bot/internal/stories/customers"
)

type (
	botApi interface {
		SendMessage(ctx context.Context, chatID int64, text string) error
		RequestContact(ctx context.Context, chatID int64, text, button string) error
		RemoveKeyboard(ctx context.Context, chatID int64, text string) error
	}

	customerService interface {
		LinkTelegram(ctx context.Context, phone string, chatID int64, name string) (*customers.Customer, error)
	}

	localizer interface {
		Get(lang, key string, params map[string]interface{}) string
	}
)

// Router links customers' phone numbers to their Telegram chats so order
// notifications can be delivered there as well as by SMS.
type Router struct {
	bot       botApi
	customers customerService
	localizer localizer
	lang      string
	logger    *slog.Logger
}

func NewRouter(bot botApi, customers customerService, localizer localizer, lang string, logger *slog.Logger) *Router {
	return &Router{
		bot:       bot,
		customers: customers,
		localizer: localizer,
		lang:      lang,
		logger:    logger,
	}
}

// Run обрабатывает обновления пока не закроется канал или не отменится ctx
func (r *Router) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := r.Route(ctx, &update); err != nil {
				r.logger.Error("Ошибка обработки обновления", slog.Any("error", err))
			}
		}
	}
}

func (r *Router) Route(ctx context.Context, update *tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}

	if msg.Contact != nil {
		return r.handleContact(ctx, msg)
	}

	// Любое другое сообщение - просим номер телефона
	return r.bot.RequestContact(ctx, msg.Chat.ID,
		r.text("telegram.share_contact_prompt", nil),
		r.text("telegram.share_contact_button", nil))
}

func (r *Router) handleContact(ctx context.Context, msg *tgbotapi.Message) error {
	// Принимаем только собственный контакт пользователя
	if msg.Contact.UserID != msg.From.ID {
		return r.bot.SendMessage(ctx, msg.Chat.ID, r.text("telegram.contact_not_own", nil))
	}

	customer, err := r.customers.LinkTelegram(ctx, msg.Contact.PhoneNumber, msg.Chat.ID, msg.Contact.FirstName)
	if err != nil {
		return err
	}

	r.logger.Info("Telegram chat linked",
		"chat_id", msg.Chat.ID,
		"phone", customer.Phone)

	return r.bot.RemoveKeyboard(ctx, msg.Chat.ID, r.text("telegram.contact_linked", map[string]interface{}{
		"phone": customer.Phone,
	}))
}

func (r *Router) text(key string, params map[string]interface{}) string {
	return r.localizer.Get(r.lang, key, params)
}
