package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

type Client struct {
	api     *tgbotapi.BotAPI
	logger  *slog.Logger
	limiter *rate.Limiter
	updates tgbotapi.UpdatesChannel
	cancel  context.CancelFunc
}

func NewClient(token string, rps float64, logger *slog.Logger) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("создание telegram бота: %w", err)
	}

	if rps <= 0 {
		// Лимит Telegram - 30 сообщений в секунду
		rps = 30
	}

	return &Client{
		api:     bot,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

// Start начинает получение обновлений (long polling)
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	c.updates = c.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		c.api.StopReceivingUpdates()
	}()

	c.logger.Info("Telegram бот запущен", "username", c.api.Self.UserName)
}

// Stop останавливает получение обновлений
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.logger.Info("Telegram бот остановлен")
}

// Updates возвращает канал с обновлениями
func (c *Client) Updates() tgbotapi.UpdatesChannel {
	return c.updates
}

// SendMessage отправляет сообщение с rate limiting
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := c.Send(ctx, tgbotapi.NewMessage(chatID, text))
	return err
}

// RequestContact показывает кнопку "поделиться номером"
func (c *Client) RequestContact(ctx context.Context, chatID int64, text, button string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonContact(button)),
	)
	keyboard.OneTimeKeyboard = true
	keyboard.ResizeKeyboard = true
	msg.ReplyMarkup = keyboard

	_, err := c.Send(ctx, msg)
	return err
}

// RemoveKeyboard отправляет сообщение и убирает клавиатуру
func (c *Client) RemoveKeyboard(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)

	_, err := c.Send(ctx, msg)
	return err
}

// Send отправляет любое сообщение с rate limiting
func (c *Client) Send(ctx context.Context, chattable tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, fmt.Errorf("rate limiting: %w", err)
	}

	message, err := c.api.Send(chattable)
	if err != nil {
		c.logger.Error("ошибка отправки", slog.Any("error", err))
		return tgbotapi.Message{}, fmt.Errorf("отправка: %w", err)
	}

	return message, nil
}
