package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"eshop-prices-bot/internal/infra/metrics"
)

// Client оборачивает Bot API: long poll апдейтов и исходящие действия.
// Ошибки отправки считаются best-effort: логируются и не повторяются.
type Client struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

// NewClient создаёт клиент поверх tgbotapi.
func NewClient(bot *tgbotapi.BotAPI, logger zerolog.Logger) *Client {
	return &Client{bot: bot, log: logger}
}

// Updates выполняет long poll начиная с указанного offset.
// Сам вызов не прерывается контекстом: отмена проверяется диспетчером
// между итерациями цикла.
func (c *Client) Updates(ctx context.Context, offset, timeoutSeconds int) ([]tgbotapi.Update, error) {
	cfg := tgbotapi.NewUpdate(offset)
	cfg.Timeout = timeoutSeconds

	start := time.Now()
	updates, err := c.bot.GetUpdates(cfg)
	metrics.ObserveNetworkRequest("telegram_bot", "get_updates", start, err)
	return updates, err
}

// Send отправляет HTML-сообщение, при необходимости разбивая его на
// части. Клавиатура прикрепляется к последней части; возвращается
// идентификатор сообщения с клавиатурой (последней части).
func (c *Client) Send(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (int, error) {
	var lastID int
	parts := SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if markup != nil && i == len(parts)-1 {
			msg.ReplyMarkup = markup
		}

		start := time.Now()
		sent, err := c.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			c.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить сообщение")
			return 0, err
		}
		lastID = sent.MessageID
	}
	return lastID, nil
}

// SendMessage отправляет сообщение без клавиатуры.
func (c *Client) SendMessage(chatID int64, text string) error {
	_, err := c.Send(chatID, text, nil)
	return err
}

// Edit заменяет текст сообщения, к которому была привязана клавиатура.
// Редактирование не разбивается на части, слишком длинный текст
// обрезается по лимиту Telegram.
func (c *Client) Edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	parts := SplitMessage(text)
	if len(parts) == 0 {
		return nil
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, parts[0])
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	if markup != nil {
		edit.ReplyMarkup = markup
	}

	start := time.Now()
	_, err := c.bot.Send(edit)
	metrics.ObserveNetworkRequest("telegram_bot", "edit_message", start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
		c.log.Error().Err(err).Int64("chat", chatID).Int("message", messageID).Msg("не удалось отредактировать сообщение")
	}
	return err
}

// SendTyping показывает индикатор набора текста.
func (c *Client) SendTyping(chatID int64) error {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)

	start := time.Now()
	_, err := c.bot.Request(action)
	metrics.ObserveNetworkRequest("telegram_bot", "send_action", start, err)
	if err != nil {
		c.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить chat action")
	}
	return err
}

// AckCallback подтверждает обработку callback query.
func (c *Client) AckCallback(callbackID string) error {
	start := time.Now()
	_, err := c.bot.Request(tgbotapi.NewCallback(callbackID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", start, err)
	if err != nil {
		c.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
	return err
}
