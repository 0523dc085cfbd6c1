package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"eshop-prices-bot/internal/domain"
	"eshop-prices-bot/internal/infra/metrics"
	"eshop-prices-bot/internal/usecase/pricecache"
	"eshop-prices-bot/internal/usecase/sessions"
)

// Messenger — исходящие действия бота. Send возвращает идентификатор
// отправленного сообщения: он нужен для привязки клавиатур уточнения.
type Messenger interface {
	Send(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (int, error)
	Edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error
	SendTyping(chatID int64) error
	AckCallback(callbackID string) error
}

// Handler разбирает команды и callback-и и превращает их в ответы.
// Каждый входящий апдейт порождает не более одного итогового ответа:
// новое сообщение либо правку сообщения с клавиатурой.
type Handler struct {
	msg      Messenger
	source   domain.PriceSource
	cache    *pricecache.Cache
	sessions *sessions.Registry
	log      zerolog.Logger
}

// NewHandler создаёт обработчик.
func NewHandler(msg Messenger, source domain.PriceSource, cache *pricecache.Cache, registry *sessions.Registry, logger zerolog.Logger) *Handler {
	return &Handler{
		msg:      msg,
		source:   source,
		cache:    cache,
		sessions: registry,
		log:      logger,
	}
}

// HandleMessage обрабатывает входящее текстовое сообщение.
// Текст, не совпавший ни с одной командой, молча игнорируется.
func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	cmd, arg, ok := matchCommand(text)
	if !ok {
		h.log.Debug().Int64("chat", msg.Chat.ID).Msg("нераспознанный текст, пропускаем")
		return
	}
	metrics.CommandsTotal.WithLabelValues(cmd.name).Inc()
	cmd.handler(h, ctx, msg.Chat.ID, arg)
}

// HandleCallback разрешает нажатие на клавиатуру уточнения по
// сохранённому на сервере списку вариантов.
func (h *Handler) HandleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	defer func() { _ = h.msg.AckCallback(cb.ID) }()

	if cb.Message == nil || cb.Message.Chat == nil {
		h.log.Warn().Str("data", cb.Data).Msg("callback без исходного сообщения")
		return
	}
	chatID := cb.Message.Chat.ID

	option, cmdName, ok := h.resolveSelection(chatID, cb)
	if !ok {
		_, _ = h.msg.Send(chatID, staleSelectionMessage, nil)
		return
	}

	switch cmdName {
	case "/prices", "/search":
		h.showPricesForOption(ctx, chatID, cb.Message.MessageID, option)
	case "/addfavorite":
		h.sessions.AddFavorite(chatID, option.Title)
		_ = h.msg.Edit(chatID, cb.Message.MessageID, favoriteAddedMessage(option.Title), nil)
	case "/removefavorite":
		if !h.sessions.RemoveFavorite(chatID, option.Title) {
			h.log.Error().Int64("chat", chatID).Str("title", option.Title).
				Msg("игры нет в избранном, удалять нечего")
			_ = h.msg.Edit(chatID, cb.Message.MessageID, favoriteMissingMessage(option.Title), nil)
			return
		}
		_ = h.msg.Edit(chatID, cb.Message.MessageID, favoriteRemovedMessage(option.Title), nil)
	default:
		h.log.Warn().Int64("chat", chatID).Str("command", cmdName).Msg("callback с неизвестной командой")
		_, _ = h.msg.Send(chatID, staleSelectionMessage, nil)
	}
}

// resolveSelection валидирует callback и возвращает выбранный вариант.
// Любое расхождение с сохранённой клавиатурой — повреждённый callback.
func (h *Handler) resolveSelection(chatID int64, cb *tgbotapi.CallbackQuery) (sessions.Option, string, bool) {
	fields := strings.SplitN(cb.Data, " ", 2)
	if len(fields) != 2 {
		h.log.Warn().Int64("chat", chatID).Str("data", cb.Data).Msg("повреждённый callback: нет индекса")
		return sessions.Option{}, "", false
	}
	cmdName := fields[0]
	index, err := strconv.Atoi(fields[1])
	if err != nil {
		h.log.Warn().Int64("chat", chatID).Str("data", cb.Data).Msg("повреждённый callback: индекс не число")
		return sessions.Option{}, "", false
	}

	pending, ok := h.sessions.Pending(chatID)
	if !ok {
		h.log.Warn().Int64("chat", chatID).Str("data", cb.Data).Msg("callback без активной клавиатуры")
		return sessions.Option{}, "", false
	}
	if pending.Command != cmdName || pending.MessageID != cb.Message.MessageID {
		h.log.Warn().Int64("chat", chatID).Str("data", cb.Data).
			Int("message", cb.Message.MessageID).Msg("callback от устаревшей клавиатуры")
		return sessions.Option{}, "", false
	}
	if index < 0 || index >= len(pending.Options) {
		h.log.Warn().Int64("chat", chatID).Int("index", index).Msg("повреждённый callback: индекс вне диапазона")
		return sessions.Option{}, "", false
	}
	return pending.Options[index], cmdName, true
}

func (h *Handler) cmdHelp(ctx context.Context, chatID int64, arg string) {
	_, _ = h.msg.Send(chatID, helpMessage, nil)
}

func (h *Handler) cmdSearch(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		_, _ = h.msg.Send(chatID, missingArgumentMessage("/search"), nil)
		return
	}
	_ = h.msg.SendTyping(chatID)

	hits, err := h.source.Search(ctx, arg, h.sessions.Currency(chatID))
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Str("query", arg).Msg("поиск не удался")
		return
	}
	switch len(hits) {
	case 0:
		_, _ = h.msg.Send(chatID, noMatchMessage(arg), nil)
	case 1:
		_, _ = h.msg.Send(chatID, searchResultsMessage(arg, hits), nil)
	default:
		h.sendDisambiguation(chatID, "/search", arg, hits)
	}
}

func (h *Handler) cmdPrices(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		h.sendFavoritePricesKeyboard(chatID)
		return
	}
	_ = h.msg.SendTyping(chatID)

	hits, err := h.source.Search(ctx, arg, h.sessions.Currency(chatID))
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Str("query", arg).Msg("поиск не удался")
		return
	}
	switch len(hits) {
	case 0:
		_, _ = h.msg.Send(chatID, noMatchMessage(arg), nil)
	case 1:
		h.sendPrices(ctx, chatID, hits[0].Title, hits[0].URI)
	default:
		h.sendDisambiguation(chatID, "/prices", arg, hits)
	}
}

// sendFavoritePricesKeyboard показывает избранное как клавиатуру
// вместо ошибки об отсутствующем аргументе.
func (h *Handler) sendFavoritePricesKeyboard(chatID int64) {
	favorites := h.sessions.Favorites(chatID)
	if len(favorites) == 0 {
		_, _ = h.msg.Send(chatID, missingArgumentMessage("/prices"), nil)
		return
	}
	h.sendFavoritesKeyboard(chatID, "/prices", favoritePricesPrompt(), favorites)
}

func (h *Handler) cmdCurrency(ctx context.Context, chatID int64, arg string) {
	if arg != "" {
		h.sessions.SetCurrency(chatID, arg)
		_, _ = h.msg.Send(chatID, currencySetMessage(arg), nil)
		return
	}
	_ = h.msg.SendTyping(chatID)

	currencies, err := h.source.AvailableCurrencies(ctx)
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось получить список валют")
		return
	}
	_, _ = h.msg.Send(chatID, currenciesMessage(currencies), nil)
}

func (h *Handler) cmdTopDiscounts(ctx context.Context, chatID int64, arg string) {
	_ = h.msg.SendTyping(chatID)

	currency := h.sessions.Currency(chatID)
	hits, err := h.source.TopDiscounts(ctx, currency)
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось получить топ скидок")
		return
	}
	_, _ = h.msg.Send(chatID, topDiscountsMessage(hits, h.source.DiscountsURL(currency)), nil)
}

func (h *Handler) cmdAddFavorite(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		_, _ = h.msg.Send(chatID, "You must give a game name to add as favorite (ex.: <code>/addfavorite The Legend of Zelda</code>)", nil)
		return
	}
	_ = h.msg.SendTyping(chatID)

	hits, err := h.source.Search(ctx, arg, h.sessions.Currency(chatID))
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Str("query", arg).Msg("поиск не удался")
		return
	}
	switch len(hits) {
	case 0:
		_, _ = h.msg.Send(chatID, noMatchMessage(arg), nil)
	case 1:
		h.sessions.AddFavorite(chatID, hits[0].Title)
		_, _ = h.msg.Send(chatID, favoriteAddedMessage(hits[0].Title), nil)
	default:
		h.sendDisambiguation(chatID, "/addfavorite", arg, hits)
	}
}

func (h *Handler) cmdMyFavorites(ctx context.Context, chatID int64, arg string) {
	_, _ = h.msg.Send(chatID, favoritesMessage(h.sessions.Favorites(chatID)), nil)
}

func (h *Handler) cmdRemoveFavorite(ctx context.Context, chatID int64, arg string) {
	favorites := h.sessions.Favorites(chatID)
	if len(favorites) == 0 {
		_, _ = h.msg.Send(chatID, "You have no favorited games to remove.", nil)
		return
	}
	h.sendFavoritesKeyboard(chatID, "/removefavorite", removeFavoritePrompt(), favorites)
}

// sendDisambiguation отправляет клавиатуру с вариантами найденных игр
// и регистрирует её как активный выбор чата. Подпись кнопки содержит
// лучшую цену, callback — только команду и индекс варианта.
func (h *Handler) sendDisambiguation(chatID int64, cmdName, query string, hits []domain.SearchHit) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(hits))
	options := make([]sessions.Option, 0, len(hits))
	for i, hit := range hits {
		label := fmt.Sprintf("%s (%s)", hit.Title, hit.BestPrice)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s %d", cmdName, i)),
		))
		options = append(options, sessions.Option{Title: hit.Title, URI: hit.URI})
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)

	messageID, err := h.msg.Send(chatID, disambiguationMessage(query), &markup)
	if err != nil {
		return
	}
	h.sessions.SetPending(chatID, sessions.PendingSelection{
		Command:   cmdName,
		MessageID: messageID,
		Options:   options,
	})
}

// sendFavoritesKeyboard строит клавиатуру по списку избранного.
// У избранного нет сохранённого URI, он восстанавливается поиском
// при нажатии.
func (h *Handler) sendFavoritesKeyboard(chatID int64, cmdName, prompt string, favorites []string) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(favorites))
	options := make([]sessions.Option, 0, len(favorites))
	for i, title := range favorites {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(title, fmt.Sprintf("%s %d", cmdName, i)),
		))
		options = append(options, sessions.Option{Title: title})
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)

	messageID, err := h.msg.Send(chatID, prompt, &markup)
	if err != nil {
		return
	}
	h.sessions.SetPending(chatID, sessions.PendingSelection{
		Command:   cmdName,
		MessageID: messageID,
		Options:   options,
	})
}

// sendPrices отвечает таблицей цен новым сообщением.
func (h *Handler) sendPrices(ctx context.Context, chatID int64, title, uri string) {
	prices, err := h.fetchPrices(ctx, chatID, title, uri)
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Str("title", title).Msg("не удалось получить цены")
		return
	}
	_, _ = h.msg.Send(chatID, pricesMessage(title, prices), nil)
}

// showPricesForOption отвечает таблицей цен правкой сообщения с
// клавиатурой. Вариант из избранного сначала разрешается поиском:
// каноничным считается первый результат.
func (h *Handler) showPricesForOption(ctx context.Context, chatID int64, messageID int, option sessions.Option) {
	title, uri := option.Title, option.URI
	if uri == "" {
		hits, err := h.source.Search(ctx, title, h.sessions.Currency(chatID))
		if err != nil {
			h.log.Error().Err(err).Int64("chat", chatID).Str("query", title).Msg("поиск не удался")
			return
		}
		if len(hits) == 0 {
			_ = h.msg.Edit(chatID, messageID, noMatchMessage(title), nil)
			return
		}
		title, uri = hits[0].Title, hits[0].URI
	}

	prices, err := h.fetchPrices(ctx, chatID, title, uri)
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Str("title", title).Msg("не удалось получить цены")
		return
	}
	_ = h.msg.Edit(chatID, messageID, pricesMessage(title, prices), nil)
}

// fetchPrices читает цены из кэша, при промахе загружая их в валюте
// сессии. Закэшированные цены переиспользуются как есть: смена валюты
// осознанно не инвалидирует кэш.
func (h *Handler) fetchPrices(ctx context.Context, chatID int64, title, uri string) ([]domain.PriceRow, error) {
	currency := h.sessions.Currency(chatID)
	return h.cache.GetOrFetch(ctx, title, func(ctx context.Context) ([]domain.PriceRow, error) {
		return h.source.PricesFromURI(ctx, uri, currency)
	})
}
