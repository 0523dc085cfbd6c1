package promo

import (
	"context"
	"fmt"
	"html"

	"github.com/rs/zerolog"

	"eshop-prices-bot/internal/domain"
	"eshop-prices-bot/internal/infra/metrics"
	"eshop-prices-bot/internal/usecase/pricecache"
	"eshop-prices-bot/internal/usecase/sessions"
)

// Sender отправляет промо-сообщение в чат.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Notifier периодически обходит избранное всех чатов и уведомляет о
// действующих скидках. Гарантия: не больше одного уведомления на пару
// (чат, запись кэша) за время жизни записи; после вытеснения и
// повторной загрузки записи уведомление возможно снова.
type Notifier struct {
	source   domain.PriceSource
	cache    *pricecache.Cache
	sessions *sessions.Registry
	sender   Sender
	log      zerolog.Logger
}

// NewNotifier создаёт уведомитель.
func NewNotifier(source domain.PriceSource, cache *pricecache.Cache, registry *sessions.Registry, sender Sender, logger zerolog.Logger) *Notifier {
	return &Notifier{
		source:   source,
		cache:    cache,
		sessions: registry,
		sender:   sender,
		log:      logger,
	}
}

// Sweep обходит избранное всех известных чатов. Ошибки по отдельным
// играм логируются и не прерывают обход.
func (n *Notifier) Sweep(ctx context.Context) {
	n.log.Info().Msg("проверяем промо-акции по избранному")
	for _, session := range n.sessions.All() {
		for _, favorite := range session.Favorites {
			n.checkFavorite(ctx, session, favorite)
		}
	}
}

func (n *Notifier) checkFavorite(ctx context.Context, session domain.ChatSession, favorite string) {
	hits, err := n.source.Search(ctx, favorite, session.Currency)
	if err != nil {
		n.log.Error().Err(err).Str("favorite", favorite).Int64("chat", session.ChatID).Msg("поиск избранного не удался")
		return
	}
	if len(hits) == 0 {
		n.log.Debug().Str("favorite", favorite).Msg("избранная игра больше не находится поиском")
		return
	}

	// каноничным считается первый результат поиска
	hit := hits[0]
	prices, err := n.cache.GetOrFetch(ctx, hit.Title, func(ctx context.Context) ([]domain.PriceRow, error) {
		return n.source.PricesFromURI(ctx, hit.URI, session.Currency)
	})
	if err != nil {
		n.log.Error().Err(err).Str("title", hit.Title).Msg("не удалось получить цены для избранного")
		return
	}
	if len(prices) == 0 || !prices[0].Price.Discount {
		return
	}
	if n.cache.AlreadyInformed(hit.Title, session.ChatID) {
		return
	}

	text := promoMessage(favorite, prices[0], n.source.ListingURL(hit.URI, session.Currency))
	if err := n.sender.SendMessage(session.ChatID, text); err != nil {
		// запись не помечаем: следующий обход попробует ещё раз
		n.log.Error().Err(err).Int64("chat", session.ChatID).Str("title", hit.Title).Msg("не удалось отправить промо")
		return
	}
	n.cache.MarkInformed(hit.Title, session.ChatID)
	metrics.PromosSent.Inc()
}

func promoMessage(favorite string, row domain.PriceRow, listingURL string) string {
	return fmt.Sprintf("<strong>%s %s on eShop %s.</strong>\n\n<a href=\"%s\">Checkout worldwide pricing information.</a>",
		html.EscapeString(favorite),
		html.EscapeString(row.Price.Meta),
		html.EscapeString(row.Country),
		listingURL,
	)
}
