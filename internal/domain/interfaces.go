package domain

import "context"

// PriceSource отвечает за получение данных с eshop-prices.com.
// Порядок результатов поиска значим: первый считается каноничным.
type PriceSource interface {
	Search(ctx context.Context, query, currency string) ([]SearchHit, error)
	PricesFromURI(ctx context.Context, uri, currency string) ([]PriceRow, error)
	TopDiscounts(ctx context.Context, currency string) ([]SearchHit, error)
	AvailableCurrencies(ctx context.Context) ([]Currency, error)
	// ListingURL строит абсолютную ссылку на страницу игры.
	ListingURL(uri, currency string) string
	// DiscountsURL строит ссылку на полный список скидок.
	DiscountsURL(currency string) string
}

// StateStore сохраняет и восстанавливает снапшот состояния.
// Load возвращает нулевой снапшот, если состояние ещё не сохранялось.
type StateStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}
