package domain

import "time"

// ChatSession хранит состояние чата между перезапусками.
type ChatSession struct {
	ChatID    int64    `json:"chat_id"`
	Currency  string   `json:"currency"`
	Favorites []string `json:"favorites"`
}

// Clone возвращает независимую копию сессии.
func (s ChatSession) Clone() ChatSession {
	cp := s
	cp.Favorites = append([]string(nil), s.Favorites...)
	return cp
}

// Price описывает цену в одном магазине eShop.
type Price struct {
	CurrentPrice string `json:"current_price"`
	Discount     bool   `json:"discount"`
	Meta         string `json:"meta"`
}

// PriceRow — строка таблицы цен: страна и цена.
// Порядок строк задаётся источником и не пересортировывается:
// нулевая строка считается репрезентативной ценой игры.
type PriceRow struct {
	Country string `json:"country"`
	Price   Price  `json:"price"`
}

// SearchHit — один результат поиска по каталогу.
type SearchHit struct {
	Title     string `json:"title"`
	BestPrice string `json:"best_price"`
	URI       string `json:"uri"`
}

// Currency — код валюты и её отображаемое имя.
type Currency struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CacheEntry — закэшированный список цен вместе с множеством уже
// уведомлённых чатов. Ключом служит каноничное название игры.
type CacheEntry struct {
	Prices    []PriceRow     `json:"prices"`
	DateAdded time.Time      `json:"date_added"`
	Informed  map[int64]bool `json:"informed_chats,omitempty"`
}

// Discounted сообщает, действует ли сейчас скидка на игру.
func (e CacheEntry) Discounted() bool {
	return len(e.Prices) > 0 && e.Prices[0].Price.Discount
}

// Snapshot — полное персистентное состояние процесса.
// Checkpoint — идентификатор последнего полностью обработанного апдейта.
type Snapshot struct {
	Checkpoint int                   `json:"checkpoint"`
	Sessions   map[int64]ChatSession `json:"sessions"`
	Cache      map[string]CacheEntry `json:"cache"`
}
