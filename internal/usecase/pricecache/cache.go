package pricecache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"eshop-prices-bot/internal/domain"
	"eshop-prices-bot/internal/infra/metrics"
)

// saleEndLayout соответствует подписи вида "On sale until Mar. 5, 2026".
const saleEndLayout = "Jan. 2, 2006"

const saleEndPrefix = "On sale until "

// FetchFunc загружает свежий список цен для записи кэша.
type FetchFunc func(ctx context.Context) ([]domain.PriceRow, error)

// Cache — кэш цен по каноничному названию игры. Запись живёт до
// окончания распродажи (для игр со скидкой) либо до истечения TTL.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry
	ttl     time.Duration
	log     zerolog.Logger
}

// New создаёт пустой кэш.
func New(ttl time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{
		entries: make(map[string]*domain.CacheEntry),
		ttl:     ttl,
		log:     logger,
	}
}

// Restore наполняет кэш из снапшота.
func (c *Cache) Restore(entries map[string]domain.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for title, entry := range entries {
		cp := cloneEntry(entry)
		c.entries[title] = &cp
	}
}

// Snapshot возвращает копию содержимого кэша для сохранения.
func (c *Cache) Snapshot() map[string]domain.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]domain.CacheEntry, len(c.entries))
	for title, entry := range c.entries {
		out[title] = cloneEntry(*entry)
	}
	return out
}

// GetOrFetch возвращает закэшированные цены независимо от их возраста,
// а при промахе загружает их через fetch и сохраняет с текущим временем.
func (c *Cache) GetOrFetch(ctx context.Context, title string, fetch FetchFunc) ([]domain.PriceRow, error) {
	c.mu.Lock()
	if entry, ok := c.entries[title]; ok {
		prices := append([]domain.PriceRow(nil), entry.Prices...)
		c.mu.Unlock()
		metrics.CacheHits.Inc()
		return prices, nil
	}
	c.mu.Unlock()

	metrics.CacheMisses.Inc()
	prices, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("загрузка цен для %q: %w", title, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// повторная проверка: запись могла появиться, пока шла загрузка
	if entry, ok := c.entries[title]; ok {
		return append([]domain.PriceRow(nil), entry.Prices...), nil
	}
	c.entries[title] = &domain.CacheEntry{
		Prices:    prices,
		DateAdded: time.Now(),
	}
	return append([]domain.PriceRow(nil), prices...), nil
}

// AlreadyInformed сообщает, получал ли чат уведомление по этой записи.
func (c *Cache) AlreadyInformed(title string, chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[title]
	if !ok || entry.Informed == nil {
		return false
	}
	return entry.Informed[chatID]
}

// MarkInformed запоминает, что чат уведомлён о скидке по этой записи.
func (c *Cache) MarkInformed(title string, chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[title]
	if !ok {
		return
	}
	if entry.Informed == nil {
		entry.Informed = make(map[int64]bool)
	}
	entry.Informed[chatID] = true
}

// Maintain вытесняет устаревшие записи: со скидкой — по окончании
// распродажи, без скидки — по истечении TTL. Вместе с записью
// удаляется и множество уведомлённых чатов.
func (c *Cache) Maintain() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	evicted := 0
	for title, entry := range c.entries {
		if entry.Discounted() {
			end, err := parseSaleEnd(entry.Prices[0].Price.Meta)
			if err == nil {
				if end.Before(now) {
					delete(c.entries, title)
					metrics.CacheEvictions.WithLabelValues("sale_expired").Inc()
					evicted++
					c.log.Info().Str("title", title).Msg("распродажа закончилась, запись вытеснена")
				}
				continue
			}
			c.log.Debug().Str("title", title).Str("meta", entry.Prices[0].Price.Meta).
				Msg("не удалось разобрать дату окончания распродажи, применяем TTL")
		}
		if now.Sub(entry.DateAdded) > c.ttl {
			delete(c.entries, title)
			metrics.CacheEvictions.WithLabelValues("expired").Inc()
			evicted++
		}
	}
	return evicted
}

// Len возвращает количество записей в кэше.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func parseSaleEnd(meta string) (time.Time, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(meta), saleEndPrefix))
	if raw == "" {
		return time.Time{}, fmt.Errorf("пустая подпись распродажи")
	}
	return time.Parse(saleEndLayout, raw)
}

func cloneEntry(entry domain.CacheEntry) domain.CacheEntry {
	cp := entry
	cp.Prices = append([]domain.PriceRow(nil), entry.Prices...)
	if entry.Informed != nil {
		cp.Informed = make(map[int64]bool, len(entry.Informed))
		for chatID, informed := range entry.Informed {
			cp.Informed[chatID] = informed
		}
	}
	return cp
}
