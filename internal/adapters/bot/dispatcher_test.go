package bot

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"eshop-prices-bot/internal/domain"
	"eshop-prices-bot/internal/usecase/pricecache"
	"eshop-prices-bot/internal/usecase/promo"
	"eshop-prices-bot/internal/usecase/sessions"
)

// scriptedFeed отдаёт пачки по очереди и отменяет контекст,
// когда сценарий исчерпан.
type scriptedFeed struct {
	batches [][]tgbotapi.Update
	offsets []int
	cancel  context.CancelFunc
}

func (f *scriptedFeed) Updates(_ context.Context, offset, _ int) ([]tgbotapi.Update, error) {
	f.offsets = append(f.offsets, offset)
	if len(f.batches) == 0 {
		f.cancel()
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

type memoryStore struct {
	snap  domain.Snapshot
	saves []domain.Snapshot
}

func (s *memoryStore) Load(context.Context) (domain.Snapshot, error) {
	if s.snap.Sessions == nil {
		s.snap.Sessions = map[int64]domain.ChatSession{}
	}
	if s.snap.Cache == nil {
		s.snap.Cache = map[string]domain.CacheEntry{}
	}
	return s.snap, nil
}

func (s *memoryStore) Save(_ context.Context, snap domain.Snapshot) error {
	s.saves = append(s.saves, snap)
	return nil
}

func messageUpdate(id int, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message:  textMessage(chatID, text),
	}
}

func runDispatcher(t *testing.T, feed *scriptedFeed, store *memoryStore, catalog *fakeCatalog) (*fakeMessenger, *sessions.Registry) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	feed.cancel = cancel

	msg := &fakeMessenger{}
	registry := sessions.NewRegistry()
	cache := pricecache.New(12*time.Hour, zerolog.Nop())
	handler := NewHandler(msg, catalog, cache, registry, zerolog.Nop())
	notifier := promo.NewNotifier(catalog, cache, registry, stubSender{}, zerolog.Nop())

	dispatcher := NewDispatcher(DispatcherOptions{
		Feed:         feed,
		Handler:      handler,
		Store:        store,
		Cache:        cache,
		Sessions:     registry,
		Notifier:     notifier,
		Log:          zerolog.Nop(),
		PollTimeout:  time.Second,
		TaskInterval: time.Hour,
	})
	if err := dispatcher.Run(ctx); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	return msg, registry
}

type stubSender struct{}

func (stubSender) SendMessage(int64, string) error { return nil }

func TestDispatcherAdvancesCheckpoint(t *testing.T) {
	feed := &scriptedFeed{batches: [][]tgbotapi.Update{
		{messageUpdate(101, 42, "/help"), messageUpdate(102, 42, "/myfavorites")},
	}}
	store := &memoryStore{}

	msg, _ := runDispatcher(t, feed, store, defaultCatalog())

	if len(msg.sent) != 2 {
		t.Fatalf("ожидали обработку обоих апдейтов, получили %d ответов", len(msg.sent))
	}
	if len(store.saves) == 0 {
		t.Fatal("после пачки должен сохраняться снапшот")
	}
	last := store.saves[len(store.saves)-1]
	if last.Checkpoint != 102 {
		t.Fatalf("чекпоинт должен указывать на последний апдейт, получили %d", last.Checkpoint)
	}
}

func TestDispatcherStartsFromCheckpointPlusOne(t *testing.T) {
	feed := &scriptedFeed{}
	store := &memoryStore{snap: domain.Snapshot{Checkpoint: 500}}

	runDispatcher(t, feed, store, defaultCatalog())

	if len(feed.offsets) == 0 || feed.offsets[0] != 501 {
		t.Fatalf("опрос должен начинаться с чекпоинт+1, получили %v", feed.offsets)
	}
}

func TestDispatcherFreshStartPollsFromZero(t *testing.T) {
	feed := &scriptedFeed{}
	store := &memoryStore{}

	runDispatcher(t, feed, store, defaultCatalog())

	if len(feed.offsets) == 0 || feed.offsets[0] != 0 {
		t.Fatalf("без чекпоинта опрос начинается с нуля, получили %v", feed.offsets)
	}
}

func TestDispatcherSkipsUnrecognizedUpdates(t *testing.T) {
	feed := &scriptedFeed{batches: [][]tgbotapi.Update{
		{{UpdateID: 201}, messageUpdate(202, 42, "/help")},
	}}
	store := &memoryStore{}

	msg, _ := runDispatcher(t, feed, store, defaultCatalog())

	if len(msg.sent) != 1 {
		t.Fatalf("апдейт без сообщения пропускается, получили %d ответов", len(msg.sent))
	}
	last := store.saves[len(store.saves)-1]
	if last.Checkpoint != 202 {
		t.Fatalf("чекпоинт продвигается и через пропущенные апдейты, получили %d", last.Checkpoint)
	}
}

func TestDispatcherRestoresSessions(t *testing.T) {
	feed := &scriptedFeed{}
	store := &memoryStore{snap: domain.Snapshot{
		Checkpoint: 10,
		Sessions:   map[int64]domain.ChatSession{42: {Currency: "BRL", Favorites: []string{"Hades"}}},
	}}

	_, registry := runDispatcher(t, feed, store, defaultCatalog())

	if registry.Currency(42) != "BRL" {
		t.Fatalf("валюта не восстановлена: %q", registry.Currency(42))
	}
	if favorites := registry.Favorites(42); len(favorites) != 1 || favorites[0] != "Hades" {
		t.Fatalf("избранное не восстановлено: %v", favorites)
	}
}

func TestDispatcherSavesSessionsInSnapshot(t *testing.T) {
	feed := &scriptedFeed{batches: [][]tgbotapi.Update{
		{messageUpdate(301, 42, "/currency BRL")},
	}}
	store := &memoryStore{}

	runDispatcher(t, feed, store, defaultCatalog())

	last := store.saves[len(store.saves)-1]
	if last.Sessions[42].Currency != "BRL" {
		t.Fatalf("снапшот должен содержать свежую сессию: %+v", last.Sessions)
	}
}

func TestDispatcherFinalSnapshotOnShutdown(t *testing.T) {
	feed := &scriptedFeed{}
	store := &memoryStore{snap: domain.Snapshot{Checkpoint: 77}}

	runDispatcher(t, feed, store, defaultCatalog())

	if len(store.saves) == 0 {
		t.Fatal("остановка должна завершаться финальным снапшотом")
	}
	if store.saves[len(store.saves)-1].Checkpoint != 77 {
		t.Fatalf("финальный снапшот теряет чекпоинт: %d", store.saves[len(store.saves)-1].Checkpoint)
	}
}

func TestDispatcherSurvivesBrokenCallback(t *testing.T) {
	feed := &scriptedFeed{batches: [][]tgbotapi.Update{
		{{UpdateID: 401, CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb", Data: "/prices 0"}}, messageUpdate(402, 42, "/help")},
	}}
	store := &memoryStore{}

	msg, _ := runDispatcher(t, feed, store, defaultCatalog())

	// callback без исходного сообщения подтверждается и пропускается
	if len(msg.acks) != 1 {
		t.Fatalf("ожидали подтверждение callback-а, получили %d", len(msg.acks))
	}
	if len(msg.sent) != 1 {
		t.Fatalf("следующий апдейт обрабатывается после сбойного, получили %d", len(msg.sent))
	}
	if store.saves[len(store.saves)-1].Checkpoint != 402 {
		t.Fatalf("чекпоинт продвигается мимо сбойного апдейта: %d", store.saves[len(store.saves)-1].Checkpoint)
	}
}
