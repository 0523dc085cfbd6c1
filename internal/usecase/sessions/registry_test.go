package sessions

import (
	"testing"

	"eshop-prices-bot/internal/domain"
)

func TestLazySessionCreation(t *testing.T) {
	registry := NewRegistry()
	if got := registry.Currency(42); got != "" {
		t.Fatalf("новая сессия должна иметь пустую валюту, получили %q", got)
	}
	session := registry.Get(42)
	if session.ChatID != 42 {
		t.Fatalf("ожидали chat 42, получили %d", session.ChatID)
	}
}

func TestSetCurrency(t *testing.T) {
	registry := NewRegistry()
	registry.SetCurrency(42, "BRL")
	if got := registry.Currency(42); got != "BRL" {
		t.Fatalf("ожидали BRL, получили %q", got)
	}
	if got := registry.Currency(7); got != "" {
		t.Fatalf("валюта другого чата не должна меняться, получили %q", got)
	}
}

func TestFavoritesKeepOrderAndDuplicates(t *testing.T) {
	registry := NewRegistry()
	registry.AddFavorite(42, "Hades")
	registry.AddFavorite(42, "Celeste")
	registry.AddFavorite(42, "Hades")

	favorites := registry.Favorites(42)
	if len(favorites) != 3 {
		t.Fatalf("дубликаты допустимы, ожидали 3 записи, получили %d", len(favorites))
	}
	if favorites[0] != "Hades" || favorites[1] != "Celeste" || favorites[2] != "Hades" {
		t.Fatalf("порядок добавления должен сохраняться: %v", favorites)
	}
}

func TestRemoveFavoriteFirstOccurrence(t *testing.T) {
	registry := NewRegistry()
	registry.AddFavorite(42, "Hades")
	registry.AddFavorite(42, "Celeste")
	registry.AddFavorite(42, "Hades")

	if !registry.RemoveFavorite(42, "Hades") {
		t.Fatal("ожидали успешное удаление")
	}
	favorites := registry.Favorites(42)
	if len(favorites) != 2 || favorites[0] != "Celeste" || favorites[1] != "Hades" {
		t.Fatalf("должно уйти первое вхождение: %v", favorites)
	}

	if registry.RemoveFavorite(42, "Undertale") {
		t.Fatal("удаление отсутствующей игры должно возвращать false")
	}
}

func TestPendingReplacedNotConsumed(t *testing.T) {
	registry := NewRegistry()
	registry.SetPending(42, PendingSelection{Command: "/prices", MessageID: 10, Options: []Option{{Title: "Hades"}}})

	pending, ok := registry.Pending(42)
	if !ok || pending.MessageID != 10 {
		t.Fatalf("ожидали активную клавиатуру 10, получили %+v", pending)
	}
	// повторное чтение: выбор не расходуется
	if _, ok := registry.Pending(42); !ok {
		t.Fatal("клавиатура не должна расходоваться при чтении")
	}

	registry.SetPending(42, PendingSelection{Command: "/search", MessageID: 11})
	pending, _ = registry.Pending(42)
	if pending.Command != "/search" || pending.MessageID != 11 {
		t.Fatalf("новая клавиатура должна вытеснять старую: %+v", pending)
	}

	if _, ok := registry.Pending(7); ok {
		t.Fatal("у чата 7 нет активной клавиатуры")
	}
}

func TestRestoreSnapshotRoundTrip(t *testing.T) {
	registry := NewRegistry()
	registry.Restore(map[int64]domain.ChatSession{
		42: {Currency: "BRL", Favorites: []string{"Hades"}},
		7:  {Currency: "EUR"},
	})

	snap := registry.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("ожидали 2 сессии, получили %d", len(snap))
	}
	if snap[42].ChatID != 42 || snap[42].Currency != "BRL" {
		t.Fatalf("сессия 42 восстановлена неверно: %+v", snap[42])
	}

	// правка копии не трогает реестр
	snap[42].Favorites[0] = "Celeste"
	if registry.Favorites(42)[0] != "Hades" {
		t.Fatal("снапшот должен быть глубокой копией")
	}
}

func TestAllSortedByChatID(t *testing.T) {
	registry := NewRegistry()
	registry.AddFavorite(9, "Hades")
	registry.AddFavorite(3, "Celeste")
	registry.AddFavorite(5, "Undertale")

	all := registry.All()
	if len(all) != 3 {
		t.Fatalf("ожидали 3 сессии, получили %d", len(all))
	}
	if all[0].ChatID != 3 || all[1].ChatID != 5 || all[2].ChatID != 9 {
		t.Fatalf("сессии должны идти по возрастанию chat ID: %+v", all)
	}
}
