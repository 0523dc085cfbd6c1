package eshop

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const gamesListHTML = `<html><body>
<div class="games-list">
  <a class="games-list-item" href="/games/1-hades">
    <h5>Hades</h5>
    <span class="price-tag"> R$ 99,00 </span>
  </a>
  <a class="games-list-item" href="/games/2-celeste">
    <h5>Celeste</h5>
    <span class="price-tag"><span class="price-cut">R$ 36,00</span> R$ 9,00</span>
  </a>
</div>
</body></html>`

const pricesPageHTML = `<html><body>
<table class="prices-table">
<tbody>
  <tr>
    <td>1</td>
    <td><span class="flag">🇧🇷</span> Brazil</td>
    <td>-50%</td>
    <td><span class="price-cut">R$ 299,00</span> R$ 149,50 <span class="sale-meta">On sale until Mar. 5, 2026</span></td>
  </tr>
  <tr>
    <td>2</td>
    <td><span class="flag">🇺🇸</span> United States</td>
    <td></td>
    <td>US$ 59.99</td>
  </tr>
  <tr><td>битая строка</td></tr>
</tbody>
</table>
</body></html>`

const landingHTML = `<html><body>
<select id="currency">
  <option value="">Default</option>
  <option value="BRL">Brazilian Real</option>
  <option value="EUR">Euro</option>
</select>
</body></html>`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL, 5*time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	return client, server
}

func TestSearchParsesGamesList(t *testing.T) {
	var gotQuery url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(gamesListHTML))
	})

	hits, err := client.Search(context.Background(), "hades", "BRL")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gotQuery.Get("q") != "hades" || gotQuery.Get("currency") != "BRL" {
		t.Fatalf("неверные параметры запроса: %v", gotQuery)
	}
	if len(hits) != 2 {
		t.Fatalf("ожидали 2 результата, получили %d", len(hits))
	}
	if hits[0].Title != "Hades" || hits[0].URI != "/games/1-hades" || hits[0].BestPrice != "R$ 99,00" {
		t.Fatalf("первый результат разобран неверно: %+v", hits[0])
	}
	// у игры со скидкой лучшая цена — новая, не зачёркнутая
	if hits[1].BestPrice != "R$ 9,00" {
		t.Fatalf("ожидали цену со скидкой, получили %q", hits[1].BestPrice)
	}
}

func TestPricesFromURI(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pricesPageHTML))
	})

	rows, err := client.PricesFromURI(context.Background(), "/games/1-hades", "BRL")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ожидали 2 строки, получили %d", len(rows))
	}

	discounted := rows[0]
	if discounted.Country != "Brazil" {
		t.Fatalf("страна должна браться без флага: %q", discounted.Country)
	}
	if discounted.Price.CurrentPrice != "R$ 149,50" {
		t.Fatalf("актуальная цена без зачёркнутой и без подписи: %q", discounted.Price.CurrentPrice)
	}
	if !discounted.Price.Discount || discounted.Price.Meta != "On sale until Mar. 5, 2026" {
		t.Fatalf("скидка разобрана неверно: %+v", discounted.Price)
	}

	full := rows[1]
	if full.Country != "United States" || full.Price.CurrentPrice != "US$ 59.99" {
		t.Fatalf("строка без скидки разобрана неверно: %+v", full)
	}
	if full.Price.Discount || full.Price.Meta != "" {
		t.Fatalf("строка без скидки не должна нести скидку: %+v", full.Price)
	}
}

func TestPricesFromURIEmptyTable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>nothing here</body></html>"))
	})

	if _, err := client.PricesFromURI(context.Background(), "/games/1-hades", ""); err == nil {
		t.Fatal("ожидали ошибку для страницы без таблицы")
	}
}

func TestAvailableCurrencies(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(landingHTML))
	})

	currencies, err := client.AvailableCurrencies(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// пустой код (валюта по умолчанию) пропускается
	if len(currencies) != 2 {
		t.Fatalf("ожидали 2 валюты, получили %d", len(currencies))
	}
	if currencies[0].Code != "BRL" || currencies[0].Name != "Brazilian Real" {
		t.Fatalf("валюта разобрана неверно: %+v", currencies[0])
	}
}

func TestTopDiscountsQuery(t *testing.T) {
	var gotQuery url.Values
	var gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(gamesListHTML))
	})

	hits, err := client.TopDiscounts(context.Background(), "EUR")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gotPath != "/games/on-sale" {
		t.Fatalf("неверный путь: %s", gotPath)
	}
	if gotQuery.Get("sort_by") != "discount" || gotQuery.Get("direction") != "desc" || gotQuery.Get("currency") != "EUR" {
		t.Fatalf("неверные параметры: %v", gotQuery)
	}
	if len(hits) != 2 {
		t.Fatalf("ожидали 2 результата, получили %d", len(hits))
	}
}

func TestFetchRejectsNon200(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	if _, err := client.Search(context.Background(), "hades", ""); err == nil {
		t.Fatal("ожидали ошибку для статуса 429")
	}
	if _, err := client.AvailableCurrencies(context.Background()); err == nil {
		t.Fatal("ожидали ошибку для статуса 429")
	}
}

func TestFetchSendsBrowserUserAgent(t *testing.T) {
	var gotUA string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(landingHTML))
	})

	if _, err := client.AvailableCurrencies(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(gotUA, "Firefox") {
		t.Fatalf("сайт отвечает только браузерам, получили UA %q", gotUA)
	}
}

func TestListingURL(t *testing.T) {
	client, err := NewClient("https://eshop-prices.com", 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	got := client.ListingURL("/games/1-hades", "BRL")
	if got != "https://eshop-prices.com/games/1-hades?currency=BRL" {
		t.Fatalf("неверная ссылка: %s", got)
	}
	if got := client.ListingURL("/games/1-hades", ""); got != "https://eshop-prices.com/games/1-hades" {
		t.Fatalf("без валюты параметр не добавляется: %s", got)
	}
}

func TestDiscountsURL(t *testing.T) {
	client, err := NewClient("https://eshop-prices.com", 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	got := client.DiscountsURL("EUR")
	parsed, err := url.Parse(got)
	if err != nil {
		t.Fatalf("ссылка не разбирается: %v", err)
	}
	if parsed.Path != "/games/on-sale" {
		t.Fatalf("неверный путь: %s", parsed.Path)
	}
	q := parsed.Query()
	if q.Get("sort_by") != "discount" || q.Get("direction") != "desc" || q.Get("currency") != "EUR" {
		t.Fatalf("неверные параметры: %v", q)
	}
}
