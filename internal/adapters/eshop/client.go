package eshop

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"eshop-prices-bot/internal/domain"
	"eshop-prices-bot/internal/infra/metrics"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:85.0) Gecko/20100101 Firefox/85.0"

// Client скрейпит eshop-prices.com.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	log     zerolog.Logger
}

var _ domain.PriceSource = (*Client)(nil)

// NewClient создаёт клиент каталога.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("разбор базового URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: timeout},
		log:     logger,
	}, nil
}

// Search ищет игры по свободному запросу. Порядок результатов
// повторяет порядок выдачи сайта.
func (c *Client) Search(ctx context.Context, query, currency string) ([]domain.SearchHit, error) {
	values := url.Values{}
	values.Set("q", query)
	values.Set("currency", currency)
	doc, err := c.fetch(ctx, "search", "games", values)
	if err != nil {
		return nil, err
	}
	return parseGamesList(doc), nil
}

// TopDiscounts возвращает игры с наибольшей скидкой.
func (c *Client) TopDiscounts(ctx context.Context, currency string) ([]domain.SearchHit, error) {
	values := url.Values{}
	values.Set("direction", "desc")
	values.Set("sort_by", "discount")
	values.Set("currency", currency)
	doc, err := c.fetch(ctx, "top_discounts", "games/on-sale", values)
	if err != nil {
		return nil, err
	}
	return parseGamesList(doc), nil
}

// PricesFromURI возвращает таблицу цен по странам со страницы игры.
func (c *Client) PricesFromURI(ctx context.Context, uri, currency string) ([]domain.PriceRow, error) {
	values := url.Values{}
	values.Set("currency", currency)
	doc, err := c.fetch(ctx, "prices", uri, values)
	if err != nil {
		return nil, err
	}

	var rows []domain.PriceRow
	doc.Find("table.prices-table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}
		country := nestedText(cells.Eq(1))
		if country == "" {
			return
		}
		priceCell := cells.Eq(3)
		meta := strings.TrimSpace(priceCell.Find(".sale-meta").Text())
		discount := priceCell.Find(".price-cut").Length() > 0 || meta != ""

		valueCell := priceCell.Clone()
		valueCell.Find(".price-cut, .sale-meta").Remove()
		current := nestedText(valueCell)
		if current == "" {
			return
		}

		rows = append(rows, domain.PriceRow{
			Country: country,
			Price: domain.Price{
				CurrentPrice: current,
				Discount:     discount,
				Meta:         meta,
			},
		})
	})
	if len(rows) == 0 {
		return nil, fmt.Errorf("eshop: таблица цен не найдена на %s", uri)
	}
	return rows, nil
}

// AvailableCurrencies разбирает селектор валют на главной странице.
func (c *Client) AvailableCurrencies(ctx context.Context) ([]domain.Currency, error) {
	doc, err := c.fetch(ctx, "currencies", "", nil)
	if err != nil {
		return nil, err
	}
	var currencies []domain.Currency
	doc.Find("select#currency option").Each(func(_ int, opt *goquery.Selection) {
		code, _ := opt.Attr("value")
		code = strings.TrimSpace(code)
		if code == "" {
			// пустой код — валюта платформы по умолчанию, в списке не показываем
			return
		}
		currencies = append(currencies, domain.Currency{
			Code: code,
			Name: strings.TrimSpace(opt.Text()),
		})
	})
	if len(currencies) == 0 {
		return nil, fmt.Errorf("eshop: селектор валют не найден")
	}
	return currencies, nil
}

// ListingURL строит абсолютную ссылку на страницу игры.
func (c *Client) ListingURL(uri, currency string) string {
	u := c.resolve(uri)
	if currency != "" {
		q := u.Query()
		q.Set("currency", currency)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// DiscountsURL строит ссылку на полный список скидок.
func (c *Client) DiscountsURL(currency string) string {
	u := c.resolve("games/on-sale")
	q := url.Values{}
	q.Set("sort_by", "discount")
	q.Set("direction", "desc")
	q.Set("currency", currency)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) resolve(uri string) *url.URL {
	ref, err := url.Parse(uri)
	if err != nil {
		return c.baseURL
	}
	return c.baseURL.ResolveReference(ref)
}

func (c *Client) fetch(ctx context.Context, operation, uri string, values url.Values) (*goquery.Document, error) {
	target := c.resolve(uri)
	if values != nil {
		target.RawQuery = values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("eshop: создание запроса: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("eshop", operation, start, err)
	if err != nil {
		return nil, fmt.Errorf("eshop: запрос %s: %w", operation, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eshop: запрос %s: статус %d", operation, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("eshop: разбор ответа %s: %w", operation, err)
	}
	return doc, nil
}

func parseGamesList(doc *goquery.Document) []domain.SearchHit {
	var hits []domain.SearchHit
	doc.Find("a.games-list-item").Each(func(_ int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find("h5").First().Text())
		uri, _ := item.Attr("href")
		if title == "" || uri == "" {
			return
		}
		hits = append(hits, domain.SearchHit{
			Title:     title,
			BestPrice: nestedText(item.Find("span.price-tag").First()),
			URI:       uri,
		})
	})
	return hits
}

// nestedText возвращает последний непустой текстовый узел выделения.
// В ячейках с вложенной разметкой (флаг страны, зачёркнутая старая цена)
// актуальное значение идёт последним.
func nestedText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
