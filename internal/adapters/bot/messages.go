package bot

import (
	"fmt"
	"html"
	"strings"

	"eshop-prices-bot/internal/domain"
)

const helpMessage = `Hi there, you can use this bot to quickly and easily get some info about game pricing on the Nintendo eShops around the world.

Use /prices followed by the name of the game you want to search (ex.: <code>/prices The Legend of Zelda</code>) to get a list of the prices in each store.
Use /topdiscounts to get a list of the 20 games with the highest discount currently.
Use /currency followed by a currency code (ex.: <code>/currency BRL</code>) to get the prices converted to that currency on your next requests.
Use /addfavorite to add a game to your list of favorites. When you use /prices without a game name it will give you an option to choose from this list.
Use /removefavorite to unfavorite a game. The list of your favorite games will be provided for you to choose from.
Use /myfavorites to see what games you have currently favorited.

All prices are scraped from the <a href='https://eshop-prices.com'>eShop-Prices</a> website. Consider visiting it to support the creator, as well as for more info and some cool features.`

func missingArgumentMessage(command string) string {
	return fmt.Sprintf("You must give a game name to search (ex.: <code>%s The Legend of Zelda</code>)", command)
}

func noMatchMessage(query string) string {
	return fmt.Sprintf("No game matches the search query <em>%s</em>.", html.EscapeString(query))
}

func disambiguationMessage(query string) string {
	return fmt.Sprintf("More than one game matches <em>%s</em>, which of the following would you like the prices for?\n<em>(Best available price in parenthesis)</em>", html.EscapeString(query))
}

func pricesMessage(title string, prices []domain.PriceRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<strong><u>Current prices around the world for <em>%s</em>:</u></strong>", html.EscapeString(title))
	for _, row := range prices {
		fmt.Fprintf(&b, "\n<strong>%s - </strong>\t\t%s", html.EscapeString(row.Country), html.EscapeString(row.Price.CurrentPrice))
	}
	return b.String()
}

func searchResultsMessage(query string, hits []domain.SearchHit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for <em>%s</em>:", html.EscapeString(query))
	for _, hit := range hits {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(hit.Title))
	}
	return b.String()
}

func topDiscountsMessage(hits []domain.SearchHit, allDiscountsURL string) string {
	var b strings.Builder
	b.WriteString("<strong><u>These are the 20 games with the greatest discount (ordered by discount %)</u></strong>")
	for _, hit := range hits {
		fmt.Fprintf(&b, "\n\n<strong>%s - </strong> %s", html.EscapeString(hit.Title), html.EscapeString(hit.BestPrice))
	}
	fmt.Fprintf(&b, "\n\n<a href=\"%s\">See all the discounted games</a>", allDiscountsURL)
	return b.String()
}

func currenciesMessage(currencies []domain.Currency) string {
	var b strings.Builder
	b.WriteString("<u><strong>To set the currency use <code>/currency [currency_code]</code>, where <code>[currency_code]</code> is one of the following:</strong></u>")
	for _, currency := range currencies {
		fmt.Fprintf(&b, "\n<strong>%s</strong> for %s", html.EscapeString(currency.Code), html.EscapeString(currency.Name))
	}
	return b.String()
}

func favoritesMessage(favorites []string) string {
	var b strings.Builder
	b.WriteString("<strong><u>You have favorited the following games:</u></strong>\n")
	for _, title := range favorites {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(title))
	}
	return b.String()
}

func favoritePricesPrompt() string {
	return "<strong><u>Do you want to see the prices for one of your favorited games?</u></strong>\nTo get prices for a specific game use <code>/prices [game_name]</code>"
}

func removeFavoritePrompt() string {
	return "<strong><u>Which of the following do you want to remove from your favorites?</u></strong>"
}

func favoriteAddedMessage(title string) string {
	return fmt.Sprintf("<em>%s</em> added to your list of favorites.", html.EscapeString(title))
}

func favoriteRemovedMessage(title string) string {
	return fmt.Sprintf("<em>%s</em> removed from your list of favorites.", html.EscapeString(title))
}

func favoriteMissingMessage(title string) string {
	return fmt.Sprintf("<em>%s</em> was not in your list of favorites.", html.EscapeString(title))
}

func currencySetMessage(code string) string {
	return fmt.Sprintf("Currency set to %s", html.EscapeString(code))
}

const staleSelectionMessage = "Sorry, I can no longer resolve that selection. Please run the command again."
