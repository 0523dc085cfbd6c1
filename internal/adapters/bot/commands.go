package bot

import (
	"context"
	"strings"
)

// command — одна команда бота: имя и обработчик остатка строки.
type command struct {
	name    string
	handler func(h *Handler, ctx context.Context, chatID int64, arg string)
}

// commandTable просматривается по порядку; самые длинные имена идут
// первыми, чтобы команда-расширение не перехватывалась более короткой.
var commandTable = []command{
	{"/removefavorite", (*Handler).cmdRemoveFavorite},
	{"/topdiscounts", (*Handler).cmdTopDiscounts},
	{"/myfavorites", (*Handler).cmdMyFavorites},
	{"/addfavorite", (*Handler).cmdAddFavorite},
	{"/currency", (*Handler).cmdCurrency},
	{"/prices", (*Handler).cmdPrices},
	{"/search", (*Handler).cmdSearch},
	{"/start", (*Handler).cmdHelp},
	{"/help", (*Handler).cmdHelp},
}

// matchCommand сопоставляет текст с таблицей команд. Совпадение
// требует границы слова: либо конец строки, либо пробел перед
// аргументом. Нераспознанный текст молча игнорируется вызывающим.
func matchCommand(text string) (command, string, bool) {
	for _, cmd := range commandTable {
		if !strings.HasPrefix(text, cmd.name) {
			continue
		}
		rest := strings.TrimPrefix(text, cmd.name)
		if rest != "" && !strings.HasPrefix(rest, " ") {
			continue
		}
		return cmd, strings.TrimSpace(rest), true
	}
	return command{}, "", false
}
