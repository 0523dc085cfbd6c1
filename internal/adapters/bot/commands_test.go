package bot

import "testing"

func TestMatchCommand(t *testing.T) {
	cases := []struct {
		text string
		name string
		arg  string
	}{
		{"/prices Hades", "/prices", "Hades"},
		{"/prices", "/prices", ""},
		{"/prices   Hades  ", "/prices", "Hades"},
		{"/removefavorite", "/removefavorite", ""},
		{"/currency BRL", "/currency", "BRL"},
		{"/start", "/start", ""},
		{"/help", "/help", ""},
	}
	for _, tc := range cases {
		cmd, arg, ok := matchCommand(tc.text)
		if !ok {
			t.Fatalf("ожидали совпадение для %q", tc.text)
		}
		if cmd.name != tc.name {
			t.Fatalf("для %q ожидали %s, получили %s", tc.text, tc.name, cmd.name)
		}
		if arg != tc.arg {
			t.Fatalf("для %q ожидали аргумент %q, получили %q", tc.text, tc.arg, arg)
		}
	}
}

func TestMatchCommandRequiresWordBoundary(t *testing.T) {
	// /pricesfoo не должен матчиться как /prices с аргументом foo
	for _, text := range []string{"/pricesfoo", "/searchable", "/helpme", "/currencyX"} {
		if _, _, ok := matchCommand(text); ok {
			t.Fatalf("%q не должен распознаваться как команда", text)
		}
	}
}

func TestMatchCommandUnknownText(t *testing.T) {
	for _, text := range []string{"", "hello", "/unknown", "prices Hades"} {
		if _, _, ok := matchCommand(text); ok {
			t.Fatalf("%q не должен распознаваться как команда", text)
		}
	}
}

func TestCommandTableLongestFirst(t *testing.T) {
	for i := 1; i < len(commandTable); i++ {
		if len(commandTable[i-1].name) < len(commandTable[i].name) {
			t.Fatalf("таблица команд должна идти от длинных имён к коротким: %s перед %s",
				commandTable[i-1].name, commandTable[i].name)
		}
	}
}
