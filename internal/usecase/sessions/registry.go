package sessions

import (
	"sort"
	"sync"

	"eshop-prices-bot/internal/domain"
)

// Option — один вариант в клавиатуре уточнения. URI пустой, когда
// вариант взят из избранного и требует повторного поиска.
type Option struct {
	Title string
	URI   string
}

// PendingSelection — активная клавиатура уточнения чата. Варианты
// хранятся на сервере, callback несёт только индекс.
type PendingSelection struct {
	Command   string
	MessageID int
	Options   []Option
}

// Registry — таблица сессий чатов и их активных клавиатур.
// Сессии создаются лениво при первом обращении и живут до конца
// процесса; клавиатуры уточнения не персистентны.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*domain.ChatSession
	pending  map[int64]PendingSelection
}

// NewRegistry создаёт пустую таблицу сессий.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]*domain.ChatSession),
		pending:  make(map[int64]PendingSelection),
	}
}

// Restore наполняет таблицу из снапшота.
func (r *Registry) Restore(sessions map[int64]domain.ChatSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for chatID, session := range sessions {
		cp := session.Clone()
		cp.ChatID = chatID
		r.sessions[chatID] = &cp
	}
}

// Snapshot возвращает копии всех сессий для сохранения.
func (r *Registry) Snapshot() map[int64]domain.ChatSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]domain.ChatSession, len(r.sessions))
	for chatID, session := range r.sessions {
		out[chatID] = session.Clone()
	}
	return out
}

// Get возвращает копию сессии чата, создавая её при необходимости.
func (r *Registry) Get(chatID int64) domain.ChatSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensure(chatID).Clone()
}

// Currency возвращает валюту чата (пустая строка — валюта платформы).
func (r *Registry) Currency(chatID int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensure(chatID).Currency
}

// SetCurrency устанавливает валюту чата.
func (r *Registry) SetCurrency(chatID int64, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure(chatID).Currency = code
}

// Favorites возвращает копию списка избранного в сохранённом порядке.
func (r *Registry) Favorites(chatID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ensure(chatID).Favorites...)
}

// AddFavorite добавляет игру в конец списка избранного.
// Дубликаты допустимы намеренно.
func (r *Registry) AddFavorite(chatID int64, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session := r.ensure(chatID)
	session.Favorites = append(session.Favorites, title)
}

// RemoveFavorite удаляет первое вхождение игры из избранного.
// Возвращает false, если игры в списке нет.
func (r *Registry) RemoveFavorite(chatID int64, title string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	session := r.ensure(chatID)
	for i, favorite := range session.Favorites {
		if favorite == title {
			session.Favorites = append(session.Favorites[:i], session.Favorites[i+1:]...)
			return true
		}
	}
	return false
}

// All возвращает копии всех сессий, упорядоченные по идентификатору чата.
func (r *Registry) All() []domain.ChatSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ChatSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		out = append(out, session.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

// SetPending запоминает активную клавиатуру чата, вытесняя предыдущую.
func (r *Registry) SetPending(chatID int64, selection PendingSelection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure(chatID)
	r.pending[chatID] = selection
}

// Pending возвращает активную клавиатуру чата. Выбор не расходуется:
// пользователь может нажать на другую строку той же клавиатуры.
func (r *Registry) Pending(chatID int64) (PendingSelection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	selection, ok := r.pending[chatID]
	return selection, ok
}

func (r *Registry) ensure(chatID int64) *domain.ChatSession {
	session, ok := r.sessions[chatID]
	if !ok {
		session = &domain.ChatSession{ChatID: chatID}
		r.sessions[chatID] = session
	}
	return session
}
