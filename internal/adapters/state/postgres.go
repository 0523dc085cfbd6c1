package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eshop-prices-bot/internal/domain"
)

const (
	docCheckpoint = "checkpoint"
	docSessions   = "sessions"
	docCache      = "prices_cache"
)

// PostgresStore хранит снапшот в таблице bot_state: по одному
// JSON-документу на чекпоинт, сессии и кэш. Save переписывает все
// три документа в одной транзакции.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ domain.StateStore = (*PostgresStore)(nil)

// NewPostgresStore создаёт хранилище и гарантирует наличие таблицы.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	ctx, cancel := connCtx()
	defer cancel()
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bot_state (
    name       TEXT PRIMARY KEY,
    payload    JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return nil, fmt.Errorf("создание таблицы состояния: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Load восстанавливает снапшот из таблицы.
func (s *PostgresStore) Load(ctx context.Context) (domain.Snapshot, error) {
	ctx, cancel := connCtxWithParent(ctx)
	defer cancel()

	snap := domain.Snapshot{
		Sessions: make(map[int64]domain.ChatSession),
		Cache:    make(map[string]domain.CacheEntry),
	}

	rows, err := s.pool.Query(ctx, `SELECT name, payload FROM bot_state`)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("чтение состояния: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return domain.Snapshot{}, fmt.Errorf("чтение строки состояния: %w", err)
		}
		switch name {
		case docCheckpoint:
			var checkpoint int
			if err := json.Unmarshal(payload, &checkpoint); err != nil {
				return domain.Snapshot{}, fmt.Errorf("разбор чекпоинта: %w", err)
			}
			snap.Checkpoint = checkpoint
		case docSessions:
			if err := json.Unmarshal(payload, &snap.Sessions); err != nil {
				return domain.Snapshot{}, fmt.Errorf("разбор сессий: %w", err)
			}
		case docCache:
			if err := json.Unmarshal(payload, &snap.Cache); err != nil {
				return domain.Snapshot{}, fmt.Errorf("разбор кэша: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("чтение состояния: %w", err)
	}
	return snap, nil
}

// Save переписывает все три документа в одной транзакции.
func (s *PostgresStore) Save(ctx context.Context, snap domain.Snapshot) error {
	ctx, cancel := connCtxWithParent(ctx)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("начало транзакции: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	docs := []struct {
		name string
		src  any
	}{
		{docCheckpoint, snap.Checkpoint},
		{docSessions, snap.Sessions},
		{docCache, snap.Cache},
	}
	for _, doc := range docs {
		payload, err := json.Marshal(doc.src)
		if err != nil {
			return fmt.Errorf("сериализация %s: %w", doc.name, err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO bot_state (name, payload, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
			doc.name, payload)
		if err != nil {
			return fmt.Errorf("сохранение %s: %w", doc.name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("фиксация транзакции: %w", err)
	}
	return nil
}

func connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}
