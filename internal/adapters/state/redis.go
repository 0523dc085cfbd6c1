package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"eshop-prices-bot/internal/domain"
)

const (
	redisKeyCheckpoint = "eshop:checkpoint"
	redisKeySessions   = "eshop:sessions"
	redisKeyCache      = "eshop:prices_cache"
)

// RedisStore хранит снапшот в трёх ключах Redis. Save пишет их
// одним пайплайном.
type RedisStore struct {
	client *redis.Client
}

var _ domain.StateStore = (*RedisStore)(nil)

// NewRedisStore создаёт хранилище поверх клиента Redis.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Load восстанавливает снапшот. Отсутствующие ключи дают нулевые значения.
func (s *RedisStore) Load(ctx context.Context) (domain.Snapshot, error) {
	snap := domain.Snapshot{
		Sessions: make(map[int64]domain.ChatSession),
		Cache:    make(map[string]domain.CacheEntry),
	}

	raw, err := s.client.Get(ctx, redisKeyCheckpoint).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return domain.Snapshot{}, fmt.Errorf("чтение чекпоинта: %w", err)
	default:
		checkpoint, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return domain.Snapshot{}, fmt.Errorf("разбор чекпоинта: %w", convErr)
		}
		snap.Checkpoint = checkpoint
	}

	if err := s.loadJSON(ctx, redisKeySessions, &snap.Sessions); err != nil {
		return domain.Snapshot{}, err
	}
	if err := s.loadJSON(ctx, redisKeyCache, &snap.Cache); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// Save переписывает все три ключа.
func (s *RedisStore) Save(ctx context.Context, snap domain.Snapshot) error {
	sessions, err := json.Marshal(snap.Sessions)
	if err != nil {
		return fmt.Errorf("сериализация сессий: %w", err)
	}
	cache, err := json.Marshal(snap.Cache)
	if err != nil {
		return fmt.Errorf("сериализация кэша: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisKeyCheckpoint, strconv.Itoa(snap.Checkpoint), 0)
	pipe.Set(ctx, redisKeySessions, sessions, 0)
	pipe.Set(ctx, redisKeyCache, cache, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("сохранение снапшота: %w", err)
	}
	return nil
}

func (s *RedisStore) loadJSON(ctx context.Context, key string, dst any) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("чтение %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("разбор %s: %w", key, err)
	}
	return nil
}
