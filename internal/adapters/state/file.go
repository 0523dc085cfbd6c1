package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"eshop-prices-bot/internal/domain"
)

const (
	checkpointFile = "checkpoint"
	sessionsFile   = "sessions.json"
	cacheFile      = "prices_cache.json"
)

// FileStore сохраняет снапшот в каталог из трёх файлов: чекпоинт,
// сессии и кэш цен. Каждый файл переписывается целиком через
// временный файл и rename, чтобы не оставлять частичных записей.
type FileStore struct {
	dir string
}

var _ domain.StateStore = (*FileStore)(nil)

// NewFileStore создаёт файловое хранилище в указанном каталоге.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("создание каталога состояния: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load восстанавливает снапшот. Отсутствующие файлы означают
// первый запуск и дают нулевые значения.
func (s *FileStore) Load(ctx context.Context) (domain.Snapshot, error) {
	snap := domain.Snapshot{
		Sessions: make(map[int64]domain.ChatSession),
		Cache:    make(map[string]domain.CacheEntry),
	}

	raw, err := os.ReadFile(filepath.Join(s.dir, checkpointFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return domain.Snapshot{}, fmt.Errorf("чтение чекпоинта: %w", err)
	default:
		checkpoint, convErr := strconv.Atoi(strings.TrimSpace(string(raw)))
		if convErr != nil {
			return domain.Snapshot{}, fmt.Errorf("разбор чекпоинта: %w", convErr)
		}
		snap.Checkpoint = checkpoint
	}

	if err := s.readJSON(sessionsFile, &snap.Sessions); err != nil {
		return domain.Snapshot{}, err
	}
	if err := s.readJSON(cacheFile, &snap.Cache); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// Save переписывает все три файла. Падение между записями может
// оставить их несогласованными, это допустимо: ни один из них не
// критичен для безопасности.
func (s *FileStore) Save(ctx context.Context, snap domain.Snapshot) error {
	if err := s.writeAtomic(checkpointFile, []byte(strconv.Itoa(snap.Checkpoint))); err != nil {
		return err
	}
	if err := s.writeJSON(sessionsFile, snap.Sessions); err != nil {
		return err
	}
	return s.writeJSON(cacheFile, snap.Cache)
}

func (s *FileStore) readJSON(name string, dst any) error {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("чтение %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("разбор %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) writeJSON(name string, src any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("сериализация %s: %w", name, err)
	}
	return s.writeAtomic(name, data)
}

func (s *FileStore) writeAtomic(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("запись %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("замена %s: %w", name, err)
	}
	return nil
}
