package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/sparse-tilemap/internal/config"
)

// ErrNotFound ключ отсутствует в хранилище
var ErrNotFound = errors.New("key not found")

// Store определяет интерфейс key-value хранилища для снимков карты.
// Все методы принимают контекст: реализации могут ходить в сеть или на диск.
type Store interface {
	// Put сохраняет значение под ключом, перезаписывая старое.
	Put(ctx context.Context, key string, value []byte) error

	// Get возвращает значение или ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete удаляет ключ. Удаление отсутствующего ключа не ошибка.
	Delete(ctx context.Context, key string) error

	// Keys возвращает отсортированный список ключей с префиксом.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close освобождает ресурсы хранилища.
	Close() error
}

// Open создаёт хранилище по конфигурации. Пустой backend означает memory.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "badger":
		return NewBadgerStore(cfg.GetPath())
	case "redis":
		return NewRedisStore(redisConfig(cfg))
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

// redisConfig переносит настройки Redis из конфигурации приложения
func redisConfig(cfg config.StorageConfig) *RedisConfig {
	rc := DefaultRedisConfig()
	if cfg.RedisAddr != "" {
		rc.Addr = cfg.RedisAddr
	}
	rc.Password = cfg.GetRedisPassword()
	rc.DB = cfg.RedisDB
	rc.KeyPrefix = cfg.RedisPrefix
	rc.TTL = cfg.RedisTTL
	return rc
}

// checkContext проверяет контекст на отмену
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
