package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/annel0/sparse-tilemap/internal/config"
	"github.com/annel0/sparse-tilemap/internal/vec"
)

// CellValue явно записанная клетка слоя
type CellValue[T any] struct {
	Cell  vec.Vec2 `json:"c"`
	Value T        `json:"v"`
}

// LayerSnapshot конфигурация слоя и все явно записанные клетки.
// Размер чанков и способ хранения должны пережить сохранение без изменений.
type LayerSnapshot[T any] struct {
	Name       string         `json:"name"`
	Size       vec.Dims       `json:"size"`
	ChunkDims  vec.Dims       `json:"chunk_dims"`
	Discipline string         `json:"discipline"`
	Default    T              `json:"default"`
	Cells      []CellValue[T] `json:"cells"`
}

// MapSnapshot метаданные карты: исходная конфигурация с текущими
// параметрами слоёв и клетки, на которых стояли сущности.
type MapSnapshot struct {
	Config   config.MapConfig `json:"config"`
	Entities []vec.Vec2       `json:"entities"`
	SavedAt  time.Time        `json:"saved_at"`
}

// MetaKey ключ метаданных карты
func MetaKey(mapName string) string {
	return fmt.Sprintf("tilemap:%s:meta", mapName)
}

// LayerKey ключ снимка слоя
func LayerKey(mapName, layerName string) string {
	return fmt.Sprintf("tilemap:%s:layer:%s", mapName, layerName)
}

// MapPrefix префикс всех ключей карты
func MapPrefix(mapName string) string {
	return fmt.Sprintf("tilemap:%s:", mapName)
}

// Save кодирует v и кладёт под ключ
func Save(ctx context.Context, s Store, c *Codec, key string, v interface{}) error {
	data, err := c.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(ctx, key, data)
}

// Load читает ключ и декодирует в v. Отсутствие ключа - ErrNotFound.
func Load(ctx context.Context, s Store, c *Codec, key string, v interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if err := c.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
