package tilemap

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/annel0/sparse-tilemap/internal/entity"
	"github.com/annel0/sparse-tilemap/internal/layer"
	"github.com/annel0/sparse-tilemap/internal/logging"
	"github.com/annel0/sparse-tilemap/internal/storage"
	"github.com/annel0/sparse-tilemap/internal/vec"
)

// Save сохраняет конфигурацию карты, все явно записанные клетки каждого
// слоя и клетки с сущностями. Слои пишутся раньше метаданных, так что
// метаданные появляются только у полностью сохранённой карты.
func Save[T any](ctx context.Context, m *Manager[T], store storage.Store, codec *storage.Codec) error {
	tm := m.Tilemap()
	start := time.Now()
	total := 0

	for _, name := range tm.Layers() {
		l, err := tm.Layer(name)
		if err != nil {
			return err
		}
		cfg := l.Config()
		snap := storage.LayerSnapshot[T]{
			Name:       name,
			Size:       l.Size(),
			ChunkDims:  cfg.ChunkDims,
			Discipline: cfg.Discipline.String(),
			Default:    l.Default(),
			Cells:      make([]storage.CellValue[T], 0),
		}
		l.Range(func(cell vec.Vec2, value T) bool {
			snap.Cells = append(snap.Cells, storage.CellValue[T]{Cell: cell, Value: value})
			return true
		})
		if err := storage.Save(ctx, store, codec, storage.LayerKey(tm.Name(), name), snap); err != nil {
			return fmt.Errorf("save layer %q: %w", name, err)
		}
		total += len(snap.Cells)
	}

	associations := m.Entities()
	meta := storage.MapSnapshot{
		Config:   tm.MapConfig(),
		Entities: make([]vec.Vec2, 0, len(associations)),
		SavedAt:  time.Now().UTC(),
	}
	for _, a := range associations {
		meta.Entities = append(meta.Entities, a.Cell)
	}
	if err := storage.Save(ctx, store, codec, storage.MetaKey(tm.Name()), meta); err != nil {
		return fmt.Errorf("save map %q: %w", tm.Name(), err)
	}

	logging.GetStorageLogger().Info("карта %s сохранена: клеток %d, сущностей %d за %v",
		tm.Name(), total, len(meta.Entities), time.Since(start))
	return nil
}

// Load восстанавливает карту name. Сущности заново создаются на host
// на тех же клетках: дескрипторы прежнего хоста не переживают сохранение.
func Load[T any](ctx context.Context, store storage.Store, codec *storage.Codec, name string, host entity.Host, opts ...Option) (*Manager[T], error) {
	var meta storage.MapSnapshot
	if err := storage.Load(ctx, store, codec, storage.MetaKey(name), &meta); err != nil {
		return nil, err
	}
	if len(meta.Config.Layers) == 0 {
		return nil, fmt.Errorf("map %q: snapshot has no layers", name)
	}

	snaps := make([]storage.LayerSnapshot[T], 0, len(meta.Config.Layers))
	for _, lc := range meta.Config.Layers {
		var snap storage.LayerSnapshot[T]
		if err := storage.Load(ctx, store, codec, storage.LayerKey(name, lc.Name), &snap); err != nil {
			return nil, err
		}
		if snap.ChunkDims != lc.ChunkDims() || snap.Discipline != lc.Storage {
			return nil, fmt.Errorf("map %q: layer %q snapshot does not match map config", name, lc.Name)
		}
		// у карты одно значение по умолчанию на все слои
		if len(snaps) > 0 && !reflect.DeepEqual(snap.Default, snaps[0].Default) {
			return nil, fmt.Errorf("map %q: layer %q default differs from layer %q", name, lc.Name, snaps[0].Name)
		}
		snaps = append(snaps, snap)
	}

	m, err := Build(meta.Config, snaps[0].Default, host, opts...)
	if err != nil {
		return nil, err
	}

	// Build ещё никому не отдал карту, слои можно подменить восстановленными
	tm := m.Tilemap()
	total := 0
	for _, snap := range snaps {
		empty, err := tm.Layer(snap.Name)
		if err != nil {
			return nil, err
		}
		data := make(map[vec.Vec2]T, len(snap.Cells))
		for _, cv := range snap.Cells {
			data[cv.Cell] = cv.Value
		}
		restored, err := layer.FromMap(empty.Config(), tm.Topology(), tm.Size(), snap.Default, data)
		if err != nil {
			return nil, fmt.Errorf("restore layer %q: %w", snap.Name, err)
		}
		tm.layers[snap.Name] = restored
		total += len(snap.Cells)
	}
	m.refreshChunks()

	for _, cell := range meta.Entities {
		if _, err := m.SpawnEntity(cell); err != nil {
			if closeErr := m.Close(); closeErr != nil {
				logging.GetStorageLogger().Warn("карта %s: ошибка освобождения сущностей после неудачной загрузки: %v", name, closeErr)
			}
			return nil, fmt.Errorf("respawn entity: %w", err)
		}
	}

	logging.GetStorageLogger().Info("карта %s загружена: клеток %d, сущностей %d", name, total, len(meta.Entities))
	return m, nil
}
