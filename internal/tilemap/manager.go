package tilemap

import (
	"errors"
	"fmt"
	"time"

	"github.com/annel0/sparse-tilemap/internal/chunk"
	"github.com/annel0/sparse-tilemap/internal/entity"
	"github.com/annel0/sparse-tilemap/internal/layer"
	"github.com/annel0/sparse-tilemap/internal/logging"
	"github.com/annel0/sparse-tilemap/internal/metrics"
	"github.com/annel0/sparse-tilemap/internal/topology"
	"github.com/annel0/sparse-tilemap/internal/vec"
)

// Option настройка Manager
type Option func(*options)

type options struct {
	metrics *metrics.Collector
}

// WithMetrics подключает Prometheus-коллектор
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) {
		o.metrics = c
	}
}

// Manager единая точка доступа к карте: данные клеток и сущности на клетках.
// Операции с сущностями никогда не трогают данные клеток.
type Manager[T any] struct {
	tm       *Tilemap[T]
	entities *entity.Table
	metrics  *metrics.Collector
	log      *logging.Logger
}

// NewManager оборачивает готовую карту. host создаёт и уничтожает сущности.
func NewManager[T any](tm *Tilemap[T], host entity.Host, opts ...Option) *Manager[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager[T]{
		tm:       tm,
		entities: entity.NewTable(host),
		metrics:  o.metrics,
		log:      logging.GetTilemapLogger().WithField("map", tm.Name()),
	}
	m.refreshChunks()
	m.metrics.SetEntities(0)
	return m
}

// Tilemap доступ к карте для потребителей, которым нужны только чтения
func (m *Manager[T]) Tilemap() *Tilemap[T] { return m.tm }

func (m *Manager[T]) GetTileData(cell vec.Vec2, layerName string) (T, error) {
	v, err := m.tm.Get(layerName, cell)
	m.observe(layerName, "get", err)
	return v, err
}

func (m *Manager[T]) SetTileData(cell vec.Vec2, layerName string, value T) error {
	err := m.tm.Set(layerName, cell, value)
	m.observe(layerName, "set", err)
	if err == nil {
		m.refreshLayerChunks(layerName)
	}
	return err
}

// UpdateTileData изменяет значение клетки на месте
func (m *Manager[T]) UpdateTileData(cell vec.Vec2, layerName string, fn func(*T)) error {
	err := m.tm.Update(layerName, cell, fn)
	m.observe(layerName, "update", err)
	if err == nil {
		m.refreshLayerChunks(layerName)
	}
	return err
}

// ClearTileData возвращает клетку к значению по умолчанию
func (m *Manager[T]) ClearTileData(cell vec.Vec2, layerName string) error {
	err := m.tm.Clear(layerName, cell)
	m.observe(layerName, "clear", err)
	return err
}

// SpawnEntity создаёт сущность на клетке. Клетка должна лежать внутри карты.
func (m *Manager[T]) SpawnEntity(cell vec.Vec2) (entity.Handle, error) {
	if !m.tm.Size().Contains(cell) {
		err := fmt.Errorf("%w: %s outside map %s", layer.ErrOutOfBounds, cell, m.tm.Size())
		m.metrics.Error(errorKind(err))
		return 0, err
	}
	h, err := m.entities.Spawn(cell)
	if err != nil {
		m.metrics.Error(errorKind(err))
		return 0, err
	}
	m.metrics.SetEntities(m.entities.Len())
	return h, nil
}

// DespawnEntity уничтожает сущность на клетке
func (m *Manager[T]) DespawnEntity(cell vec.Vec2) error {
	if err := m.entities.Despawn(cell); err != nil {
		m.metrics.Error(errorKind(err))
		return err
	}
	m.metrics.SetEntities(m.entities.Len())
	return nil
}

// GetEntity чистый поиск дескриптора на клетке
func (m *Manager[T]) GetEntity(cell vec.Vec2) (entity.Handle, bool) {
	return m.entities.Get(cell)
}

// Entities снимок всех связей в построчном порядке клеток
func (m *Manager[T]) Entities() []entity.Association {
	return m.entities.Snapshot()
}

func (m *Manager[T]) EntityCount() int {
	return m.entities.Len()
}

func (m *Manager[T]) ResizeChunks(layerName string, chunkDims vec.Dims) error {
	start := time.Now()
	err := m.tm.ResizeChunks(layerName, chunkDims)
	if err != nil {
		m.metrics.Error(errorKind(err))
		return err
	}
	m.metrics.ObserveMaintenance("resize", time.Since(start))
	m.refreshLayerChunks(layerName)
	return nil
}

func (m *Manager[T]) ConvertStorage(layerName string, d chunk.Discipline) error {
	start := time.Now()
	err := m.tm.ConvertStorage(layerName, d)
	if err != nil {
		m.metrics.Error(errorKind(err))
		return err
	}
	m.metrics.ObserveMaintenance("convert", time.Since(start))
	m.refreshLayerChunks(layerName)
	return nil
}

func (m *Manager[T]) Compact(layerName string) (int, error) {
	dropped, err := m.tm.Compact(layerName)
	if err != nil {
		m.metrics.Error(errorKind(err))
		return 0, err
	}
	m.refreshLayerChunks(layerName)
	return dropped, nil
}

// Close разбирает карту: все выданные сущности уничтожаются
func (m *Manager[T]) Close() error {
	count := m.entities.Len()
	err := m.entities.DespawnAll()
	m.metrics.SetEntities(0)
	if err != nil {
		m.log.Error("ошибка уничтожения сущностей: %v", err)
		return fmt.Errorf("close map %q: %w", m.tm.Name(), err)
	}
	m.log.Info("карта закрыта, уничтожено сущностей: %d", count)
	return nil
}

func (m *Manager[T]) observe(layerName, op string, err error) {
	if m.metrics == nil {
		return
	}
	if err != nil {
		m.metrics.Error(errorKind(err))
		return
	}
	m.metrics.TileOp(layerName, op)
}

func (m *Manager[T]) refreshLayerChunks(layerName string) {
	if m.metrics == nil {
		return
	}
	if l, err := m.tm.Layer(layerName); err == nil {
		m.metrics.SetMaterializedChunks(layerName, l.MaterializedChunks())
	}
}

func (m *Manager[T]) refreshChunks() {
	for _, name := range m.tm.Layers() {
		m.refreshLayerChunks(name)
	}
}

// errorKind метка вида ошибки для метрик
func errorKind(err error) string {
	switch {
	case errors.Is(err, layer.ErrOutOfBounds):
		return "out_of_bounds"
	case errors.Is(err, ErrUnknownLayer):
		return "unknown_layer"
	case errors.Is(err, entity.ErrEntityAlreadyExists):
		return "entity_already_exists"
	case errors.Is(err, entity.ErrNoEntityAtCell):
		return "no_entity_at_cell"
	case errors.Is(err, topology.ErrInvalidCoordinate), errors.Is(err, layer.ErrInvalidDims):
		return "invalid_coordinate"
	case errors.Is(err, chunk.ErrLocalIndexOutOfBounds):
		return "local_index"
	default:
		return "other"
	}
}
