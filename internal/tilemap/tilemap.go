// Package tilemap собирает слои в одну карту и даёт фасад Manager,
// через который внешний код читает и пишет клетки и ставит сущности.
package tilemap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/annel0/sparse-tilemap/internal/chunk"
	"github.com/annel0/sparse-tilemap/internal/config"
	"github.com/annel0/sparse-tilemap/internal/layer"
	"github.com/annel0/sparse-tilemap/internal/logging"
	"github.com/annel0/sparse-tilemap/internal/topology"
	"github.com/annel0/sparse-tilemap/internal/vec"
)

// ErrUnknownLayer слой с таким именем не объявлен
var ErrUnknownLayer = errors.New("unknown layer")

// Tilemap фиксированный набор именованных слоёв с общим размером и топологией.
// Размер чанков и способ хранения у каждого слоя свои. Набор слоёв
// не меняется после создания, поэтому собственной блокировки карте не нужно.
type Tilemap[T any] struct {
	name   string
	size   vec.Dims
	topo   topology.Topology
	order  []string
	layers map[string]*layer.Layer[T]
	log    *logging.Logger
}

// New создаёт карту. Имена слоёв должны быть непустыми и уникальными.
func New[T any](name string, size vec.Dims, topo topology.Topology, layers []layer.Config, def T) (*Tilemap[T], error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: map %q has no layers", config.ErrInvalidConfig, name)
	}

	m := &Tilemap[T]{
		name:   name,
		size:   size,
		topo:   topo,
		order:  make([]string, 0, len(layers)),
		layers: make(map[string]*layer.Layer[T], len(layers)),
		log:    logging.GetTilemapLogger().WithField("map", name),
	}
	for _, cfg := range layers {
		if strings.TrimSpace(cfg.Name) == "" {
			return nil, fmt.Errorf("%w: empty layer name", config.ErrInvalidConfig)
		}
		if _, dup := m.layers[cfg.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate layer %q", config.ErrInvalidConfig, cfg.Name)
		}
		l, err := layer.New(cfg, topo, size, def)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
		}
		m.order = append(m.order, cfg.Name)
		m.layers[cfg.Name] = l
	}
	return m, nil
}

func (m *Tilemap[T]) Name() string                { return m.name }
func (m *Tilemap[T]) Size() vec.Dims              { return m.size }
func (m *Tilemap[T]) Topology() topology.Topology { return m.topo }

// Layers имена слоёв в объявленном порядке
func (m *Tilemap[T]) Layers() []string {
	return append([]string(nil), m.order...)
}

// Layer возвращает слой по имени
func (m *Tilemap[T]) Layer(name string) (*layer.Layer[T], error) {
	l, ok := m.layers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}
	return l, nil
}

func (m *Tilemap[T]) Get(name string, cell vec.Vec2) (T, error) {
	l, err := m.Layer(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return l.Get(cell)
}

func (m *Tilemap[T]) Set(name string, cell vec.Vec2, value T) error {
	l, err := m.Layer(name)
	if err != nil {
		return err
	}
	return l.Set(cell, value)
}

func (m *Tilemap[T]) Update(name string, cell vec.Vec2, fn func(*T)) error {
	l, err := m.Layer(name)
	if err != nil {
		return err
	}
	return l.Update(cell, fn)
}

func (m *Tilemap[T]) Clear(name string, cell vec.Vec2) error {
	l, err := m.Layer(name)
	if err != nil {
		return err
	}
	return l.Clear(cell)
}

// ResizeChunks меняет размер чанков одного слоя
func (m *Tilemap[T]) ResizeChunks(name string, chunkDims vec.Dims) error {
	l, err := m.Layer(name)
	if err != nil {
		return err
	}

	start := time.Now()
	old := l.ChunkDims()
	if err := l.ResizeChunks(chunkDims); err != nil {
		return err
	}
	m.log.Info("слой %s: чанки %s -> %s за %v, чанков в памяти %d",
		name, old, chunkDims, time.Since(start), l.MaterializedChunks())
	return nil
}

// ConvertStorage меняет способ хранения одного слоя
func (m *Tilemap[T]) ConvertStorage(name string, d chunk.Discipline) error {
	l, err := m.Layer(name)
	if err != nil {
		return err
	}

	start := time.Now()
	old := l.Discipline()
	if err := l.ConvertStorage(d); err != nil {
		return err
	}
	m.log.Info("слой %s: хранение %s -> %s за %v, чанков в памяти %d",
		name, old, d, time.Since(start), l.MaterializedChunks())
	return nil
}

// Compact удаляет пустые sparse-чанки слоя
func (m *Tilemap[T]) Compact(name string) (int, error) {
	l, err := m.Layer(name)
	if err != nil {
		return 0, err
	}
	dropped := l.Compact()
	if dropped > 0 {
		m.log.Info("слой %s: удалено пустых чанков %d", name, dropped)
	}
	return dropped, nil
}

// MapConfig текущая конфигурация карты, включая изменённые размеры чанков и способы хранения
func (m *Tilemap[T]) MapConfig() config.MapConfig {
	cfg := config.MapConfig{
		Name:     m.name,
		Width:    m.size.W,
		Height:   m.size.H,
		Topology: m.topo.Kind().String(),
		Layers:   make([]config.LayerConfig, 0, len(m.order)),
	}
	if h, ok := m.topo.(topology.Hex); ok {
		cfg.Orientation = h.Orientation.String()
	}
	for _, name := range m.order {
		lc := m.layers[name].Config()
		cfg.Layers = append(cfg.Layers, config.LayerConfig{
			Name:        lc.Name,
			ChunkWidth:  lc.ChunkDims.W,
			ChunkHeight: lc.ChunkDims.H,
			Storage:     lc.Discipline.String(),
		})
	}
	return cfg
}
