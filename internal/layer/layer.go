// Package layer реализует данные одного слоя карты: таблицу чанков,
// перевод глобальной клетки в (чанк, локальная клетка) и обслуживающие
// операции смены размера чанков и способа хранения.
package layer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/sparse-tilemap/internal/chunk"
	"github.com/annel0/sparse-tilemap/internal/topology"
	"github.com/annel0/sparse-tilemap/internal/vec"
)

var (
	// ErrOutOfBounds клетка вне [0,W)x[0,H)
	ErrOutOfBounds = errors.New("cell out of bounds")
	// ErrInvalidDims неположительный размер карты или чанка
	ErrInvalidDims = errors.New("invalid dimensions")
)

// Config неизменяемые параметры слоя.
type Config struct {
	Name       string
	ChunkDims  vec.Dims
	Discipline chunk.Discipline
}

// Layer хранит значения одного слоя. Все методы потокобезопасны:
// чтения берут RLock, записи и обслуживающие операции - Lock целиком.
type Layer[T any] struct {
	mu sync.RWMutex

	cfg    Config
	topo   topology.Topology
	size   vec.Dims
	def    T
	chunks map[vec.Vec2]chunk.Chunk[T]
}

// New создаёт слой. Dense-слой сразу создаёт все чанки, Sparse начинает с пустой таблицы.
func New[T any](cfg Config, topo topology.Topology, size vec.Dims, def T) (*Layer[T], error) {
	if topo == nil {
		return nil, fmt.Errorf("layer %q: nil topology", cfg.Name)
	}
	if !size.Valid() {
		return nil, fmt.Errorf("%w: map size %s", ErrInvalidDims, size)
	}
	if !cfg.ChunkDims.Valid() {
		return nil, fmt.Errorf("%w: layer %q chunk size %s", ErrInvalidDims, cfg.Name, cfg.ChunkDims)
	}

	l := &Layer[T]{
		cfg:  cfg,
		topo: topo,
		size: size,
		def:  def,
	}
	l.chunks = l.emptyTable(cfg.ChunkDims, cfg.Discipline)
	return l, nil
}

// FromMap строит слой по набору клеток. Клетка вне карты - ошибка.
// Sparse-чанки собираются сразу из своих клеток, без пошаговой записи.
func FromMap[T any](cfg Config, topo topology.Topology, size vec.Dims, def T, data map[vec.Vec2]T) (*Layer[T], error) {
	l, err := New(cfg, topo, size, def)
	if err != nil {
		return nil, err
	}

	byChunk := make(map[vec.Vec2]map[vec.Vec2]T)
	for cell, value := range data {
		pos, local, err := l.locate(cell, cfg.ChunkDims)
		if err != nil {
			return nil, err
		}
		locals, ok := byChunk[pos]
		if !ok {
			locals = make(map[vec.Vec2]T)
			byChunk[pos] = locals
		}
		locals[local] = value
	}

	for pos, locals := range byChunk {
		if cfg.Discipline == chunk.Sparse {
			c, err := chunk.NewSparseFromMap(chunkSize(pos, cfg.ChunkDims, size), def, locals)
			if err != nil {
				return nil, err
			}
			l.chunks[pos] = c
			continue
		}
		c := l.chunks[pos]
		for local, value := range locals {
			if err := c.Set(local, value); err != nil {
				return nil, err
			}
		}
	}
	return l, nil
}

// chunkSize фактический размер чанка: граничные чанки обрезаны по карте
func chunkSize(pos vec.Vec2, chunkDims, size vec.Dims) vec.Dims {
	return vec.Dims{
		W: min(chunkDims.W, size.W-pos.X*chunkDims.W),
		H: min(chunkDims.H, size.H-pos.Y*chunkDims.H),
	}
}

func (l *Layer[T]) newChunk(pos vec.Vec2, chunkDims vec.Dims, d chunk.Discipline) chunk.Chunk[T] {
	dims := chunkSize(pos, chunkDims, l.size)
	if d == chunk.Dense {
		return chunk.NewDense(dims, l.def)
	}
	return chunk.NewSparse(dims, l.def)
}

func (l *Layer[T]) emptyTable(chunkDims vec.Dims, d chunk.Discipline) map[vec.Vec2]chunk.Chunk[T] {
	table := make(map[vec.Vec2]chunk.Chunk[T])
	if d != chunk.Dense {
		return table
	}
	grid := l.size.CeilDiv(chunkDims)
	for cy := 0; cy < grid.H; cy++ {
		for cx := 0; cx < grid.W; cx++ {
			pos := vec.Vec2{X: cx, Y: cy}
			table[pos] = l.newChunk(pos, chunkDims, d)
		}
	}
	return table
}

func (l *Layer[T]) locate(cell vec.Vec2, chunkDims vec.Dims) (vec.Vec2, vec.Vec2, error) {
	if !l.size.Contains(cell) {
		return vec.Vec2{}, vec.Vec2{}, fmt.Errorf("%w: %s outside map %s", ErrOutOfBounds, cell, l.size)
	}
	return l.topo.ToChunk(cell, chunkDims)
}

// Get возвращает значение клетки. Отсутствующий sparse-чанк читается как дефолт.
func (l *Layer[T]) Get(cell vec.Vec2) (T, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, local, err := l.locate(cell, l.cfg.ChunkDims)
	if err != nil {
		var zero T
		return zero, err
	}
	c, ok := l.chunks[pos]
	if !ok {
		return l.def, nil
	}
	return c.Get(local)
}

// writable возвращает чанк для записи, создавая его при первом обращении.
// Вызывать под Lock.
func (l *Layer[T]) writable(cell vec.Vec2) (chunk.Chunk[T], vec.Vec2, error) {
	pos, local, err := l.locate(cell, l.cfg.ChunkDims)
	if err != nil {
		return nil, vec.Vec2{}, err
	}
	c, ok := l.chunks[pos]
	if !ok {
		c = l.newChunk(pos, l.cfg.ChunkDims, l.cfg.Discipline)
		l.chunks[pos] = c
	}
	return c, local, nil
}

// Set записывает значение клетки
func (l *Layer[T]) Set(cell vec.Vec2, value T) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, local, err := l.writable(cell)
	if err != nil {
		return err
	}
	return c.Set(local, value)
}

// Update изменяет значение клетки на месте. fn выполняется под блокировкой слоя
// и не должна обращаться к этому же слою.
func (l *Layer[T]) Update(cell vec.Vec2, fn func(*T)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, local, err := l.writable(cell)
	if err != nil {
		return err
	}
	return c.Update(local, fn)
}

// Clear возвращает клетку к значению по умолчанию. Чанк при этом не удаляется, см. Compact.
func (l *Layer[T]) Clear(cell vec.Vec2) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, local, err := l.locate(cell, l.cfg.ChunkDims)
	if err != nil {
		return err
	}
	c, ok := l.chunks[pos]
	if !ok {
		return nil
	}
	return c.Clear(local)
}

// rebuild собирает новую таблицу из всех явно записанных клеток.
// Текущая таблица не меняется. Вызывать под блокировкой.
func (l *Layer[T]) rebuild(chunkDims vec.Dims, d chunk.Discipline) (map[vec.Vec2]chunk.Chunk[T], error) {
	table := l.emptyTable(chunkDims, d)

	var rangeErr error
	for pos, old := range l.chunks {
		old.Range(func(local vec.Vec2, value T) bool {
			cell := l.topo.FromChunk(pos, local, l.cfg.ChunkDims)
			newPos, newLocal, err := l.locate(cell, chunkDims)
			if err != nil {
				rangeErr = err
				return false
			}
			c, ok := table[newPos]
			if !ok {
				c = l.newChunk(newPos, chunkDims, d)
				table[newPos] = c
			}
			if err := c.Set(newLocal, value); err != nil {
				rangeErr = err
				return false
			}
			return true
		})
		if rangeErr != nil {
			return nil, rangeErr
		}
	}
	return table, nil
}

// ResizeChunks перестраивает слой под новый размер чанков. Либо слой целиком
// переходит на новую таблицу, либо остаётся без изменений.
func (l *Layer[T]) ResizeChunks(chunkDims vec.Dims) error {
	if !chunkDims.Valid() {
		return fmt.Errorf("%w: layer %q chunk size %s", ErrInvalidDims, l.cfg.Name, chunkDims)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if chunkDims == l.cfg.ChunkDims {
		return nil
	}
	table, err := l.rebuild(chunkDims, l.cfg.Discipline)
	if err != nil {
		return fmt.Errorf("resize layer %q: %w", l.cfg.Name, err)
	}
	l.chunks = table
	l.cfg.ChunkDims = chunkDims
	return nil
}

// convertTable переводит каждый чанк в способ хранения d. Пустые чанки
// не переносятся в Sparse, недостающие создаются для Dense. Вызывать под блокировкой.
func (l *Layer[T]) convertTable(d chunk.Discipline) (map[vec.Vec2]chunk.Chunk[T], error) {
	if d != chunk.Dense && d != chunk.Sparse {
		return nil, fmt.Errorf("unknown storage discipline %d", d)
	}
	table := l.emptyTable(l.cfg.ChunkDims, d)
	for pos, c := range l.chunks {
		if d == chunk.Sparse && c.Len() == 0 {
			continue
		}
		table[pos] = chunk.Convert(c, d, l.def)
	}
	return table, nil
}

// ConvertStorage переводит слой в другой способ хранения на месте
func (l *Layer[T]) ConvertStorage(d chunk.Discipline) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if d == l.cfg.Discipline {
		return nil
	}
	table, err := l.convertTable(d)
	if err != nil {
		return fmt.Errorf("convert layer %q: %w", l.cfg.Name, err)
	}
	l.chunks = table
	l.cfg.Discipline = d
	return nil
}

// Converted возвращает независимую копию слоя с другим способом хранения.
// Исходный слой не меняется.
func (l *Layer[T]) Converted(d chunk.Discipline) (*Layer[T], error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	table, err := l.convertTable(d)
	if err != nil {
		return nil, fmt.Errorf("convert layer %q: %w", l.cfg.Name, err)
	}
	cfg := l.cfg
	cfg.Discipline = d
	return &Layer[T]{
		cfg:    cfg,
		topo:   l.topo,
		size:   l.size,
		def:    l.def,
		chunks: table,
	}, nil
}

// Compact удаляет sparse-чанки без записанных клеток и возвращает их количество.
// Dense-чанки существуют всегда и не удаляются.
func (l *Layer[T]) Compact() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.Discipline != chunk.Sparse {
		return 0
	}
	dropped := 0
	for pos, c := range l.chunks {
		if c.Len() == 0 {
			delete(l.chunks, pos)
			dropped++
		}
	}
	return dropped
}

func (l *Layer[T]) Config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

func (l *Layer[T]) Name() string { return l.cfg.Name }

// Size размер карты. Не меняется после создания.
func (l *Layer[T]) Size() vec.Dims { return l.size }

func (l *Layer[T]) Default() T { return l.def }

func (l *Layer[T]) Topology() topology.Topology { return l.topo }

func (l *Layer[T]) ChunkDims() vec.Dims {
	return l.Config().ChunkDims
}

func (l *Layer[T]) Discipline() chunk.Discipline {
	return l.Config().Discipline
}

// ChunkCount теоретическое количество чанков, покрывающих карту
func (l *Layer[T]) ChunkCount() int {
	return l.size.CeilDiv(l.ChunkDims()).Area()
}

// MaterializedChunks количество чанков, реально находящихся в памяти
func (l *Layer[T]) MaterializedChunks() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chunks)
}

// MaterializedCells количество явно записанных клеток
func (l *Layer[T]) MaterializedCells() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0
	for _, c := range l.chunks {
		total += c.Len()
	}
	return total
}

// ChunkPositions координаты материализованных чанков в построчном порядке
func (l *Layer[T]) ChunkPositions() []vec.Vec2 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortedPositions()
}

func (l *Layer[T]) sortedPositions() []vec.Vec2 {
	positions := make([]vec.Vec2, 0, len(l.chunks))
	for pos := range l.chunks {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Less(positions[j]) })
	return positions
}

// ChunkSize фактический размер материализованного чанка
func (l *Layer[T]) ChunkSize(pos vec.Vec2) (vec.Dims, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.chunks[pos]
	if !ok {
		return vec.Dims{}, false
	}
	return c.Dims(), true
}

// Neighbors соседи клетки по топологии слоя, лежащие внутри карты
func (l *Layer[T]) Neighbors(cell vec.Vec2) ([]vec.Vec2, error) {
	if !l.size.Contains(cell) {
		return nil, fmt.Errorf("%w: %s outside map %s", ErrOutOfBounds, cell, l.size)
	}
	all := l.topo.Neighbors(cell)
	result := all[:0]
	for _, n := range all {
		if l.size.Contains(n) {
			result = append(result, n)
		}
	}
	return result, nil
}

// Range обходит явно записанные клетки в глобальных координатах: чанки
// в построчном порядке, внутри чанка - тоже построчно. fn выполняется под RLock.
func (l *Layer[T]) Range(fn func(cell vec.Vec2, value T) bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, pos := range l.sortedPositions() {
		stop := false
		l.chunks[pos].Range(func(local vec.Vec2, value T) bool {
			if !fn(l.topo.FromChunk(pos, local, l.cfg.ChunkDims), value) {
				stop = true
				return false
			}
			return true
		})
		if stop {
			return
		}
	}
}
