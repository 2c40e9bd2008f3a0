package chunk

import (
	"sort"

	"github.com/annel0/sparse-tilemap/internal/vec"
)

// SparseChunk хранит только записанные клетки. Ключ - построчный индекс
// локальной клетки; чтение отсутствующего ключа возвращает дефолт без вставки.
type SparseChunk[T any] struct {
	dims  vec.Dims
	def   T
	cells map[int]T
}

// NewSparse создаёт пустой разреженный чанк
func NewSparse[T any](dims vec.Dims, def T) *SparseChunk[T] {
	return &SparseChunk[T]{
		dims:  dims,
		def:   def,
		cells: make(map[int]T),
	}
}

// NewSparseFromMap создаёт чанк из набора локальных клеток.
func NewSparseFromMap[T any](dims vec.Dims, def T, data map[vec.Vec2]T) (*SparseChunk[T], error) {
	s := NewSparse(dims, def)
	for local, value := range data {
		if err := s.Set(local, value); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *SparseChunk[T]) Dims() vec.Dims         { return s.dims }
func (s *SparseChunk[T]) Discipline() Discipline { return Sparse }

func (s *SparseChunk[T]) Get(local vec.Vec2) (T, error) {
	if err := checkLocal(s.dims, local); err != nil {
		var zero T
		return zero, err
	}
	if value, ok := s.cells[s.dims.Index(local)]; ok {
		return value, nil
	}
	return s.def, nil
}

func (s *SparseChunk[T]) Set(local vec.Vec2, value T) error {
	if err := checkLocal(s.dims, local); err != nil {
		return err
	}
	s.cells[s.dims.Index(local)] = value
	return nil
}

// Update читает текущее значение (или дефолт), даёт его изменить и сохраняет результат.
func (s *SparseChunk[T]) Update(local vec.Vec2, fn func(*T)) error {
	if err := checkLocal(s.dims, local); err != nil {
		return err
	}
	key := s.dims.Index(local)
	value, ok := s.cells[key]
	if !ok {
		value = s.def
	}
	fn(&value)
	s.cells[key] = value
	return nil
}

func (s *SparseChunk[T]) Clear(local vec.Vec2) error {
	if err := checkLocal(s.dims, local); err != nil {
		return err
	}
	delete(s.cells, s.dims.Index(local))
	return nil
}

func (s *SparseChunk[T]) Len() int {
	return len(s.cells)
}

func (s *SparseChunk[T]) Range(fn func(local vec.Vec2, value T) bool) {
	keys := make([]int, 0, len(s.cells))
	for k := range s.cells {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	for _, k := range keys {
		if !fn(s.dims.At(k), s.cells[k]) {
			return
		}
	}
}

func (s *SparseChunk[T]) Clone() Chunk[T] {
	cells := make(map[int]T, len(s.cells))
	for k, v := range s.cells {
		cells[k] = v
	}
	return &SparseChunk[T]{dims: s.dims, def: s.def, cells: cells}
}
