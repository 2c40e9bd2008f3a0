package chunk

import (
	"github.com/annel0/sparse-tilemap/internal/vec"
	"github.com/willf/bitset"
)

// DenseChunk хранит значение для каждой клетки чанка в построчном срезе.
// Битовая маска written помнит, какие клетки были записаны явно, чтобы
// перевод в Sparse не терял значения, совпадающие с дефолтом.
type DenseChunk[T any] struct {
	dims    vec.Dims
	def     T
	cells   []T
	written *bitset.BitSet
}

// NewDense создаёт чанк, все клетки которого равны значению по умолчанию
func NewDense[T any](dims vec.Dims, def T) *DenseChunk[T] {
	cells := make([]T, dims.Area())
	for i := range cells {
		cells[i] = def
	}
	return &DenseChunk[T]{
		dims:    dims,
		def:     def,
		cells:   cells,
		written: bitset.New(uint(dims.Area())),
	}
}

func (d *DenseChunk[T]) Dims() vec.Dims         { return d.dims }
func (d *DenseChunk[T]) Discipline() Discipline { return Dense }

func (d *DenseChunk[T]) Get(local vec.Vec2) (T, error) {
	if err := checkLocal(d.dims, local); err != nil {
		var zero T
		return zero, err
	}
	return d.cells[d.dims.Index(local)], nil
}

func (d *DenseChunk[T]) Set(local vec.Vec2, value T) error {
	if err := checkLocal(d.dims, local); err != nil {
		return err
	}
	idx := d.dims.Index(local)
	d.cells[idx] = value
	d.written.Set(uint(idx))
	return nil
}

// Update отдаёт указатель прямо на слот среза
func (d *DenseChunk[T]) Update(local vec.Vec2, fn func(*T)) error {
	if err := checkLocal(d.dims, local); err != nil {
		return err
	}
	idx := d.dims.Index(local)
	fn(&d.cells[idx])
	d.written.Set(uint(idx))
	return nil
}

func (d *DenseChunk[T]) Clear(local vec.Vec2) error {
	if err := checkLocal(d.dims, local); err != nil {
		return err
	}
	idx := d.dims.Index(local)
	d.cells[idx] = d.def
	d.written.Clear(uint(idx))
	return nil
}

func (d *DenseChunk[T]) Len() int {
	return int(d.written.Count())
}

func (d *DenseChunk[T]) Range(fn func(local vec.Vec2, value T) bool) {
	for i, ok := d.written.NextSet(0); ok; i, ok = d.written.NextSet(i + 1) {
		idx := int(i)
		if idx >= len(d.cells) {
			return
		}
		if !fn(d.dims.At(idx), d.cells[idx]) {
			return
		}
	}
}

func (d *DenseChunk[T]) Clone() Chunk[T] {
	cells := make([]T, len(d.cells))
	copy(cells, d.cells)
	return &DenseChunk[T]{
		dims:    d.dims,
		def:     d.def,
		cells:   cells,
		written: d.written.Clone(),
	}
}
