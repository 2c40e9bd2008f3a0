// Package chunk содержит контейнер данных одного чанка в двух вариантах:
// Dense (все клетки заполнены) и Sparse (материализованы только записанные клетки).
//
// Чанк не синхронизирован: блокировками владеет слой (layer.Layer).
package chunk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/annel0/sparse-tilemap/internal/vec"
)

// ErrLocalIndexOutOfBounds локальная клетка вне чанка. Признак ошибки в вызывающем коде слоя.
var ErrLocalIndexOutOfBounds = errors.New("local index out of bounds")

// Discipline способ хранения клеток чанка
type Discipline uint8

const (
	Dense Discipline = iota
	Sparse
)

func (d Discipline) String() string {
	switch d {
	case Dense:
		return "dense"
	case Sparse:
		return "sparse"
	default:
		return "unknown"
	}
}

// ParseDiscipline разбирает название способа хранения из конфигурации
func ParseDiscipline(s string) (Discipline, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dense":
		return Dense, nil
	case "sparse":
		return Sparse, nil
	default:
		return 0, fmt.Errorf("unknown storage discipline %q", s)
	}
}

// Chunk контейнер клеток одного чанка.
type Chunk[T any] interface {
	// Dims фактический размер чанка (граничные чанки обрезаны по карте).
	Dims() vec.Dims
	Discipline() Discipline

	// Get возвращает значение клетки. Sparse-чанк при промахе отдаёт значение
	// по умолчанию и ничего не создаёт.
	Get(local vec.Vec2) (T, error)
	// Set записывает значение клетки.
	Set(local vec.Vec2, value T) error
	// Update изменяет значение клетки на месте. Считается записью.
	Update(local vec.Vec2, fn func(*T)) error
	// Clear возвращает клетку к значению по умолчанию и снимает отметку записи.
	Clear(local vec.Vec2) error

	// Len количество явно записанных клеток.
	Len() int
	// Range обходит явно записанные клетки в построчном порядке, пока fn возвращает true.
	Range(fn func(local vec.Vec2, value T) bool)
	Clone() Chunk[T]
}

func checkLocal(dims vec.Dims, local vec.Vec2) error {
	if !dims.Contains(local) {
		return fmt.Errorf("%w: %s in chunk %s", ErrLocalIndexOutOfBounds, local, dims)
	}
	return nil
}

// Convert переводит чанк в другой способ хранения, сохраняя все явно
// записанные клетки, даже если они равны значению по умолчанию.
func Convert[T any](c Chunk[T], target Discipline, def T) Chunk[T] {
	if c.Discipline() == target {
		return c.Clone()
	}
	if target == Dense {
		return ToDense(c, def)
	}
	return ToSparse(c, def)
}

// ToDense материализует чанк целиком, заполняя пропуски значением по умолчанию.
func ToDense[T any](c Chunk[T], def T) *DenseChunk[T] {
	d := NewDense(c.Dims(), def)
	c.Range(func(local vec.Vec2, value T) bool {
		idx := d.dims.Index(local)
		d.cells[idx] = value
		d.written.Set(uint(idx))
		return true
	})
	return d
}

// ToSparse оставляет только явно записанные клетки.
func ToSparse[T any](c Chunk[T], def T) *SparseChunk[T] {
	s := NewSparse(c.Dims(), def)
	c.Range(func(local vec.Vec2, value T) bool {
		s.cells[s.dims.Index(local)] = value
		return true
	})
	return s
}
