package topology

import (
	"fmt"
	"strings"

	"github.com/annel0/sparse-tilemap/internal/vec"
)

// Orientation ориентация шестиугольников.
//
// Pointy хранится в offset-координатах с нечётными сдвинутыми строками (odd-r),
// Flat - с нечётными сдвинутыми столбцами (odd-q).
type Orientation uint8

const (
	Pointy Orientation = iota
	Flat
)

func (o Orientation) String() string {
	if o == Flat {
		return "flat"
	}
	return "pointy"
}

// ParseOrientation разбирает ориентацию из конфигурации. Пустая строка означает pointy.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pointy":
		return Pointy, nil
	case "flat":
		return Flat, nil
	default:
		return 0, fmt.Errorf("unknown hex orientation %q", s)
	}
}

// axialDirections шесть направлений в осевых координатах (q, r)
var axialDirections = [6]vec.Vec2{
	{X: 1, Y: 0},
	{X: 1, Y: -1},
	{X: 0, Y: -1},
	{X: -1, Y: 0},
	{X: -1, Y: 1},
	{X: 0, Y: 1},
}

// Hex шестиугольная сетка. Клетки карты - offset-координаты (col, row),
// соседи и расстояния считаются через осевые координаты.
type Hex struct {
	Orientation Orientation
}

func (Hex) Kind() Kind { return KindHex }

// ToAxial переводит offset-клетку в осевые координаты (X=q, Y=r).
func (h Hex) ToAxial(c vec.Vec2) vec.Vec2 {
	if h.Orientation == Flat {
		return vec.Vec2{X: c.X, Y: c.Y - (c.X-(c.X&1))/2}
	}
	return vec.Vec2{X: c.X - (c.Y-(c.Y&1))/2, Y: c.Y}
}

// FromAxial обратное к ToAxial
func (h Hex) FromAxial(a vec.Vec2) vec.Vec2 {
	if h.Orientation == Flat {
		return vec.Vec2{X: a.X, Y: a.Y + (a.X-(a.X&1))/2}
	}
	return vec.Vec2{X: a.X + (a.Y-(a.Y&1))/2, Y: a.Y}
}

// Neighbors возвращает шесть соседей в offset-координатах
func (h Hex) Neighbors(c vec.Vec2) []vec.Vec2 {
	axial := h.ToAxial(c)
	result := make([]vec.Vec2, 0, len(axialDirections))
	for _, dir := range axialDirections {
		result = append(result, h.FromAxial(axial.Add(dir)))
	}
	return result
}

// Distance кубическое расстояние между клетками
func (h Hex) Distance(a, b vec.Vec2) int {
	d := h.ToAxial(a).Sub(h.ToAxial(b))
	return (abs(d.X) + abs(d.Y) + abs(d.X+d.Y)) / 2
}

// ToChunk раскладывает offset-клетку так же, как квадратная сетка: соседство
// считается от глобальных координат, поэтому чётность локальной строки не важна.
func (Hex) ToChunk(c vec.Vec2, chunk vec.Dims) (vec.Vec2, vec.Vec2, error) {
	return decompose(c, chunk)
}

func (Hex) FromChunk(chunkPos, local vec.Vec2, chunk vec.Dims) vec.Vec2 {
	return compose(chunkPos, local, chunk)
}
