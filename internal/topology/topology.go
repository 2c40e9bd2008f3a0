// Package topology описывает форму сетки: соседство клеток, расстояние и
// разложение глобальной клетки на (чанк, локальная клетка).
//
// Все функции чистые. Одна и та же схема координат используется и для
// соседей, и для разложения по чанкам, иначе соседние клетки могут
// разрешиться в несогласованные чанки.
package topology

import (
	"errors"
	"fmt"
	"strings"

	"github.com/annel0/sparse-tilemap/internal/vec"
)

// ErrInvalidCoordinate возвращается при отрицательной клетке или некорректных размерах чанка.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Kind определяет форму сетки
type Kind uint8

const (
	KindSquare Kind = iota
	KindHex
)

func (k Kind) String() string {
	switch k {
	case KindSquare:
		return "square"
	case KindHex:
		return "hex"
	default:
		return "unknown"
	}
}

// ParseKind разбирает имя формы из конфигурации. Пустая строка означает square.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "square":
		return KindSquare, nil
	case "hex", "hexagon":
		return KindHex, nil
	default:
		return 0, fmt.Errorf("unknown topology %q", s)
	}
}

// Topology набор операций, зависящих от формы сетки.
type Topology interface {
	Kind() Kind
	// Neighbors возвращает соседей клетки без проверки границ карты.
	Neighbors(c vec.Vec2) []vec.Vec2
	// Distance возвращает число шагов между клетками.
	Distance(a, b vec.Vec2) int
	// ToChunk раскладывает глобальную клетку на позицию чанка и локальную клетку.
	ToChunk(c vec.Vec2, chunk vec.Dims) (chunkPos, local vec.Vec2, err error)
	// FromChunk обратное к ToChunk.
	FromChunk(chunkPos, local vec.Vec2, chunk vec.Dims) vec.Vec2
}

// New создаёт топологию по виду. Ориентация учитывается только для hex.
func New(kind Kind, orientation Orientation) (Topology, error) {
	switch kind {
	case KindSquare:
		return Square{}, nil
	case KindHex:
		return Hex{Orientation: orientation}, nil
	default:
		return nil, fmt.Errorf("unsupported topology kind %d", kind)
	}
}

// decompose общая для обеих форм построчная раскладка: сетка хранится в
// прямоугольных (для hex - offset) координатах.
func decompose(c vec.Vec2, chunk vec.Dims) (vec.Vec2, vec.Vec2, error) {
	if !chunk.Valid() {
		return vec.Vec2{}, vec.Vec2{}, fmt.Errorf("%w: chunk dims %s", ErrInvalidCoordinate, chunk)
	}
	if c.IsNegative() {
		return vec.Vec2{}, vec.Vec2{}, fmt.Errorf("%w: %s", ErrInvalidCoordinate, c)
	}
	chunkPos := vec.Vec2{X: c.X / chunk.W, Y: c.Y / chunk.H}
	local := vec.Vec2{X: c.X % chunk.W, Y: c.Y % chunk.H}
	return chunkPos, local, nil
}

func compose(chunkPos, local vec.Vec2, chunk vec.Dims) vec.Vec2 {
	return vec.Vec2{
		X: chunkPos.X*chunk.W + local.X,
		Y: chunkPos.Y*chunk.H + local.Y,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
