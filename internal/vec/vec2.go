package vec

import "fmt"

// Vec2 представляет 2D координаты клетки (или чанка) в сетке.
// Значимый тип: сравнивается по значению и годится как ключ map.
type Vec2 struct {
	X, Y int
}

// Add складывает два вектора
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub вычитает вектор
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// IsNegative сообщает, есть ли у вектора отрицательная компонента
func (v Vec2) IsNegative() bool {
	return v.X < 0 || v.Y < 0
}

// Less задаёт порядок "сначала строка, потом столбец" для детерминированной сортировки.
func (v Vec2) Less(other Vec2) bool {
	if v.Y != other.Y {
		return v.Y < other.Y
	}
	return v.X < other.X
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%d,%d)", v.X, v.Y)
}

// Dims описывает размеры прямоугольной области: карты или чанка.
type Dims struct {
	W int `yaml:"width" json:"w"`
	H int `yaml:"height" json:"h"`
}

// Valid проверяет, что обе стороны положительны
func (d Dims) Valid() bool {
	return d.W > 0 && d.H > 0
}

// Area возвращает количество клеток в области
func (d Dims) Area() int {
	return d.W * d.H
}

// Contains проверяет, что клетка лежит в [0,W)x[0,H)
func (d Dims) Contains(v Vec2) bool {
	return v.X >= 0 && v.Y >= 0 && v.X < d.W && v.Y < d.H
}

// Index возвращает построчный индекс клетки внутри области.
// Вызывающий обязан проверить Contains.
func (d Dims) Index(v Vec2) int {
	return v.Y*d.W + v.X
}

// At обратное к Index
func (d Dims) At(idx int) Vec2 {
	return Vec2{X: idx % d.W, Y: idx / d.W}
}

// CeilDiv возвращает количество чанков размера chunk, покрывающих d по каждой оси.
func (d Dims) CeilDiv(chunk Dims) Dims {
	return Dims{
		W: (d.W + chunk.W - 1) / chunk.W,
		H: (d.H + chunk.H - 1) / chunk.H,
	}
}

func (d Dims) String() string {
	return fmt.Sprintf("%dx%d", d.W, d.H)
}
