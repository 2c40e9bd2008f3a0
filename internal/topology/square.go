package topology

import "github.com/annel0/sparse-tilemap/internal/vec"

// squareDirections порядок: восток, север, запад, юг
var squareDirections = [4]vec.Vec2{
	{X: 1, Y: 0},
	{X: 0, Y: -1},
	{X: -1, Y: 0},
	{X: 0, Y: 1},
}

// Square ортогональная сетка с 4-соседством.
type Square struct{}

func (Square) Kind() Kind { return KindSquare }

// Neighbors возвращает четырёх ортогональных соседей
func (Square) Neighbors(c vec.Vec2) []vec.Vec2 {
	result := make([]vec.Vec2, 0, len(squareDirections))
	for _, dir := range squareDirections {
		result = append(result, c.Add(dir))
	}
	return result
}

// Distance манхэттенское расстояние
func (Square) Distance(a, b vec.Vec2) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func (Square) ToChunk(c vec.Vec2, chunk vec.Dims) (vec.Vec2, vec.Vec2, error) {
	return decompose(c, chunk)
}

func (Square) FromChunk(chunkPos, local vec.Vec2, chunk vec.Dims) vec.Vec2 {
	return compose(chunkPos, local, chunk)
}
