package util

import (
	"github.com/aquilax/go-perlin"
)

// Noise генератор шума Перлина для заполнения карты рельефом
type Noise struct {
	perlin *perlin.Perlin
	scale  float64
}

// NewNoise создаёт генератор. scale - размер "пятна" рельефа в клетках.
func NewNoise(seed int64, scale float64) *Noise {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	if scale <= 0 {
		scale = 1
	}
	return &Noise{
		perlin: perlin.NewPerlin(alpha, beta, n, seed),
		scale:  scale,
	}
}

// At возвращает значение шума для клетки в диапазоне [0, 1]
func (n *Noise) At(x, y int) float64 {
	// Получаем значение шума (примерно от -1 до 1)
	v := n.perlin.Noise2D(float64(x)/n.scale, float64(y)/n.scale)

	// Преобразуем в диапазон от 0 до 1
	v = (v + 1.0) / 2.0
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Level квантует шум клетки в одно из levels значений [0, levels)
func (n *Noise) Level(x, y, levels int) int {
	if levels <= 1 {
		return 0
	}
	l := int(n.At(x, y) * float64(levels))
	if l >= levels {
		l = levels - 1
	}
	return l
}
