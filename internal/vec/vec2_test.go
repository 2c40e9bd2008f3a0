package vec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDimsIndexAt(t *testing.T) {
	d := Dims{W: 5, H: 3}
	for idx := 0; idx < d.Area(); idx++ {
		v := d.At(idx)
		assert.True(t, d.Contains(v))
		assert.Equal(t, idx, d.Index(v))
	}
	assert.False(t, d.Contains(Vec2{X: 5, Y: 0}))
	assert.False(t, d.Contains(Vec2{X: 0, Y: -1}))
}

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, Dims{W: 3, H: 3}, Dims{W: 10, H: 10}.CeilDiv(Dims{W: 4, H: 4}))
	assert.Equal(t, Dims{W: 2, H: 1}, Dims{W: 8, H: 4}.CeilDiv(Dims{W: 4, H: 4}))
	assert.False(t, Dims{W: 0, H: 4}.Valid())
}

func TestVec2Order(t *testing.T) {
	assert.True(t, Vec2{X: 9, Y: 0}.Less(Vec2{X: 0, Y: 1}))
	assert.True(t, Vec2{X: 1, Y: 1}.Less(Vec2{X: 2, Y: 1}))
	assert.Equal(t, Vec2{X: 3, Y: -1}, Vec2{X: 1, Y: 1}.Add(Vec2{X: 2, Y: -2}))
	assert.True(t, Vec2{X: 3, Y: -1}.IsNegative())
	assert.Equal(t, "(3,4)", Vec2{X: 3, Y: 4}.String())
}
