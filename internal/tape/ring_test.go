package tape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingPushAndLast(t *testing.T) {
	r := NewRing[int](3)
	assert.Equal(t, 3, r.Cap())
	assert.Zero(t, r.Len())
	assert.Nil(t, r.Last(5))

	r.Push(1)
	r.Push(2)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []int{1, 2}, r.All())
	assert.Equal(t, []int{2}, r.Last(1))
}

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.All())
	assert.Equal(t, []int{4, 5}, r.Last(2))
	assert.Equal(t, []int{3, 4, 5}, r.Last(100))
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing[string](0)
	r.Push("a")
	r.Push("b")
	assert.Equal(t, 1, r.Cap())
	assert.Equal(t, []string{"b"}, r.All())
}
