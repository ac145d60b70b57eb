package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingEvictsOldest(t *testing.T) {
	r := New[int](3)
	for i := 1; i <= 3; i++ {
		_, evicted := r.Push(i)
		assert.False(t, evicted)
	}

	old, evicted := r.Push(4)
	assert.True(t, evicted)
	assert.Equal(t, 1, old)
	assert.Equal(t, []int{2, 3, 4}, r.Items())

	latest, ok := r.Latest()
	assert.True(t, ok)
	assert.Equal(t, 4, latest)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
}

func TestRingEmpty(t *testing.T) {
	r := New[string](2)
	_, ok := r.Latest()
	assert.False(t, ok)
	assert.Empty(t, r.Items())
}

func TestRingWrapsManyTimes(t *testing.T) {
	r := New[int](10)
	for i := 0; i < 105; i++ {
		r.Push(i)
	}
	items := r.Items()
	assert.Len(t, items, 10)
	assert.Equal(t, 95, items[0])
	assert.Equal(t, 104, items[9])
}
