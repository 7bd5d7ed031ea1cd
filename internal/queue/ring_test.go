package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_PushPop(t *testing.T) {
	r := NewRing[string](4)

	_, ok := r.Pop()
	assert.False(t, ok, "pop on empty ring should report no element")

	r.Push("a")
	r.Push("b")
	require.Equal(t, 2, r.Len())

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", v)

	v, ok = r.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", v)

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, uint64(0), r.Dropped())
}

func TestRing_DropOldest(t *testing.T) {
	// Capacity 3, push a,b,c,d -> contents b,c,d, one drop.
	r := NewRing[string](3)
	for _, s := range []string{"a", "b", "c", "d"} {
		r.Push(s)
	}

	require.Equal(t, 3, r.Len())
	assert.Equal(t, uint64(1), r.Dropped())

	var got []string
	for {
		v, ok := r.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []string{"b", "c", "d"}, got)
}

func TestRing_DropCountExact(t *testing.T) {
	const capacity = 8
	const extra = 5

	r := NewRing[int](capacity)
	for i := 0; i < capacity+extra; i++ {
		r.Push(i)
	}

	assert.Equal(t, uint64(extra), r.Dropped())
	assert.Equal(t, capacity, r.Len())

	// Surviving elements are the last `capacity` in original order.
	for want := extra; want < capacity+extra; want++ {
		v, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestRing_WrapAround(t *testing.T) {
	r := NewRing[int](3)
	for round := 0; round < 10; round++ {
		r.Push(round * 2)
		r.Push(round*2 + 1)
		a, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, round*2, a)
		b, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, round*2+1, b)
	}
	assert.Equal(t, uint64(0), r.Dropped())
}

func TestRing_ClampedCapacity(t *testing.T) {
	r := NewRing[int](0)
	assert.Equal(t, 1, r.Cap())

	r.Push(1)
	r.Push(2)
	assert.Equal(t, uint64(1), r.Dropped())

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestRing_Peek(t *testing.T) {
	r := NewRing[string](2)
	_, ok := r.Peek()
	assert.False(t, ok)

	r.Push("x")
	v, ok := r.Peek()
	require.True(t, ok)
	assert.Equal(t, "x", v)
	assert.Equal(t, 1, r.Len(), "peek must not consume")
}
