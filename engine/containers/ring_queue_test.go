package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueOrder(t *testing.T) {
	rq := NewRingQueue[int](3)
	require.NoError(t, rq.Enqueue(1))
	require.NoError(t, rq.Enqueue(2))
	require.NoError(t, rq.Enqueue(3))
	assert.True(t, rq.IsFull())
	assert.ErrorIs(t, rq.Enqueue(4), ErrQueueFull)

	v, err := rq.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, rq.Enqueue(4))
	head, err := rq.Peek()
	require.NoError(t, err)
	assert.Equal(t, 2, head)

	var seen []int
	rq.Each(func(v int) { seen = append(seen, v) })
	assert.Equal(t, []int{2, 3, 4}, seen)
}

func TestRingQueuePushDropsOldest(t *testing.T) {
	rq := NewRingQueue[string](2)
	rq.Push("a")
	rq.Push("b")
	rq.Push("c")
	assert.Equal(t, 2, rq.Len())

	var seen []string
	rq.Each(func(v string) { seen = append(seen, v) })
	assert.Equal(t, []string{"b", "c"}, seen)
}

func TestRingQueueEmpty(t *testing.T) {
	rq := NewRingQueue[int](1)
	_, err := rq.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
	_, err = rq.Peek()
	assert.ErrorIs(t, err, ErrQueueEmpty)

	zero := NewRingQueue[int](0)
	zero.Push(1)
	assert.True(t, zero.IsEmpty())
}
