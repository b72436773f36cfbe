package fifoqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapacityValidation(t *testing.T) {
	_, err := NewFifoQueue(0)
	require.Error(t, err)

	_, err = NewFifoQueue(-1)
	require.Error(t, err)

	_, err = NewFifoQueue(10, WithLengthObserver(nil))
	require.Error(t, err)
}

func TestFifoOrder(t *testing.T) {
	queue, err := NewFifoQueue(10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.True(t, queue.Push(i))
	}
	assert.Equal(t, 5, queue.Len())

	front, ok := queue.Front()
	require.True(t, ok)
	assert.Equal(t, 0, front)

	for i := 0; i < 5; i++ {
		element, ok := queue.Pop()
		require.True(t, ok)
		assert.Equal(t, i, element)
	}

	_, ok = queue.Pop()
	assert.False(t, ok)
	_, ok = queue.Front()
	assert.False(t, ok)
}

func TestCapacityLimit(t *testing.T) {
	queue, err := NewFifoQueue(3)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.True(t, queue.Push(i))
	}
	assert.False(t, queue.Push(4))
	assert.Equal(t, 3, queue.Len())

	// popping one frees one slot
	_, ok := queue.Pop()
	require.True(t, ok)
	assert.True(t, queue.Push(4))
}

func TestLengthObserver(t *testing.T) {
	var mu sync.Mutex
	var observed []int
	queue, err := NewFifoQueue(10, WithLengthObserver(func(length int) {
		mu.Lock()
		defer mu.Unlock()
		observed = append(observed, length)
	}))
	require.NoError(t, err)

	queue.Push("a")
	queue.Push("b")
	queue.Pop()

	assert.Equal(t, []int{1, 2, 1}, observed)
}

func TestConcurrentAccess(t *testing.T) {
	queue, err := NewFifoQueue(1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				queue.Push(j)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1000, queue.Len())

	popped := 0
	for {
		_, ok := queue.Pop()
		if !ok {
			break
		}
		popped++
	}
	assert.Equal(t, 1000, popped)
}
