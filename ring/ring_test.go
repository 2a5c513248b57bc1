package ring_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/engine/ring"
)

func TestCapacity(t *testing.T) {
	tests := []struct {
		capacity int
		expected int
	}{
		{capacity: 1, expected: 1},
		{capacity: 3, expected: 4},
		{capacity: 8, expected: 8},
		{capacity: 1000, expected: 1024},
	}
	for _, test := range tests {
		p, c := ring.New[int](test.capacity)
		assert.Equal(t, test.expected, p.Cap())
		assert.Equal(t, test.expected, c.Cap())
	}
	assert.Panics(t, func() { ring.New[int](0) })
}

// Overflow drops the newest message and keeps queued history intact.
func TestOverflowDropsNewest(t *testing.T) {
	p, c := ring.New[int](4)
	for i := 0; i < 10; i++ {
		pushed := p.Push(i)
		assert.Equal(t, i < 4, pushed, "push %d", i)
	}
	assert.Equal(t, uint64(6), p.Dropped())
	assert.Equal(t, uint64(6), c.Dropped())
	assert.Equal(t, 4, c.Len())

	for i := 0; i < 4; i++ {
		v, ok := c.Pop()
		assert.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := c.Pop()
	assert.False(t, ok)

	// space is available again after the consumer caught up.
	assert.True(t, p.Push(42))
	v, ok := c.Pop()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestDrainInto(t *testing.T) {
	tests := []struct {
		pushed    int
		staging   int
		n         int
		discarded int
	}{
		{pushed: 0, staging: 4, n: 0, discarded: 0},
		{pushed: 3, staging: 4, n: 3, discarded: 0},
		{pushed: 8, staging: 4, n: 4, discarded: 4},
		{pushed: 5, staging: 0, n: 0, discarded: 5},
	}
	for _, test := range tests {
		p, c := ring.New[int](8)
		for i := 0; i < test.pushed; i++ {
			p.Push(i)
		}
		dst := make([]int, test.staging)
		n, discarded := c.DrainInto(dst)
		assert.Equal(t, test.n, n)
		assert.Equal(t, test.discarded, discarded)
		assert.Equal(t, 0, c.Len())
		for i := 0; i < n; i++ {
			assert.Equal(t, i, dst[i])
		}
	}
}

func TestDrain(t *testing.T) {
	p, c := ring.New[int](4)
	for i := 0; i < 6; i++ {
		p.Push(i)
	}
	var got []int
	n := c.Drain(func(v int) { got = append(got, v) })
	assert.Equal(t, 4, n)
	assert.Equal(t, []int{0, 1, 2, 3}, got)
	assert.Equal(t, uint64(2), c.Dropped())
	assert.True(t, p.Push(4), "drained queue accepts messages")
}

func TestConcurrentOrder(t *testing.T) {
	const total = 100000
	p, c := ring.New[int](64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if p.Push(i) {
				i++
			}
		}
	}()

	expected := 0
	for expected < total {
		if v, ok := c.Pop(); ok {
			assert.Equal(t, expected, v)
			expected++
		}
	}
	wg.Wait()
	assert.Equal(t, 0, c.Len())
}

func TestNoAllocs(t *testing.T) {
	p, c := ring.New[[4]float64](16)
	dst := make([][4]float64, 8)
	allocs := testing.AllocsPerRun(1000, func() {
		for i := 0; i < 20; i++ {
			p.Push([4]float64{float64(i)})
		}
		c.DrainInto(dst)
	})
	assert.Zero(t, allocs)
}
