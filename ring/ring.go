// Package ring provides a fixed-capacity single-producer single-consumer
// queue. The queue is split at construction into a Producer and a Consumer
// handle, each side owns exactly one of them.
//
// Neither side ever blocks or allocates. When the queue is full, Push drops
// the message being pushed (the newest one) and increments the dropped
// counter. Messages already queued are never overwritten, so the consumer
// always observes a gap-free prefix of what was submitted, in submission
// order.
package ring

import (
	"fmt"
	"sync/atomic"
)

// cacheLine is a padding size that keeps producer and consumer cursors
// on separate cache lines.
const cacheLine = 64

type ring[T any] struct {
	_    [cacheLine]byte
	head atomic.Uint64 // read cursor, written by consumer
	_    [cacheLine - 8]byte
	tail atomic.Uint64 // write cursor, written by producer
	_    [cacheLine - 8]byte

	dropped atomic.Uint64
	mask    uint64
	buf     []T
}

// Producer is the writing end of the queue.
type Producer[T any] struct {
	r *ring[T]
}

// Consumer is the reading end of the queue.
type Consumer[T any] struct {
	r *ring[T]
}

// New allocates a queue and returns both of its ends. Capacity is rounded
// up to the next power of two. It panics if capacity is not positive.
func New[T any](capacity int) (*Producer[T], *Consumer[T]) {
	if capacity <= 0 {
		panic(fmt.Sprintf("ring: invalid capacity %d", capacity))
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	r := &ring[T]{
		mask: uint64(size - 1),
		buf:  make([]T, size),
	}
	return &Producer[T]{r: r}, &Consumer[T]{r: r}
}

// Push appends v to the queue. It returns false if the queue is full, in
// this case v is dropped and counted.
func (p *Producer[T]) Push(v T) bool {
	r := p.r
	t := r.tail.Load()
	if t-r.head.Load() > r.mask {
		r.dropped.Add(1)
		return false
	}
	r.buf[t&r.mask] = v
	r.tail.Store(t + 1)
	return true
}

// Dropped returns number of messages rejected because the queue was full.
func (p *Producer[T]) Dropped() uint64 {
	return p.r.dropped.Load()
}

// Len returns number of queued messages.
func (p *Producer[T]) Len() int {
	return p.r.len()
}

// Cap returns capacity of the queue.
func (p *Producer[T]) Cap() int {
	return len(p.r.buf)
}

// Pop removes the oldest message from the queue.
func (c *Consumer[T]) Pop() (T, bool) {
	r := c.r
	h := r.head.Load()
	if h == r.tail.Load() {
		var zero T
		return zero, false
	}
	i := h & r.mask
	v := r.buf[i]
	var zero T
	r.buf[i] = zero
	r.head.Store(h + 1)
	return v, true
}

// DrainInto moves queued messages into dst until either the queue is
// empty or dst is full. Messages that do not fit are removed from the
// queue and reported as discarded. Only messages published before the
// call are considered.
func (c *Consumer[T]) DrainInto(dst []T) (n, discarded int) {
	r := c.r
	h := r.head.Load()
	t := r.tail.Load()
	var zero T
	for ; h != t; h++ {
		i := h & r.mask
		if n < len(dst) {
			dst[n] = r.buf[i]
			n++
		} else {
			discarded++
		}
		r.buf[i] = zero
	}
	r.head.Store(h)
	return n, discarded
}

// Drain calls fn for every message published before the call, oldest
// first, and removes them from the queue.
func (c *Consumer[T]) Drain(fn func(T)) int {
	r := c.r
	h := r.head.Load()
	t := r.tail.Load()
	var zero T
	n := 0
	for ; h != t; h++ {
		i := h & r.mask
		v := r.buf[i]
		r.buf[i] = zero
		fn(v)
		n++
	}
	r.head.Store(h)
	return n
}

// Dropped returns number of messages rejected because the queue was full.
func (c *Consumer[T]) Dropped() uint64 {
	return c.r.dropped.Load()
}

// Len returns number of queued messages.
func (c *Consumer[T]) Len() int {
	return c.r.len()
}

// Cap returns capacity of the queue.
func (c *Consumer[T]) Cap() int {
	return len(c.r.buf)
}

// Reset discards all queued messages. It must be called by the consumer.
func (c *Consumer[T]) Reset() {
	c.DrainInto(nil)
}

func (r *ring[T]) len() int {
	return int(r.tail.Load() - r.head.Load())
}
