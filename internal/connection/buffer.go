package connection

import "sync"

// GrowableBuffer is an unbounded FIFO between the connection read loops
// and the router. Send never blocks, so a slow handler cannot stall the
// socket, and frames keep their arrival order.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int // index of the next item to receive
	closed bool

	totalReceived int64
	totalSent     int64
	highWater     int
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int
	HighWater     int // Largest backlog observed
	TotalReceived int64
	TotalSent     int64
}

// NewGrowableBuffer creates a buffer with room for initialCapacity items
// before its first allocation.
func NewGrowableBuffer[T any](initialCapacity int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	b := &GrowableBuffer[T]{items: make([]T, 0, initialCapacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends an item. Returns false if the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	// Reclaim the consumed prefix once it dominates the slice.
	if b.head > 0 && b.head*2 >= len(b.items) {
		n := copy(b.items, b.items[b.head:])
		var zero T
		for i := n; i < len(b.items); i++ {
			b.items[i] = zero
		}
		b.items = b.items[:n]
		b.head = 0
	}

	b.items = append(b.items, item)
	b.totalReceived++
	if n := len(b.items) - b.head; n > b.highWater {
		b.highWater = n
	}

	b.cond.Signal()
	return true
}

// Receive blocks until an item is available or the buffer is closed and
// drained. The bool is false only in the latter case.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.head == len(b.items) && !b.closed {
		b.cond.Wait()
	}
	return b.popLocked()
}

// TryReceive returns the next item without blocking.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.popLocked()
}

func (b *GrowableBuffer[T]) popLocked() (T, bool) {
	var zero T
	if b.head == len(b.items) {
		return zero, false
	}
	item := b.items[b.head]
	b.items[b.head] = zero
	b.head++
	b.totalSent++
	if b.head == len(b.items) {
		b.items = b.items[:0]
		b.head = 0
	}
	return item, true
}

// Close stops further sends. Receivers get the remaining items first.
// Close is idempotent.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Len returns the current backlog.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items) - b.head
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:         len(b.items) - b.head,
		HighWater:     b.highWater,
		TotalReceived: b.totalReceived,
		TotalSent:     b.totalSent,
	}
}
