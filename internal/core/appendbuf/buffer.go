// Package appendbuf provides a multi-writer, single-drainer append buffer.
//
// Writers on any goroutine Append; one goroutine at a time swaps the
// accumulated values out with DrainInto. The buffer does not enforce the
// single-drainer rule.
package appendbuf

import "sync"

// Buffer is a mutex-guarded append-only slice.
type Buffer[T any] struct {
	mu    sync.Mutex
	items []T
}

// New returns a Buffer with room for capacity values before it grows.
func New[T any](capacity int) *Buffer[T] {
	return &Buffer[T]{items: make([]T, 0, capacity)}
}

// Append pushes v. Safe from any goroutine.
func (b *Buffer[T]) Append(v T) {
	b.mu.Lock()
	b.items = append(b.items, v)
	b.mu.Unlock()
}

// DrainInto hands the buffered values to the caller and keeps dst's backing
// array (truncated) as the new storage. Values appended concurrently land on
// exactly one side of the swap.
func (b *Buffer[T]) DrainInto(dst []T) []T {
	dst = dst[:0]
	b.mu.Lock()
	out := b.items
	b.items = dst
	b.mu.Unlock()
	return out
}

// Len reports how many values are waiting to be drained.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	n := len(b.items)
	b.mu.Unlock()
	return n
}
