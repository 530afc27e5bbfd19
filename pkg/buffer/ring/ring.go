// Package ring 实现了一个固定容量、满时覆盖最旧元素的环形缓冲区。
package ring

import (
	"math/bits"
	"sync"
)

// DefaultCapacity 是环形缓冲区的默认容量。
const DefaultCapacity = 64

// Buffer 是一个固定容量的泛型环形缓冲区。
// 写满后继续写入会覆盖最旧的元素，适合保存“最近 N 条记录”。
//
// 所有方法都可以并发调用。
type Buffer[T any] struct {
	mu    sync.RWMutex
	buf   []T
	size  int // 容量（始终为 2 的幂）
	w     int // 下一次写入位置
	count int // 当前元素个数
}

// New 创建一个给定容量的 Buffer。
// capacity 会被向上取整为 2 的幂；capacity <= 0 时使用 DefaultCapacity。
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	capacity = ceilToPowerOfTwo(capacity)
	return &Buffer[T]{
		buf:  make([]T, capacity),
		size: capacity,
	}
}

// Push 写入一个元素，必要时覆盖最旧的元素。
func (rb *Buffer[T]) Push(v T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buf[rb.w] = v
	rb.w = (rb.w + 1) & (rb.size - 1)
	if rb.count < rb.size {
		rb.count++
	}
}

// Collect 按从旧到新的顺序返回当前所有元素的副本。
func (rb *Buffer[T]) Collect() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	out := make([]T, 0, rb.count)
	start := (rb.w - rb.count + rb.size) & (rb.size - 1)
	for i := 0; i < rb.count; i++ {
		out = append(out, rb.buf[(start+i)&(rb.size-1)])
	}
	return out
}

// Len 返回当前元素个数。
func (rb *Buffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Cap 返回缓冲区容量。
func (rb *Buffer[T]) Cap() int {
	return rb.size
}

// ceilToPowerOfTwo 将 n 向上取整为 2 的幂。
func ceilToPowerOfTwo(n int) int {
	if n <= 2 {
		return 2
	}
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len(uint(n))
}
