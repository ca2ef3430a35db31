// Package governor admits item work under two budgets: a number of concurrent
// slots and a total number of bytes held by admitted items.
package governor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrItemTooLarge is returned when a single item could never fit in the
// memory gate, even with every other slot empty.
var ErrItemTooLarge = errors.New("item exceeds memory budget")

// Governor holds the two gates of one job. Waiters on each gate are served
// in FIFO order.
type Governor struct {
	slots    *semaphore.Weighted
	memory   *semaphore.Weighted
	maxSlots int64
	maxBytes int64

	mu        sync.Mutex
	usedSlots int64
	usedBytes int64
	peakSlots int64
	peakBytes int64
}

// New sizes the memory gate as memoryPerItem × concurrency so every slot can
// hold a worst-case item at the same time.
func New(concurrency int, memoryPerItem int64) (*Governor, error) {
	if concurrency <= 0 {
		return nil, fmt.Errorf("concurrency bound must be positive, got %d", concurrency)
	}
	if memoryPerItem <= 0 {
		return nil, fmt.Errorf("memory per item must be positive, got %d", memoryPerItem)
	}
	total := memoryPerItem * int64(concurrency)
	return &Governor{
		slots:    semaphore.NewWeighted(int64(concurrency)),
		memory:   semaphore.NewWeighted(total),
		maxSlots: int64(concurrency),
		maxBytes: total,
	}, nil
}

// Capacity returns the configured bounds.
func (g *Governor) Capacity() (slots int64, bytes int64) {
	return g.maxSlots, g.maxBytes
}

// Admissible reports whether an item of size bytes can ever be admitted.
func (g *Governor) Admissible(size int64) error {
	if size > g.maxBytes {
		return fmt.Errorf("%w: %d bytes > %d", ErrItemTooLarge, size, g.maxBytes)
	}
	return nil
}

// Acquire blocks until a slot is free and the memory gate has size bytes.
// Oversized items are rejected immediately instead of waiting forever. The
// only other error is ctx ending while waiting.
func (g *Governor) Acquire(ctx context.Context, size int64) (*Permit, error) {
	if size < 0 {
		size = 0
	}
	if err := g.Admissible(size); err != nil {
		return nil, err
	}
	if err := g.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if size > 0 {
		if err := g.memory.Acquire(ctx, size); err != nil {
			g.slots.Release(1)
			return nil, err
		}
	}

	g.mu.Lock()
	g.usedSlots++
	g.usedBytes += size
	g.peakSlots = max(g.peakSlots, g.usedSlots)
	g.peakBytes = max(g.peakBytes, g.usedBytes)
	g.mu.Unlock()

	return &Permit{g: g, size: size}, nil
}

// InUse returns the slots and bytes currently held.
func (g *Governor) InUse() (slots int64, bytes int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usedSlots, g.usedBytes
}

// Peak returns the highest slots and bytes held at once.
func (g *Governor) Peak() (slots int64, bytes int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peakSlots, g.peakBytes
}

func (g *Governor) release(size int64) {
	g.mu.Lock()
	g.usedSlots--
	g.usedBytes -= size
	g.mu.Unlock()

	if size > 0 {
		g.memory.Release(size)
	}
	g.slots.Release(1)
}

// Permit is one admitted item's share of both gates.
type Permit struct {
	g    *Governor
	size int64
	once sync.Once
}

// Size is the number of memory-gate bytes this permit holds.
func (p *Permit) Size() int64 {
	return p.size
}

// Release returns both tokens. Extra calls are no-ops.
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() { p.g.release(p.size) })
}
