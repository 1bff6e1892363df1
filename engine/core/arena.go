package core

import (
	"fmt"
	"sync"
)

// Handle references an object owned by an Arena. The zero Handle is never valid.
type Handle struct {
	index      uint32
	generation uint32
}

// IsValid reports whether the handle was ever issued. It does not check staleness.
func (h Handle) IsValid() bool {
	return h.generation != 0
}

func (h Handle) Index() uint32 {
	return h.index
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.index, h.generation)
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Arena owns values of type T and hands out generation-checked handles to them.
// Released slots are reused; a handle to a released slot stays invalid forever.
type Arena[T any] struct {
	mu    sync.RWMutex
	slots []slot[T]
	free  []uint32
	live  int
}

func NewArena[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		slots: make([]slot[T], 0, capacity),
	}
}

// Acquire stores value in a free slot, or in a new one if none is free.
func (a *Arena[T]) Acquire(value T) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.live++
	if n := len(a.free); n > 0 {
		i := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[i]
		s.value = value
		s.occupied = true
		return Handle{index: i, generation: s.generation}
	}
	a.slots = append(a.slots, slot[T]{value: value, generation: 1, occupied: true})
	return Handle{index: uint32(len(a.slots) - 1), generation: 1}
}

func (a *Arena[T]) Get(h Handle) (T, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var zero T
	if !a.check(h) {
		return zero, fmt.Errorf("arena get %s: %w", h, ErrInvalidHandle)
	}
	return a.slots[h.index].value, nil
}

// Release frees the slot and returns the value it held so the caller can destroy it.
func (a *Arena[T]) Release(h Handle) (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	if !a.check(h) {
		return zero, fmt.Errorf("arena release %s: %w", h, ErrInvalidHandle)
	}
	s := &a.slots[h.index]
	value := s.value
	s.value = zero
	s.occupied = false
	s.generation++
	a.free = append(a.free, h.index)
	a.live--
	return value, nil
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}

// Drain releases every live value in reverse acquisition-slot order and passes it to fn.
func (a *Arena[T]) Drain(fn func(h Handle, value T)) {
	a.mu.Lock()
	type entry struct {
		h Handle
		v T
	}
	entries := make([]entry, 0, a.live)
	for i := len(a.slots) - 1; i >= 0; i-- {
		s := &a.slots[i]
		if !s.occupied {
			continue
		}
		entries = append(entries, entry{h: Handle{index: uint32(i), generation: s.generation}, v: s.value})
		var zero T
		s.value = zero
		s.occupied = false
		s.generation++
		a.free = append(a.free, uint32(i))
	}
	a.live = 0
	a.mu.Unlock()

	for _, e := range entries {
		fn(e.h, e.v)
	}
}

func (a *Arena[T]) check(h Handle) bool {
	if !h.IsValid() || int(h.index) >= len(a.slots) {
		return false
	}
	s := a.slots[h.index]
	return s.occupied && s.generation == h.generation
}
