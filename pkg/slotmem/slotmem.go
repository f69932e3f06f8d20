package slotmem

import "errors"

// ErrZeroSize is returned when an Array is requested with no slots.
var ErrZeroSize = errors.New("slotmem: size must be at least 1")

// Array is a passive fixed-size slot store. It carries no occupancy
// tracking and no admission logic; callers present indexes they have
// already validated. Read always re-samples the current slot content,
// so holding a previously read value across writes is the caller's job.
type Array[T any] struct {
	slots []T
}

// New allocates an Array with the given number of slots.
func New[T any](size uint64) (*Array[T], error) {
	if size < 1 {
		return nil, ErrZeroSize
	}
	return &Array[T]{slots: make([]T, size)}, nil
}

// Read returns the current content of slot i.
func (a *Array[T]) Read(i uint64) T {
	return a.slots[i]
}

// Write replaces the content of slot i.
func (a *Array[T]) Write(i uint64, v T) {
	a.slots[i] = v
}

// Len returns the number of slots.
func (a *Array[T]) Len() uint64 {
	return uint64(len(a.slots))
}

// Snapshot returns a copy of all slot contents.
func (a *Array[T]) Snapshot() []T {
	out := make([]T, len(a.slots))
	copy(out, a.slots)
	return out
}
