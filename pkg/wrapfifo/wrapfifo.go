package wrapfifo

import "errors"

var (
	ErrCapacityTooSmall = errors.New("wrapfifo: capacity must be at least 2")
	ErrNotPowerOfTwo    = errors.New("wrapfifo: capacity must be a power of two")
)

// Fifo is the phase-bit reference baseline. Pointers free-run over
// [0, 2*capacity): the low bits index the buffer and the extra top bit
// tracks which lap each pointer is on. Equal pointers mean empty; equal
// indexes on opposite laps mean full. Unlike the one-slot-empty queues,
// every slot is usable. Power-of-two capacities only.
type Fifo[T any] struct {
	buffer   []T
	mask     uint64 // capacity - 1, indexes the buffer
	span     uint64 // 2*capacity - 1, wraps the free-running pointers
	capacity uint64
	wp       uint64
	rp       uint64
	out      T
	tick     uint64
}

// New creates a Fifo with the given capacity, which must be a power of
// two and at least 2. All capacity slots are usable.
func New[T any](capacity uint64) (*Fifo[T], error) {
	if capacity < 2 {
		return nil, ErrCapacityTooSmall
	}
	if capacity&(capacity-1) != 0 {
		return nil, ErrNotPowerOfTwo
	}
	return &Fifo[T]{
		buffer:   make([]T, capacity),
		mask:     capacity - 1,
		span:     2*capacity - 1,
		capacity: capacity,
	}, nil
}

// Empty reports that both pointers sit on the same index and lap.
func (f *Fifo[T]) Empty() bool {
	return f.wp == f.rp
}

// Full reports that the pointers share an index but differ in lap, which
// is a single XOR against the capacity bit.
func (f *Fifo[T]) Full() bool {
	return f.wp^f.rp == f.capacity
}

func (f *Fifo[T]) step(reset, writeEnable bool, writeData T, readEnable bool) (wrote, read bool) {
	f.tick++
	if reset {
		f.wp = 0
		f.rp = 0
		var zero T
		f.out = zero
		return false, false
	}

	full := f.Full()
	empty := f.Empty()
	wp, rp := f.wp, f.rp

	if writeEnable && !full {
		f.buffer[wp&f.mask] = writeData
		f.wp = (wp + 1) & f.span
		wrote = true
	}
	if readEnable && !empty {
		f.out = f.buffer[rp&f.mask]
		f.rp = (rp + 1) & f.span
		read = true
	}
	return wrote, read
}

// Tick runs one clock step and returns the registered read output with
// the post-tick flags.
func (f *Fifo[T]) Tick(reset, writeEnable bool, writeData T, readEnable bool) (readData T, full, empty bool) {
	f.step(reset, writeEnable, writeData, readEnable)
	return f.out, f.Full(), f.Empty()
}

// TryWrite runs one tick carrying only a write request.
func (f *Fifo[T]) TryWrite(data T) bool {
	wrote, _ := f.step(false, true, data, false)
	return wrote
}

// TryRead runs one tick carrying only a read request.
func (f *Fifo[T]) TryRead() (T, bool) {
	var zero T
	_, read := f.step(false, false, zero, true)
	if !read {
		return zero, false
	}
	return f.out, true
}

// Reset runs one tick with the reset line asserted.
func (f *Fifo[T]) Reset() {
	var zero T
	f.step(true, false, zero, false)
}

// ReadData returns the current value of the read output register.
func (f *Fifo[T]) ReadData() T {
	return f.out
}

// UsedSlots returns the current occupancy.
func (f *Fifo[T]) UsedSlots() uint64 {
	return (f.wp - f.rp) & f.span
}

// FreeSlots returns how many more writes will be admitted before full.
func (f *Fifo[T]) FreeSlots() uint64 {
	return f.capacity - f.UsedSlots()
}

// Capacity returns the slot count; every slot is usable.
func (f *Fifo[T]) Capacity() uint64 {
	return f.capacity
}

// Ticks returns the number of ticks since construction.
func (f *Fifo[T]) Ticks() uint64 {
	return f.tick
}
