package maskfifo

import "errors"

var (
	ErrCapacityTooSmall = errors.New("maskfifo: capacity must be at least 2")
	ErrNotPowerOfTwo    = errors.New("maskfifo: capacity must be a power of two")
)

// Fifo is the masked-pointer reference baseline: same one-slot-empty
// convention and latched read output as the any-capacity queue, but the
// pointer wraparound is a bit mask, so only power-of-two capacities are
// accepted. Kept simple on purpose; it exists for comparison.
type Fifo[T any] struct {
	buffer   []T
	mask     uint64
	capacity uint64
	wp       uint64
	rp       uint64
	out      T
	tick     uint64
}

// New creates a Fifo with the given capacity, which must be a power of
// two and at least 2. Usable occupancy is capacity-1.
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
		capacity: capacity,
	}, nil
}

// Empty reports wp == rp.
func (f *Fifo[T]) Empty() bool {
	return f.wp == f.rp
}

// Full reports that advancing the write pointer would collide with the
// read pointer.
func (f *Fifo[T]) Full() bool {
	return (f.wp+1)&f.mask == f.rp
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
		f.buffer[wp] = writeData
		f.wp = (wp + 1) & f.mask
		wrote = true
	}
	if readEnable && !empty {
		f.out = f.buffer[rp]
		f.rp = (rp + 1) & f.mask
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
	return (f.wp - f.rp) & f.mask
}

// FreeSlots returns how many more writes will be admitted before full.
func (f *Fifo[T]) FreeSlots() uint64 {
	return f.capacity - 1 - f.UsedSlots()
}

// Capacity returns the total slot count, including the reserved slot.
func (f *Fifo[T]) Capacity() uint64 {
	return f.capacity
}

// Ticks returns the number of ticks since construction.
func (f *Fifo[T]) Ticks() uint64 {
	return f.tick
}
