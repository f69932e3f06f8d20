package chanfifo

import "errors"

var ErrCapacityTooSmall = errors.New("chanfifo: capacity must be at least 1")

// Fifo puts a buffered channel behind the tick surface. The channel is
// the storage and the ordering guarantee; admission is decided from the
// channel length at the start of the tick so that a full queue still
// rejects a write even when the same tick carries a read.
type Fifo[T any] struct {
	ch       chan T
	capacity uint64
	out      T
	tick     uint64
}

func New[T any](capacity uint64) (*Fifo[T], error) {
	// A zero-capacity Go channel is an unbuffered synchronization
	// primitive, not a zero-capacity buffer.
	if capacity < 1 {
		return nil, ErrCapacityTooSmall
	}
	return &Fifo[T]{
		ch:       make(chan T, capacity),
		capacity: capacity,
	}, nil
}

func (f *Fifo[T]) Empty() bool {
	return len(f.ch) == 0
}

func (f *Fifo[T]) Full() bool {
	return len(f.ch) == cap(f.ch)
}

func (f *Fifo[T]) step(reset, writeEnable bool, writeData T, readEnable bool) (wrote, read bool) {
	f.tick++
	if reset {
	drain:
		for {
			select {
			case <-f.ch:
			default:
				break drain
			}
		}
		var zero T
		f.out = zero
		return false, false
	}

	full := f.Full()
	empty := f.Empty()

	if writeEnable && !full {
		f.ch <- writeData
		wrote = true
	}
	if readEnable && !empty {
		f.out = <-f.ch
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

func (f *Fifo[T]) TryWrite(data T) bool {
	wrote, _ := f.step(false, true, data, false)
	return wrote
}

func (f *Fifo[T]) TryRead() (T, bool) {
	var zero T
	_, read := f.step(false, false, zero, true)
	if !read {
		return zero, false
	}
	return f.out, true
}

func (f *Fifo[T]) Reset() {
	var zero T
	f.step(true, false, zero, false)
}

// ReadData returns the current value of the read output register.
func (f *Fifo[T]) ReadData() T {
	return f.out
}

func (f *Fifo[T]) UsedSlots() uint64 {
	return uint64(len(f.ch))
}

func (f *Fifo[T]) FreeSlots() uint64 {
	return uint64(cap(f.ch) - len(f.ch))
}

func (f *Fifo[T]) Capacity() uint64 {
	return f.capacity
}

// Ticks returns the number of ticks since construction.
func (f *Fifo[T]) Ticks() uint64 {
	return f.tick
}
