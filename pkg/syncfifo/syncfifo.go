package syncfifo

import (
	"errors"

	"github.com/i5heu/GoFifoSim/pkg/slotmem"
)

// ErrCapacityTooSmall is returned for capacities below 2. One slot is
// always sacrificed to distinguish full from empty, so a single-slot
// queue could never hold an element.
var ErrCapacityTooSmall = errors.New("syncfifo: capacity must be at least 2")

// Probe receives usage-violation events. A write request while full and
// a read request while empty are guarded no-ops; the probe only observes
// them. Implementations must not touch the queue.
type Probe interface {
	WriteWhileFull(tick uint64)
	ReadWhileEmpty(tick uint64)
}

// Fifo is a synchronous fixed-capacity FIFO that is correct for ANY
// capacity >= 2, not only powers of two. Pointers advance by conditional
// subtraction instead of bit masking, and one slot stays unused so that
// wp == rp always means empty. All state changes happen in Tick, which
// models one clock step: requests are admitted against the state at the
// start of the tick, and both sides commit together. The read output is
// a register; it holds its last value across idle and rejected reads.
type Fifo[T any] struct {
	store    *slotmem.Array[T]
	capacity uint64
	wp       uint64
	rp       uint64
	out      T
	tick     uint64
	probe    Probe
}

// New creates a Fifo with the given total slot count. Usable occupancy
// is capacity-1.
func New[T any](capacity uint64) (*Fifo[T], error) {
	if capacity < 2 {
		return nil, ErrCapacityTooSmall
	}
	store, err := slotmem.New[T](capacity)
	if err != nil {
		return nil, err
	}
	return &Fifo[T]{store: store, capacity: capacity}, nil
}

// NewWithProbe creates a Fifo that reports usage violations to p.
func NewWithProbe[T any](capacity uint64, p Probe) (*Fifo[T], error) {
	f, err := New[T](capacity)
	if err != nil {
		return nil, err
	}
	f.probe = p
	return f, nil
}

// wrap folds a pointer that has just been incremented back to 0. The
// increment is always by one from a value below capacity, so a single
// equality test replaces the modulo and works for odd capacities.
func (f *Fifo[T]) wrap(x uint64) uint64 {
	if x == f.capacity {
		return x - f.capacity
	}
	return x
}

// Empty reports wp == rp. Pure; never mutates.
func (f *Fifo[T]) Empty() bool {
	return f.wp == f.rp
}

// Full reports that the write pointer is one step behind the read
// pointer. Pure; never mutates.
func (f *Fifo[T]) Full() bool {
	return f.wrap(f.wp+1) == f.rp
}

// step advances one tick. Reset pre-empts everything, including the
// violation probes. Write and read admission are both decided from the
// pre-tick snapshot, so a simultaneous write+read at occupancy 1 passes
// the element through without the two sides unblocking each other.
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

	if writeEnable {
		if full {
			if f.probe != nil {
				f.probe.WriteWhileFull(f.tick)
			}
		} else {
			f.store.Write(wp, writeData)
			f.wp = f.wrap(wp + 1)
			wrote = true
		}
	}
	if readEnable {
		if empty {
			if f.probe != nil {
				f.probe.ReadWhileEmpty(f.tick)
			}
		} else {
			// wp != rp whenever both sides are admitted, so the
			// same-tick write above can never land in this slot.
			f.out = f.store.Read(rp)
			f.rp = f.wrap(rp + 1)
			read = true
		}
	}
	return wrote, read
}

// Tick runs one clock step with the given request lines and returns the
// registered read output together with the post-tick flags.
func (f *Fifo[T]) Tick(reset, writeEnable bool, writeData T, readEnable bool) (readData T, full, empty bool) {
	f.step(reset, writeEnable, writeData, readEnable)
	return f.out, f.Full(), f.Empty()
}

// TryWrite runs one tick carrying only a write request and reports
// whether the element was admitted.
func (f *Fifo[T]) TryWrite(data T) bool {
	wrote, _ := f.step(false, true, data, false)
	return wrote
}

// TryRead runs one tick carrying only a read request. On success it
// returns the element just latched; otherwise the zero value and false.
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
	if f.wp >= f.rp {
		return f.wp - f.rp
	}
	return f.capacity - f.rp + f.wp
}

// FreeSlots returns how many more writes will be admitted before full.
func (f *Fifo[T]) FreeSlots() uint64 {
	return f.capacity - 1 - f.UsedSlots()
}

// Capacity returns the total slot count, including the reserved slot.
func (f *Fifo[T]) Capacity() uint64 {
	return f.capacity
}

// Ticks returns the number of ticks since construction. Reset does not
// clear it, so violation events stay globally ordered across resets.
func (f *Fifo[T]) Ticks() uint64 {
	return f.tick
}

// Snapshot returns a copy of the backing storage. Slots outside the
// wp/rp window hold stale elements; reset does not clear them.
func (f *Fifo[T]) Snapshot() []T {
	return f.store.Snapshot()
}
