package fifo

// FifoValidationInterface is the tick surface every queue implementation
// exposes. The packages under pkg/ assert against it at compile time to
// keep their signatures aligned; the simulation harness also drives
// implementations through it at runtime.
type FifoValidationInterface[T any] interface {
	// Tick runs one clock step. Requests are admitted against the state
	// at the start of the tick; readData is the registered output and
	// holds its value across idle and rejected reads.
	Tick(reset, writeEnable bool, writeData T, readEnable bool) (readData T, full, empty bool)

	// TryWrite runs one tick carrying only a write request and reports
	// whether the element was admitted.
	TryWrite(T) bool

	// TryRead runs one tick carrying only a read request. If the queue is
	// empty it should return an empty T and false, otherwise true.
	TryRead() (T, bool)

	// Full reports that the next write would be rejected.
	Full() bool

	// Empty reports that the next read would be rejected.
	Empty() bool

	// FreeSlots returns how many more elements can be written before the queue is full.
	FreeSlots() uint64

	// UsedSlots returns how many elements are currently queued.
	UsedSlots() uint64

	// Capacity returns the total slot count, which for one-slot-empty
	// designs is one more than the usable occupancy.
	Capacity() uint64

	// ReadData returns the current value of the read output register.
	ReadData() T

	// Reset runs one tick with the reset line asserted.
	Reset()
}
