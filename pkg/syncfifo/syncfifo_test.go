package syncfifo

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingProbe collects violation events for assertions.
type recordingProbe struct {
	fullWrites []uint64
	emptyReads []uint64
}

func (p *recordingProbe) WriteWhileFull(tick uint64) { p.fullWrites = append(p.fullWrites, tick) }
func (p *recordingProbe) ReadWhileEmpty(tick uint64) { p.emptyReads = append(p.emptyReads, tick) }

func TestNewRejectsTinyCapacities(t *testing.T) {
	for _, capacity := range []uint64{0, 1} {
		if _, err := New[int](capacity); !errors.Is(err, ErrCapacityTooSmall) {
			t.Fatalf("Expected ErrCapacityTooSmall for capacity %d, got %v", capacity, err)
		}
	}
	// 2 is the smallest capacity that can hold an element.
	f, err := New[int](2)
	if err != nil {
		t.Fatalf("New(2) failed: %v", err)
	}
	if f.Capacity() != 2 || f.FreeSlots() != 1 {
		t.Fatalf("Expected capacity 2 with 1 usable slot, got capacity=%d free=%d", f.Capacity(), f.FreeSlots())
	}
}

func TestFreshState(t *testing.T) {
	f, err := New[uint64](9)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !f.Empty() {
		t.Fatal("A fresh queue must be empty")
	}
	if f.Full() {
		t.Fatal("A fresh queue must not be full")
	}
	if f.UsedSlots() != 0 {
		t.Fatalf("Expected UsedSlots=0, got %d", f.UsedSlots())
	}
	if f.FreeSlots() != 8 {
		t.Fatalf("Expected FreeSlots=8 (one slot reserved), got %d", f.FreeSlots())
	}
	if f.ReadData() != 0 {
		t.Fatalf("Expected zero read register, got %d", f.ReadData())
	}
}

// Eleven write attempts into capacity 8: exactly 7 are admitted, the
// rest are rejected and reported, and full stays asserted throughout.
func TestElevenWritesIntoCapacityEight(t *testing.T) {
	probe := &recordingProbe{}
	f, err := NewWithProbe[int](8, probe)
	if err != nil {
		t.Fatalf("NewWithProbe failed: %v", err)
	}

	accepted := 0
	for i := 0; i < 11; i++ {
		if f.TryWrite(100 + i) {
			accepted++
		}
		if i == 0 && f.Empty() {
			t.Fatal("Empty must deassert after the first accepted write")
		}
		if accepted == 7 && !f.Full() {
			t.Fatalf("Full must assert once 7 elements are held (write attempt %d)", i+1)
		}
	}

	if accepted != 7 {
		t.Fatalf("Expected exactly 7 admitted writes, got %d", accepted)
	}
	if len(probe.fullWrites) != 4 {
		t.Fatalf("Expected 4 write-while-full events, got %d", len(probe.fullWrites))
	}
	if f.UsedSlots() != 7 || f.FreeSlots() != 0 {
		t.Fatalf("Expected used=7 free=0, got used=%d free=%d", f.UsedSlots(), f.FreeSlots())
	}

	// Drain: the 7 admitted elements come back in write order.
	for i := 0; i < 7; i++ {
		v, ok := f.TryRead()
		if !ok {
			t.Fatalf("Read %d rejected unexpectedly", i)
		}
		if v != 100+i {
			t.Fatalf("Expected %d, got %d at read %d", 100+i, v, i)
		}
	}
	if !f.Empty() {
		t.Fatal("Queue must be empty after draining all admitted elements")
	}
}

// Capacity 9 exercises the conditional-subtraction wraparound that a
// masked pointer cannot express.
func TestNonPowerOfTwoCapacityNine(t *testing.T) {
	f, err := New[uint64](9)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := uint64(0); i < 8; i++ {
		if !f.TryWrite(0x1000 + i) {
			t.Fatalf("Write %d rejected before the queue was full", i)
		}
	}
	if !f.Full() {
		t.Fatal("Expected full after 8 writes into capacity 9")
	}
	if f.TryWrite(0x1008) {
		t.Fatal("The 9th write must be rejected")
	}

	for i := uint64(0); i < 8; i++ {
		v, ok := f.TryRead()
		if !ok {
			t.Fatalf("Read %d rejected unexpectedly", i)
		}
		if v != 0x1000+i {
			t.Fatalf("Expected %#x, got %#x at read %d", 0x1000+i, v, i)
		}
	}
	if !f.Empty() || f.Full() {
		t.Fatalf("Expected empty after drain, got empty=%v full=%v", f.Empty(), f.Full())
	}

	// Several more laps prove the pointers keep wrapping at 9 cleanly.
	next := uint64(0x2000)
	for lap := 0; lap < 5; lap++ {
		for i := uint64(0); i < 8; i++ {
			if !f.TryWrite(next + i) {
				t.Fatalf("Lap %d write %d rejected", lap, i)
			}
		}
		for i := uint64(0); i < 8; i++ {
			v, ok := f.TryRead()
			if !ok || v != next+i {
				t.Fatalf("Lap %d read %d: expected %#x, got %#x (ok=%v)", lap, i, next+i, v, ok)
			}
		}
		next += 8
	}
}

func TestSimultaneousWriteReadAtOccupancyOne(t *testing.T) {
	f, err := New[string](4)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !f.TryWrite("older") {
		t.Fatal("Priming write rejected")
	}

	// One tick carrying both requests: the read returns the element that
	// was already stored, the write lands behind it, occupancy stays 1.
	readData, full, empty := f.Tick(false, true, "newer", true)
	if readData != "older" {
		t.Fatalf("Expected the pre-tick head %q, got %q", "older", readData)
	}
	if full || empty {
		t.Fatalf("Expected neither flag after pass-through, got full=%v empty=%v", full, empty)
	}
	if f.UsedSlots() != 1 {
		t.Fatalf("Occupancy must be preserved, got %d", f.UsedSlots())
	}

	v, ok := f.TryRead()
	if !ok || v != "newer" {
		t.Fatalf("Expected %q next, got %q (ok=%v)", "newer", v, ok)
	}
}

func TestLatchedOutputHolds(t *testing.T) {
	f, _ := New[int](4)
	f.TryWrite(42)
	if v, ok := f.TryRead(); !ok || v != 42 {
		t.Fatalf("Expected to read 42, got %d (ok=%v)", v, ok)
	}

	// Idle ticks do not disturb the register.
	for i := 0; i < 3; i++ {
		readData, _, _ := f.Tick(false, false, 0, false)
		if readData != 42 {
			t.Fatalf("Idle tick %d clobbered the read register: got %d", i, readData)
		}
	}

	// A rejected read does not re-sample storage either.
	if _, ok := f.TryRead(); ok {
		t.Fatal("Read on an empty queue must be rejected")
	}
	if f.ReadData() != 42 {
		t.Fatalf("Rejected read clobbered the read register: got %d", f.ReadData())
	}
}

func TestRejectedOpsLeaveStateUntouched(t *testing.T) {
	f, _ := New[int](5)
	for i := 0; i < 4; i++ {
		f.TryWrite(i)
	}
	if !f.Full() {
		t.Fatal("Expected full after 4 writes into capacity 5")
	}

	before := f.Snapshot()
	used, latch := f.UsedSlots(), f.ReadData()

	if f.TryWrite(999) {
		t.Fatal("Write while full must be rejected")
	}
	require.Equal(t, before, f.Snapshot(), "rejected write must not touch storage")
	if f.UsedSlots() != used || f.ReadData() != latch || !f.Full() {
		t.Fatal("Rejected write changed observable state")
	}

	// Same check on the empty side.
	g, _ := New[int](5)
	g.TryWrite(7)
	g.TryRead()
	beforeG := g.Snapshot()
	latchG := g.ReadData()
	if _, ok := g.TryRead(); ok {
		t.Fatal("Read while empty must be rejected")
	}
	require.Equal(t, beforeG, g.Snapshot(), "rejected read must not touch storage")
	if g.ReadData() != latchG || !g.Empty() {
		t.Fatal("Rejected read changed observable state")
	}
}

func TestResetPreemptsRequests(t *testing.T) {
	probe := &recordingProbe{}
	f, _ := NewWithProbe[int](3, probe)
	f.TryWrite(1)
	f.TryWrite(2)
	if !f.Full() {
		t.Fatal("Expected full after 2 writes into capacity 3")
	}

	// Reset wins over the simultaneous write and read requests, and the
	// pre-empted requests are not reported as violations.
	readData, full, empty := f.Tick(true, true, 77, true)
	if readData != 0 {
		t.Fatalf("Expected zeroed read register after reset, got %d", readData)
	}
	if full || !empty {
		t.Fatalf("Expected empty after reset, got full=%v empty=%v", full, empty)
	}
	if f.UsedSlots() != 0 {
		t.Fatalf("Expected occupancy 0 after reset, got %d", f.UsedSlots())
	}
	if len(probe.fullWrites) != 0 || len(probe.emptyReads) != 0 {
		t.Fatalf("Reset tick must not emit violations, got %d/%d", len(probe.fullWrites), len(probe.emptyReads))
	}
}

func TestResetKeepsStorageAndTickCounter(t *testing.T) {
	f, _ := New[int](4)
	f.TryWrite(10)
	f.TryWrite(11)
	ticksBefore := f.Ticks()

	f.Reset()

	if f.Ticks() != ticksBefore+1 {
		t.Fatalf("Tick counter must survive reset: had %d, now %d", ticksBefore, f.Ticks())
	}
	// Pointers reset, storage does not: the old elements are merely
	// unreachable until overwritten.
	snap := f.Snapshot()
	if snap[0] != 10 || snap[1] != 11 {
		t.Fatalf("Reset must not clear storage, got %v", snap)
	}

	// The queue behaves like a fresh one afterwards.
	if !f.TryWrite(20) {
		t.Fatal("Write after reset rejected")
	}
	if v, ok := f.TryRead(); !ok || v != 20 {
		t.Fatalf("Expected 20 after reset, got %d (ok=%v)", v, ok)
	}
}

func TestProbeSeesViolationTicks(t *testing.T) {
	probe := &recordingProbe{}
	f, _ := NewWithProbe[int](2, probe)

	f.TryRead() // tick 1, empty
	f.TryWrite(1)
	f.TryWrite(2) // tick 3, full
	f.Reset()
	f.TryRead() // tick 5, empty again

	if len(probe.emptyReads) != 2 || len(probe.fullWrites) != 1 {
		t.Fatalf("Expected 2 empty-read and 1 full-write events, got %d/%d",
			len(probe.emptyReads), len(probe.fullWrites))
	}
	if probe.emptyReads[0] != 1 || probe.fullWrites[0] != 3 || probe.emptyReads[1] != 5 {
		t.Fatalf("Violation ticks out of order: %v %v", probe.emptyReads, probe.fullWrites)
	}
}

// A seeded random mix of writes, reads, simultaneous ticks and resets,
// checked against a reference model every tick.
func TestRandomizedInvariants(t *testing.T) {
	const capacity = 5
	const ticks = 5000

	f, err := New[uint64](capacity)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	rng := rand.New(rand.NewSource(42))

	var model []uint64
	var latch uint64
	next := uint64(0)

	for i := 0; i < ticks; i++ {
		reset := rng.Intn(200) == 0
		writeEnable := rng.Intn(2) == 0
		readEnable := rng.Intn(2) == 0
		writeData := next

		preFull, preEmpty := f.Full(), f.Empty()
		readData, full, empty := f.Tick(reset, writeEnable, writeData, readEnable)

		if reset {
			model = model[:0]
			latch = 0
		} else {
			if writeEnable && !preFull {
				model = append(model, writeData)
				next++
			}
			if readEnable && !preEmpty {
				latch = model[0]
				model = model[1:]
			}
		}

		used := f.UsedSlots()
		if used != uint64(len(model)) {
			t.Fatalf("Tick %d: occupancy %d diverged from model %d", i, used, len(model))
		}
		if used > capacity-1 {
			t.Fatalf("Tick %d: occupancy %d exceeds capacity-1", i, used)
		}
		if full && empty {
			t.Fatalf("Tick %d: full and empty asserted together", i)
		}
		if full != (used == capacity-1) || empty != (used == 0) {
			t.Fatalf("Tick %d: flags full=%v empty=%v diverge from occupancy %d", i, full, empty, used)
		}
		if used+f.FreeSlots() != capacity-1 {
			t.Fatalf("Tick %d: used+free=%d, want %d", i, used+f.FreeSlots(), capacity-1)
		}
		if readData != latch {
			t.Fatalf("Tick %d: read register %d diverged from model latch %d", i, readData, latch)
		}
	}
}

func BenchmarkTick(b *testing.B) {
	f, _ := New[uint64](1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Tick(false, true, uint64(i), true)
	}
}
