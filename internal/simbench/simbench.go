package simbench

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/i5heu/GoFifoSim/internal/fifo"
	"github.com/i5heu/GoFifoSim/pkg/config"
)

// Step is the stimulus presented for one tick.
type Step[T any] struct {
	Reset bool
	Write bool
	Data  T
	Read  bool
}

// Sample records the observable state after one tick. It is what the
// trace export and the waveform plots are built from.
type Sample struct {
	Tick  uint64 `json:"tick"`
	Used  uint64 `json:"used"`
	Full  bool   `json:"full"`
	Empty bool   `json:"empty"`
	Wrote bool   `json:"wrote"`
	Read  bool   `json:"read"`
}

// Result aggregates one scenario run.
type Result struct {
	Produced       int64
	Consumed       int64
	RejectedWrites int64
	RejectedReads  int64
	Resets         int64
	Trace          []Sample
}

// Steps expands a scenario into its per-tick stimulus program. Write
// data comes from valueGenerator, indexed by write request so that the
// values stay unique whether or not a request is admitted.
func Steps[T any](sc config.Scenario, valueGenerator func(i uint64) T) ([]Step[T], error) {
	steps := make([]Step[T], 0, sc.Ticks)
	var writeIndex uint64

	nextWrite := func() Step[T] {
		st := Step[T]{Write: true, Data: valueGenerator(writeIndex)}
		writeIndex++
		return st
	}

	switch sc.Stimulus {
	case config.FillDrain:
		// One extra tick per phase pushes past the full and empty
		// boundaries on purpose.
		phase := sc.Capacity + 1
		for uint64(len(steps)) < sc.Ticks {
			for i := uint64(0); i < phase && uint64(len(steps)) < sc.Ticks; i++ {
				steps = append(steps, nextWrite())
			}
			for i := uint64(0); i < phase && uint64(len(steps)) < sc.Ticks; i++ {
				steps = append(steps, Step[T]{Read: true})
			}
		}

	case config.Lockstep:
		steps = append(steps, nextWrite())
		for uint64(len(steps)) < sc.Ticks {
			st := nextWrite()
			st.Read = true
			steps = append(steps, st)
		}

	case config.RandomMix:
		rng := rand.New(rand.NewSource(sc.Seed))
		for i := uint64(0); i < sc.Ticks; i++ {
			var st Step[T]
			if sc.ResetEvery > 0 && (i+1)%sc.ResetEvery == 0 {
				st.Reset = true
			} else {
				if rng.Float64() < sc.WriteBias {
					st = nextWrite()
				}
				if rng.Float64() < sc.ReadBias {
					st.Read = true
				}
			}
			steps = append(steps, st)
		}

	case config.BurstWrites:
		// Overshoot every write burst, then drain only half, so the
		// occupancy keeps bouncing off the full boundary.
		burst := sc.Capacity + 3
		drain := sc.Capacity / 2
		for uint64(len(steps)) < sc.Ticks {
			for i := uint64(0); i < burst && uint64(len(steps)) < sc.Ticks; i++ {
				steps = append(steps, nextWrite())
			}
			for i := uint64(0); i < drain && uint64(len(steps)) < sc.Ticks; i++ {
				steps = append(steps, Step[T]{Read: true})
			}
		}

	default:
		return nil, errors.Errorf("unknown stimulus %q", sc.Stimulus)
	}
	return steps, nil
}

// Run drives a freshly constructed queue through the stimulus program
// one tick at a time and checks the queueing laws after every tick
// against a reference model:
// occupancy accounting, flag consistency, the hold behavior of the read
// register and strict FIFO order of the elements that come back. The
// returned error names the first tick where the queue diverged.
func Run[T comparable, Q fifo.FifoValidationInterface[T]](q Q, steps []Step[T]) (Result, error) {
	var res Result

	// FreeSlots at rest reveals the usable occupancy, which differs
	// between the one-slot-empty and full-capacity disciplines.
	usable := q.UsedSlots() + q.FreeSlots()

	var model []T
	latch := q.ReadData()

	for i, st := range steps {
		preFull, preEmpty := q.Full(), q.Empty()
		readData, full, empty := q.Tick(st.Reset, st.Write, st.Data, st.Read)

		wrote := !st.Reset && st.Write && !preFull
		read := !st.Reset && st.Read && !preEmpty

		switch {
		case st.Reset:
			res.Resets++
			model = model[:0]
			var zero T
			latch = zero
		default:
			if st.Write {
				if wrote {
					res.Produced++
					model = append(model, st.Data)
				} else {
					res.RejectedWrites++
				}
			}
			if st.Read {
				if read {
					res.Consumed++
					latch = model[0]
					model = model[1:]
				} else {
					res.RejectedReads++
				}
			}
		}

		used := q.UsedSlots()
		if used != uint64(len(model)) {
			return res, errors.Errorf("tick %d: occupancy %d diverged from model %d", i, used, len(model))
		}
		if used+q.FreeSlots() != usable {
			return res, errors.Errorf("tick %d: used+free=%d, want %d", i, used+q.FreeSlots(), usable)
		}
		if full && empty {
			return res, errors.Errorf("tick %d: full and empty asserted together", i)
		}
		if full != (used == usable) {
			return res, errors.Errorf("tick %d: full=%v at occupancy %d/%d", i, full, used, usable)
		}
		if empty != (used == 0) {
			return res, errors.Errorf("tick %d: empty=%v at occupancy %d", i, empty, used)
		}
		if readData != latch {
			return res, errors.Errorf("tick %d: read register diverged from the expected element", i)
		}

		res.Trace = append(res.Trace, Sample{
			Tick:  uint64(i),
			Used:  used,
			Full:  full,
			Empty: empty,
			Wrote: wrote,
			Read:  read,
		})
	}
	return res, nil
}
