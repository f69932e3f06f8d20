package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Stimulus selects the generated per-tick request program for a scenario.
type Stimulus string

const (
	// FillDrain writes until full plus a margin, then reads until empty.
	FillDrain Stimulus = "fill_drain"
	// Lockstep primes one element and then carries a write and a read on
	// every tick, holding the occupancy at one.
	Lockstep Stimulus = "lockstep"
	// RandomMix draws independent write/read/reset requests per tick
	// from a seeded source.
	RandomMix Stimulus = "random_mix"
	// BurstWrites alternates bursts of writes past the full point with
	// bursts of reads past the empty point.
	BurstWrites Stimulus = "burst_writes"
)

// Scenario describes one stimulus program against one queue capacity.
type Scenario struct {
	Name       string   `yaml:"name"`
	Stimulus   Stimulus `yaml:"stimulus"`
	Capacity   uint64   `yaml:"capacity"`
	Ticks      uint64   `yaml:"ticks"`
	Seed       int64    `yaml:"seed,omitempty"`
	WriteBias  float64  `yaml:"write_bias,omitempty"`  // random_mix: per-tick write probability
	ReadBias   float64  `yaml:"read_bias,omitempty"`   // random_mix: per-tick read probability
	ResetEvery uint64   `yaml:"reset_every,omitempty"` // assert reset every N ticks, 0 = never
}

// Suite is a named list of scenarios, usually loaded from a YAML file.
type Suite struct {
	Name      string     `yaml:"name"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// Load reads and validates a scenario suite from a YAML file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading scenario file")
	}
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, errors.Wrap(err, "parsing scenario YAML")
	}
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return &suite, nil
}

// Validate checks every scenario in the suite.
func (s *Suite) Validate() error {
	if len(s.Scenarios) == 0 {
		return errors.New("suite contains no scenarios")
	}
	seen := make(map[string]struct{}, len(s.Scenarios))
	for i := range s.Scenarios {
		sc := &s.Scenarios[i]
		if err := sc.Validate(); err != nil {
			return errors.Wrapf(err, "scenario %d (%q)", i, sc.Name)
		}
		if _, dup := seen[sc.Name]; dup {
			return errors.Errorf("duplicate scenario name %q", sc.Name)
		}
		seen[sc.Name] = struct{}{}
	}
	return nil
}

// Validate checks a single scenario and fills defaulted fields.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return errors.New("scenario name must not be empty")
	}
	switch sc.Stimulus {
	case FillDrain, Lockstep, RandomMix, BurstWrites:
	default:
		return errors.Errorf("unknown stimulus %q", sc.Stimulus)
	}
	if sc.Capacity < 2 {
		return errors.Errorf("capacity %d is too small, need at least 2", sc.Capacity)
	}
	if sc.Ticks < 1 {
		return errors.New("ticks must be at least 1")
	}
	if sc.WriteBias < 0 || sc.WriteBias > 1 {
		return errors.Errorf("write_bias %v outside [0,1]", sc.WriteBias)
	}
	if sc.ReadBias < 0 || sc.ReadBias > 1 {
		return errors.Errorf("read_bias %v outside [0,1]", sc.ReadBias)
	}
	if sc.Stimulus == RandomMix {
		if sc.WriteBias == 0 {
			sc.WriteBias = 0.5
		}
		if sc.ReadBias == 0 {
			sc.ReadBias = 0.5
		}
	}
	return nil
}

// DefaultSuite returns the built-in scenarios used when no file is given.
func DefaultSuite() *Suite {
	return &Suite{
		Name: "builtin",
		Scenarios: []Scenario{
			{Name: "fill-drain-8", Stimulus: FillDrain, Capacity: 8, Ticks: 64},
			{Name: "lockstep-4", Stimulus: Lockstep, Capacity: 4, Ticks: 64},
			{Name: "random-mix-9", Stimulus: RandomMix, Capacity: 9, Ticks: 512, Seed: 42, WriteBias: 0.5, ReadBias: 0.5},
			{Name: "burst-writes-8", Stimulus: BurstWrites, Capacity: 8, Ticks: 128},
			{Name: "random-reset-5", Stimulus: RandomMix, Capacity: 5, Ticks: 512, Seed: 7, WriteBias: 0.6, ReadBias: 0.4, ResetEvery: 97},
		},
	}
}
