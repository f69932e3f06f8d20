package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempSuite(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing temp suite: %v", err)
	}
	return path
}

func TestLoadParsesSuite(t *testing.T) {
	path := writeTempSuite(t, `
name: smoke
scenarios:
  - name: tiny-fill
    stimulus: fill_drain
    capacity: 4
    ticks: 32
  - name: odd-random
    stimulus: random_mix
    capacity: 9
    ticks: 256
    seed: 1
    write_bias: 0.7
    read_bias: 0.3
    reset_every: 50
`)

	suite, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if suite.Name != "smoke" || len(suite.Scenarios) != 2 {
		t.Fatalf("Unexpected suite: %+v", suite)
	}

	sc := suite.Scenarios[1]
	if sc.Stimulus != RandomMix || sc.Capacity != 9 || sc.WriteBias != 0.7 || sc.ResetEvery != 50 {
		t.Fatalf("Fields lost in parsing: %+v", sc)
	}
}

func TestLoadRejectsBadSuites(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown stimulus", "scenarios:\n  - {name: a, stimulus: warp, capacity: 4, ticks: 8}\n"},
		{"capacity too small", "scenarios:\n  - {name: a, stimulus: fill_drain, capacity: 1, ticks: 8}\n"},
		{"zero ticks", "scenarios:\n  - {name: a, stimulus: fill_drain, capacity: 4, ticks: 0}\n"},
		{"missing name", "scenarios:\n  - {stimulus: fill_drain, capacity: 4, ticks: 8}\n"},
		{"bias out of range", "scenarios:\n  - {name: a, stimulus: random_mix, capacity: 4, ticks: 8, write_bias: 1.5}\n"},
		{"duplicate names", "scenarios:\n  - {name: a, stimulus: fill_drain, capacity: 4, ticks: 8}\n  - {name: a, stimulus: lockstep, capacity: 4, ticks: 8}\n"},
		{"empty suite", "name: empty\n"},
		{"not yaml", ": definitely not yaml {{{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeTempSuite(t, tc.body)); err == nil {
				t.Fatal("Expected an error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Expected an error for a missing file")
	}
}

func TestRandomMixBiasDefaults(t *testing.T) {
	sc := Scenario{Name: "r", Stimulus: RandomMix, Capacity: 4, Ticks: 8}
	if err := sc.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if sc.WriteBias != 0.5 || sc.ReadBias != 0.5 {
		t.Fatalf("Expected bias defaults of 0.5, got %v/%v", sc.WriteBias, sc.ReadBias)
	}
}

func TestDefaultSuiteIsValid(t *testing.T) {
	suite := DefaultSuite()
	if err := suite.Validate(); err != nil {
		t.Fatalf("Built-in suite must validate: %v", err)
	}
	if len(suite.Scenarios) == 0 {
		t.Fatal("Built-in suite is empty")
	}
}
