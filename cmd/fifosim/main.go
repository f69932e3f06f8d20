package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/bits"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i5heu/GoFifoSim/internal/fifo"
	"github.com/i5heu/GoFifoSim/internal/sessiondb"
	"github.com/i5heu/GoFifoSim/internal/simbench"
	"github.com/i5heu/GoFifoSim/pkg/chanfifo"
	"github.com/i5heu/GoFifoSim/pkg/config"
	"github.com/i5heu/GoFifoSim/pkg/maskfifo"
	"github.com/i5heu/GoFifoSim/pkg/probelog"
	"github.com/i5heu/GoFifoSim/pkg/syncfifo"
	"github.com/i5heu/GoFifoSim/pkg/synthfifo"
	"github.com/i5heu/GoFifoSim/pkg/wrapfifo"
)

// simFifo is the tick surface the sweep drives. Every registered
// implementation exposes it with uint64 elements.
type simFifo = fifo.FifoValidationInterface[uint64]

// SimResult holds the outcome of one iteration of one implementation/
// scenario pairing.
type SimResult struct {
	Implementation string            `json:"implementation"`
	Package        string            `json:"package"`
	Scenario       string            `json:"scenario"`
	Stimulus       string            `json:"stimulus"`
	Capacity       uint64            `json:"capacity"`
	Ticks          uint64            `json:"ticks"`
	Iteration      int               `json:"iteration"`
	Produced       int64             `json:"produced"`
	Consumed       int64             `json:"consumed"`
	RejectedWrites int64             `json:"rejected_writes"`
	RejectedReads  int64             `json:"rejected_reads"`
	Resets         int64             `json:"resets"`
	FullWrites     uint64            `json:"full_writes"` // probe events, 0 for unprobed implementations
	EmptyReads     uint64            `json:"empty_reads"`
	ActualElapsed  string            `json:"actual_elapsed"`
	TicksPerSec    float64           `json:"ticks_per_sec"`
	Timestamp      int64             `json:"timestamp"`
	GoVersion      string            `json:"go_version"`
	Trace          []simbench.Sample `json:"trace,omitempty"`

	elapsed time.Duration
}

// SystemInfo holds system information.
type SystemInfo struct {
	Hostname    string  `json:"hostname,omitempty"`
	NumCPU      int     `json:"num_cpu"`
	CPUModel    string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH      string  `json:"go_arch"`
	TotalMemory uint64  `json:"total_memory_bytes,omitempty"`
}

// FullReport represents a complete simulation session.
type FullReport struct {
	SessionID   string      `json:"session_id"`
	SessionTime string      `json:"session_time"`
	SystemInfo  SystemInfo  `json:"system_info"`
	Results     []SimResult `json:"results"`
}

// Implementation describes one registered queue implementation. The
// probe argument is ignored by implementations without the Probed
// feature.
type Implementation[T any, Q fifo.FifoValidationInterface[T]] struct {
	name        string
	description string
	pkgName     string
	authors     []string
	features    []string
	newFifo     func(capacity uint64, probe syncfifo.Probe) (Q, error)
}

func (impl Implementation[T, Q]) hasFeature(name string) bool {
	for _, f := range impl.features {
		if f == name {
			return true
		}
	}
	return false
}

// supportsCapacity reports whether the implementation can be built at
// the given slot count. Implementations without AnyCapacity are the
// power-of-two baselines.
func (impl Implementation[T, Q]) supportsCapacity(capacity uint64) bool {
	if capacity < 2 {
		return false
	}
	if impl.hasFeature("AnyCapacity") {
		return true
	}
	return capacity&(capacity-1) == 0
}

// getImplementations enumerates our different queue implementations.
func getImplementations() []Implementation[uint64, simFifo] {
	return []Implementation[uint64, simFifo]{
		{
			name:        "SyncFIFO",
			pkgName:     "syncfifo",
			description: "Arbitrary-capacity synchronous FIFO: conditional-subtraction wraparound, one reserved slot, latched read output, violation probe.",
			authors:     []string{"Mia Heidenstedt <heidenstedt.org>"},
			features:    []string{"AnyCapacity", "OneSlotEmpty", "Latched", "Probed"},
			newFifo: func(capacity uint64, probe syncfifo.Probe) (simFifo, error) {
				return syncfifo.NewWithProbe[uint64](capacity, probe)
			},
		},
		{
			name:        "MaskFIFO",
			pkgName:     "maskfifo",
			description: "Reference baseline with bit-masked pointer wraparound; power-of-two capacities only.",
			authors:     []string{"Mia Heidenstedt <heidenstedt.org>"},
			features:    []string{"PowerOfTwo", "OneSlotEmpty", "Latched"},
			newFifo: func(capacity uint64, _ syncfifo.Probe) (simFifo, error) {
				return maskfifo.New[uint64](capacity)
			},
		},
		{
			name:        "WrapFIFO",
			pkgName:     "wrapfifo",
			description: "Reference baseline with phase-bit pointers; stores the full capacity, power-of-two only.",
			authors:     []string{"Mia Heidenstedt <heidenstedt.org>"},
			features:    []string{"PowerOfTwo", "FullCapacity", "Latched"},
			newFifo: func(capacity uint64, _ syncfifo.Probe) (simFifo, error) {
				return wrapfifo.New[uint64](capacity)
			},
		},
		{
			name:        "ChanFIFO",
			pkgName:     "chanfifo",
			description: "Buffered Go channel behind the tick surface; convenience baseline with full usable capacity.",
			authors:     []string{"Mia Heidenstedt <heidenstedt.org>"},
			features:    []string{"AnyCapacity", "FullCapacity", "Latched"},
			newFifo: func(capacity uint64, _ syncfifo.Probe) (simFifo, error) {
				return chanfifo.New[uint64](capacity)
			},
		},
		{
			name:        "SynthFIFO",
			pkgName:     "synthfifo",
			description: "Width-parameterized wrapper around SyncFIFO; capacity is derived from an address width, write data is masked.",
			authors:     []string{"Mia Heidenstedt <heidenstedt.org>"},
			features:    []string{"PowerOfTwo", "OneSlotEmpty", "Latched", "Probed"},
			newFifo: func(capacity uint64, probe syncfifo.Probe) (simFifo, error) {
				if capacity < 2 || capacity&(capacity-1) != 0 {
					return nil, errors.Errorf("capacity %d cannot be expressed as an address width", capacity)
				}
				cfg := synthfifo.Config{
					AddrWidth: uint(bits.TrailingZeros64(capacity)),
					DataWidth: 64,
				}
				return synthfifo.NewWithProbe(cfg, probe)
			},
		},
	}
}

// job is one implementation/scenario pairing in the run matrix.
type job struct {
	scenario config.Scenario
	impl     Implementation[uint64, simFifo]
}

// runJob constructs a fresh queue per iteration, drives it through the
// scenario and collects one SimResult per iteration. onIteration is
// called after each finished iteration (progress reporting).
func runJob(jb job, iterations int, withTrace bool, zlog *zap.Logger, onIteration func()) ([]SimResult, error) {
	steps, err := simbench.Steps(jb.scenario, func(i uint64) uint64 { return i })
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %q", jb.scenario.Name)
	}

	results := make([]SimResult, 0, iterations)
	for iteration := 1; iteration <= iterations; iteration++ {
		counter := &probelog.Counter{}
		var probe syncfifo.Probe = counter
		if zlog != nil {
			probe = probelog.Fanout{counter, probelog.New(jb.impl.pkgName+"/"+jb.scenario.Name, zlog)}
		}

		q, err := jb.impl.newFifo(jb.scenario.Capacity, probe)
		if err != nil {
			return nil, errors.Wrapf(err, "constructing %s at capacity %d", jb.impl.name, jb.scenario.Capacity)
		}

		start := time.Now()
		res, err := simbench.Run(q, steps)
		elapsed := time.Since(start)
		if err != nil {
			return nil, errors.Wrapf(err, "%s on scenario %q", jb.impl.name, jb.scenario.Name)
		}

		sr := SimResult{
			Implementation: jb.impl.name,
			Package:        jb.impl.pkgName,
			Scenario:       jb.scenario.Name,
			Stimulus:       string(jb.scenario.Stimulus),
			Capacity:       jb.scenario.Capacity,
			Ticks:          uint64(len(steps)),
			Iteration:      iteration,
			Produced:       res.Produced,
			Consumed:       res.Consumed,
			RejectedWrites: res.RejectedWrites,
			RejectedReads:  res.RejectedReads,
			Resets:         res.Resets,
			FullWrites:     counter.FullWrites,
			EmptyReads:     counter.EmptyReads,
			ActualElapsed:  elapsed.String(),
			TicksPerSec:    float64(len(steps)) / elapsed.Seconds(),
			Timestamp:      time.Now().Unix(),
			GoVersion:      runtime.Version(),
			elapsed:        elapsed,
		}
		// Iterations are deterministic replays; one trace is enough.
		if withTrace && iteration == 1 {
			sr.Trace = res.Trace
		}
		results = append(results, sr)

		if onIteration != nil {
			onIteration()
		}
	}
	return results, nil
}

// outputMarkdownTable loads the JSON file and outputs a Markdown table
// for the last recorded session.
func outputMarkdownTable(jsonFile string) {
	data, err := os.ReadFile(jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading JSON file %q: %v\n", jsonFile, err)
		os.Exit(1)
	}
	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshalling JSON: %v\n", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "No sessions found in JSON.")
		os.Exit(1)
	}
	lastSession := sessions[len(sessions)-1]

	implMetaMap := make(map[string]Implementation[uint64, simFifo])
	for _, impl := range getImplementations() {
		implMetaMap[impl.name] = impl
	}

	// Average the tick rate over the iterations of each pairing.
	type tableRow struct {
		implementation string
		pkgName        string
		features       string
		scenario       string
		capacity       uint64
		ticksPerSec    float64
		iterations     int
	}
	rowIndex := make(map[string]int)
	var rows []tableRow
	for _, r := range lastSession.Results {
		key := r.Implementation + "\x00" + r.Scenario
		i, ok := rowIndex[key]
		if !ok {
			var features string
			if meta, found := implMetaMap[r.Implementation]; found {
				features = strings.Join(meta.features, ", ")
			}
			rows = append(rows, tableRow{
				implementation: r.Implementation,
				pkgName:        r.Package,
				features:       features,
				scenario:       r.Scenario,
				capacity:       r.Capacity,
			})
			i = len(rows) - 1
			rowIndex[key] = i
		}
		rows[i].ticksPerSec += r.TicksPerSec
		rows[i].iterations++
	}
	for i := range rows {
		rows[i].ticksPerSec /= float64(rows[i].iterations)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ticksPerSec > rows[j].ticksPerSec
	})

	fmt.Println("## Last Session Simulation Summary")
	fmt.Println()
	fmt.Println("| Implementation | Package   | Features                                  | Scenario        | Capacity | Ticks/sec |")
	fmt.Println("|----------------|-----------|-------------------------------------------|-----------------|----------|-----------|")
	for _, r := range rows {
		fmt.Printf("| %-14s | %-9s | %-41s | %-15s | %8d | %9.0f |\n",
			r.implementation, r.pkgName, r.features, r.scenario, r.capacity, r.ticksPerSec)
	}
}

// gatherSystemInfo collects basic CPU and memory details.
func gatherSystemInfo() SystemInfo {
	info := SystemInfo{
		NumCPU: runtime.NumCPU(),
		GOARCH: runtime.GOARCH,
	}
	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		info.CPUModel = infos[0].ModelName
		info.CPUSpeedMHz = infos[0].Mhz
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total
	}
	return info
}

func main() {
	iterations := flag.Int("iter", 3, "Number of iterations per implementation/scenario pairing")
	scenarioFile := flag.String("scenarios", "", "Path to a YAML scenario suite; built-in suite when empty")
	tickOverride := flag.Uint64("ticks", 0, "If non-zero, override the tick count of every scenario")
	seedOverride := flag.Int64("seed", 0, "If non-zero, override the seed of every random_mix scenario")
	jsonExport := flag.Bool("json", false, "Append the session to sim-results.json")
	withTrace := flag.Bool("trace", false, "Include per-tick traces in the JSON export (used by waveplot)")
	markdownTable := flag.Bool("markdown-table", false, "Output markdown table from sim-results.json and exit")
	jsonFileForMarkdown := flag.String("jsonfile", "sim-results.json", "Path to JSON file for markdown table")
	dbPath := flag.String("db", "", "Record the session in the SQLite database at this path")
	parallelFlag := flag.Bool("parallel", false, "Run implementation/scenario pairings in parallel (timing becomes noisy)")
	progressFlag := flag.Bool("progress", false, "Display a progress bar with ETA")
	verbose := flag.Bool("verbose", false, "Log every usage violation (write-while-full, read-while-empty)")
	flag.Parse()

	if *markdownTable {
		outputMarkdownTable(*jsonFileForMarkdown)
		return
	}

	suite := config.DefaultSuite()
	if *scenarioFile != "" {
		loaded, err := config.Load(*scenarioFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading scenarios: %v\n", err)
			os.Exit(1)
		}
		suite = loaded
	}
	for i := range suite.Scenarios {
		if *tickOverride > 0 {
			suite.Scenarios[i].Ticks = *tickOverride
		}
		if *seedOverride != 0 && suite.Scenarios[i].Stimulus == config.RandomMix {
			suite.Scenarios[i].Seed = *seedOverride
		}
	}

	var zlog *zap.Logger
	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
			os.Exit(1)
		}
		zlog = logger
		defer zlog.Sync()
	}

	// Build the run matrix. Power-of-two baselines are skipped on the
	// capacities they cannot represent.
	impls := getImplementations()
	var jobs []job
	for _, sc := range suite.Scenarios {
		for _, impl := range impls {
			if !impl.supportsCapacity(sc.Capacity) {
				continue
			}
			jobs = append(jobs, job{scenario: sc, impl: impl})
		}
	}
	if len(jobs) == 0 {
		fmt.Fprintln(os.Stderr, "No runnable implementation/scenario pairings.")
		os.Exit(1)
	}

	var bar *progressbar.ProgressBar
	if *progressFlag {
		bar = progressbar.NewOptions(len(jobs)*(*iterations),
			progressbar.OptionSetDescription("simulating"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
		)
	}
	onIteration := func() {
		if bar != nil {
			bar.Add(1)
		}
	}

	workers := 1
	if *parallelFlag {
		workers = runtime.GOMAXPROCS(0)
	}

	overallStart := time.Now()
	resultsPerJob := make([][]SimResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, jb := range jobs {
		i, jb := i, jb
		g.Go(func() error {
			rs, err := runJob(jb, *iterations, *withTrace, zlog, onIteration)
			if err != nil {
				return err
			}
			resultsPerJob[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if bar != nil {
			fmt.Fprintln(os.Stderr)
		}
		fmt.Fprintf(os.Stderr, "Simulation failed: %v\n", err)
		os.Exit(1)
	}
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	// Print per-scenario summaries in suite order.
	var results []SimResult
	lastScenario := ""
	for i, jb := range jobs {
		if jb.scenario.Name != lastScenario {
			lastScenario = jb.scenario.Name
			fmt.Printf("\n=============================\n")
			fmt.Printf("Scenario: %s (%s, capacity=%d, ticks=%d)\n",
				jb.scenario.Name, jb.scenario.Stimulus, jb.scenario.Capacity, jb.scenario.Ticks)
			fmt.Printf("=============================\n")
		}
		for _, r := range resultsPerJob[i] {
			fmt.Printf("    %s #%d => produced=%d, consumed=%d, rejected=%d/%d, resets=%d, violations=%d, %.0f ticks/s, took=%s\n",
				r.Implementation, r.Iteration, r.Produced, r.Consumed,
				r.RejectedWrites, r.RejectedReads, r.Resets,
				r.FullWrites+r.EmptyReads, r.TicksPerSec, r.ActualElapsed)
		}
		results = append(results, resultsPerJob[i]...)
	}

	sessionID := uuid.NewString()
	sysInfo := gatherSystemInfo()
	report := FullReport{
		SessionID:   sessionID,
		SessionTime: time.Now().Format(time.RFC3339),
		SystemInfo:  sysInfo,
		Results:     results,
	}
	fmt.Printf("\nSession %s: %d runs in %v\n", sessionID, len(results), time.Since(overallStart).Round(time.Millisecond))

	if *jsonExport {
		const filename = "sim-results.json"
		var previous []FullReport
		if _, err := os.Stat(filename); err == nil {
			data, err := os.ReadFile(filename)
			if err == nil && len(data) > 0 {
				json.Unmarshal(data, &previous)
			}
		}
		updated := append(previous, report)
		data, err := json.MarshalIndent(updated, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error marshalling JSON:", err)
			os.Exit(1)
		}
		if err = os.WriteFile(filename, data, 0644); err != nil {
			fmt.Fprintln(os.Stderr, "Error writing JSON file:", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote results to %s\n", filename)
	}

	if *dbPath != "" {
		if err := recordSession(*dbPath, report); err != nil {
			fmt.Fprintf(os.Stderr, "Error recording session: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Recorded session %s in %s\n", sessionID, *dbPath)
	}
}

// recordSession persists the report in the SQLite session store.
func recordSession(path string, report FullReport) error {
	store, err := sessiondb.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	createdAt, err := time.Parse(time.RFC3339, report.SessionTime)
	if err != nil {
		createdAt = time.Now()
	}
	session := sessiondb.Session{
		ID:        report.SessionID,
		CreatedAt: createdAt,
		Hostname:  report.SystemInfo.Hostname,
		CPU:       report.SystemInfo.CPUModel,
		Cores:     report.SystemInfo.NumCPU,
		MemoryMB:  report.SystemInfo.TotalMemory / (1024 * 1024),
		GoVersion: runtime.Version(),
	}
	if err := store.InsertSession(session); err != nil {
		return err
	}
	for _, r := range report.Results {
		run := sessiondb.Run{
			SessionID:      report.SessionID,
			Implementation: r.Implementation,
			Scenario:       r.Scenario,
			Capacity:       r.Capacity,
			Ticks:          r.Ticks,
			Produced:       r.Produced,
			Consumed:       r.Consumed,
			RejectedWrites: r.RejectedWrites,
			RejectedReads:  r.RejectedReads,
			Resets:         r.Resets,
			FullWrites:     r.FullWrites,
			EmptyReads:     r.EmptyReads,
			Duration:       r.elapsed,
		}
		if err := store.InsertRun(run); err != nil {
			return err
		}
	}
	return nil
}
