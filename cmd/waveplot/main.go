package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"os"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// TraceSample is one tick of a recorded simulation trace.
type TraceSample struct {
	Tick  uint64 `json:"tick"`
	Used  uint64 `json:"used"`
	Full  bool   `json:"full"`
	Empty bool   `json:"empty"`
	Wrote bool   `json:"wrote"`
	Read  bool   `json:"read"`
}

// SimResult holds one recorded run using the simulation export schema.
// Only the fields the waveform needs are declared here.
type SimResult struct {
	Implementation string        `json:"implementation"`
	Scenario       string        `json:"scenario"`
	Stimulus       string        `json:"stimulus"`
	Capacity       uint64        `json:"capacity"`
	Ticks          uint64        `json:"ticks"`
	Trace          []TraceSample `json:"trace,omitempty"`
}

// FullReport represents a complete simulation session.
type FullReport struct {
	SessionID   string      `json:"session_id"`
	SessionTime string      `json:"session_time"`
	Results     []SimResult `json:"results"`
}

// scenarioGroup collects one trace per implementation for a scenario.
type scenarioGroup struct {
	capacity uint64
	ticks    uint64
	traces   map[string][]TraceSample
}

func main() {
	jsonFile := flag.String("jsonfile", "sim-results.json", "Path to JSON file containing simulation sessions")
	outputPrefix := flag.String("out", "waveform", "Output image filename prefix")
	scenarioFilter := flag.String("scenario", "", "Only plot this scenario (all scenarios when empty)")
	sessionIndex := flag.Int("session", -1, "Session index to plot, -1 for the most recent")
	flag.Parse()

	data, err := os.ReadFile(*jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading JSON file: %v\n", err)
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

	idx := *sessionIndex
	if idx < 0 {
		idx = len(sessions) - 1
	}
	if idx >= len(sessions) {
		fmt.Fprintf(os.Stderr, "Session index %d out of range, have %d sessions.\n", idx, len(sessions))
		os.Exit(1)
	}
	session := sessions[idx]

	// Group traces by scenario; iterations replay deterministically, so
	// the first recorded trace per implementation is the trace.
	groups := make(map[string]*scenarioGroup)
	for _, r := range session.Results {
		if len(r.Trace) == 0 {
			continue
		}
		if *scenarioFilter != "" && r.Scenario != *scenarioFilter {
			continue
		}
		g, ok := groups[r.Scenario]
		if !ok {
			g = &scenarioGroup{
				capacity: r.Capacity,
				ticks:    r.Ticks,
				traces:   make(map[string][]TraceSample),
			}
			groups[r.Scenario] = g
		}
		if _, seen := g.traces[r.Implementation]; !seen {
			g.traces[r.Implementation] = r.Trace
		}
	}
	if len(groups) == 0 {
		fmt.Fprintln(os.Stderr, "No traces found in the session. Run fifosim with -json -trace first.")
		os.Exit(1)
	}

	var scenarioNames []string
	for name := range groups {
		scenarioNames = append(scenarioNames, name)
	}
	sort.Strings(scenarioNames)

	for _, name := range scenarioNames {
		if err := plotScenario(name, groups[name], *outputPrefix); err != nil {
			fmt.Fprintf(os.Stderr, "Error plotting scenario %q: %v\n", name, err)
			continue
		}
	}
}

// plotScenario renders the occupancy waveform of every implementation
// that ran the scenario, plus the capacity bound.
func plotScenario(name string, g *scenarioGroup, prefix string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Occupancy over time: %s (capacity %d)", name, g.capacity)
	p.X.Label.Text = "Tick"
	p.Y.Label.Text = "Occupied slots"

	// Dark theme.
	p.BackgroundColor = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	p.Title.TextStyle.Color = white
	p.X.Label.TextStyle.Color = white
	p.Y.Label.TextStyle.Color = white
	p.X.Color = white
	p.Y.Color = white
	p.X.Tick.Label.Color = white
	p.Y.Tick.Label.Color = white
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.TextStyle.Color = white

	p.Add(plotter.NewGrid())
	p.Y.Min = -0.5
	p.Y.Max = float64(g.capacity) + 1

	// Dashed reference line at the slot count.
	bound := plotter.XYs{
		{X: 0, Y: float64(g.capacity)},
		{X: float64(g.ticks), Y: float64(g.capacity)},
	}
	boundLine, err := plotter.NewLine(bound)
	if err != nil {
		return err
	}
	boundLine.Color = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	boundLine.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(boundLine)
	p.Legend.Add("capacity", boundLine)

	// Sort implementations alphabetically for consistent legend ordering.
	var implNames []string
	for implName := range g.traces {
		implNames = append(implNames, implName)
	}
	sort.Strings(implNames)

	// Slight offset so implementations with identical waveforms stay visible.
	offsetRange := 0.3
	offsetStep := 0.0
	startOffset := 0.0
	if len(implNames) > 1 {
		offsetStep = offsetRange / float64(len(implNames)-1)
		startOffset = -offsetRange / 2
	}

	colors := plotutil.SoftColors
	for i, implName := range implNames {
		offset := startOffset + float64(i)*offsetStep
		line, err := plotter.NewLine(stepPoints(g.traces[implName], offset))
		if err != nil {
			return err
		}
		line.Color = colors[i%len(colors)]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(implName, line)
	}

	filename := fmt.Sprintf("%s_%s.png", prefix, name)
	if err := p.Save(14*vg.Inch, 5*vg.Inch, filename); err != nil {
		return err
	}
	fmt.Printf("Waveform for scenario %q saved to %s\n", name, filename)
	return nil
}

// stepPoints doubles each sample so occupancy renders as the square
// wave it is rather than as diagonal ramps.
func stepPoints(trace []TraceSample, offset float64) plotter.XYs {
	pts := make(plotter.XYs, 0, 2*len(trace))
	prev := offset
	for _, s := range trace {
		x := float64(s.Tick)
		y := float64(s.Used) + offset
		pts = append(pts, plotter.XY{X: x, Y: prev})
		pts = append(pts, plotter.XY{X: x, Y: y})
		prev = y
	}
	return pts
}
