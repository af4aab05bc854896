package main

import (
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/i5heu/GoBoundedQueue/internal/report"
)

// xAxis selects how runs are placed along the X axis.
type xAxis string

const (
	axisWorkers  xAxis = "workers"  // producers + consumers
	axisCapacity xAxis = "capacity" // queue size
)

func (a xAxis) label() string {
	if a == axisCapacity {
		return "Queue capacity"
	}
	return "NumProducers + NumConsumers"
}

func (a xAxis) value(b report.BenchmarkResult) float64 {
	if a == axisCapacity {
		return float64(b.Capacity)
	}
	return float64(b.NumProducers + b.NumConsumers)
}

// groupKey is one output image: a GOMAXPROCS value and whether the runs slept.
type groupKey struct {
	cpus  int
	delay bool
}

// series is implementation -> x -> ns/item samples.
type series map[string]map[float64][]float64

func main() {
	jsonFile := flag.String("jsonfile", "test-results.json", "Path to JSON file containing test sessions")
	outputPrefix := flag.String("out", "benchmark_graph", "Output graph image filename prefix")
	axis := flag.String("x", string(axisWorkers), "X axis: workers or capacity")
	flag.Parse()

	x := xAxis(*axis)
	if x != axisWorkers && x != axisCapacity {
		fmt.Fprintf(os.Stderr, "Error: unknown x axis %q\n", *axis)
		os.Exit(2)
	}

	sessions, err := report.Load(*jsonFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	groups, skipped := groupSamples(sessions, x)
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "Skipped %d failed or empty runs\n", skipped)
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].cpus != keys[j].cpus {
			return keys[i].cpus < keys[j].cpus
		}
		return !keys[i].delay && keys[j].delay
	})

	for _, k := range keys {
		p := newPlot(k, x)
		addSeries(p, groups[k])

		suffix := ""
		if k.delay {
			suffix = "_delay"
		}
		filename := fmt.Sprintf("%s_%d%s.png", *outputPrefix, k.cpus, suffix)
		if err := p.Save(12*vg.Inch, 9*vg.Inch, filename); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving plot for %d CPU(s): %v\n", k.cpus, err)
			continue
		}
		fmt.Printf("Graph for %d CPU(s) saved to %s\n", k.cpus, filename)
	}
}

// groupSamples buckets the ns/item of every successful run.
func groupSamples(sessions []report.FullReport, x xAxis) (map[groupKey]series, int) {
	groups := make(map[groupKey]series)
	skipped := 0
	for _, session := range sessions {
		cpus := session.SystemInfo.CPUs()
		for _, b := range session.Benchmarks {
			ns, ok := b.NsPerItem()
			if !ok {
				skipped++
				continue
			}
			k := groupKey{cpus: cpus, delay: b.Delay}
			if groups[k] == nil {
				groups[k] = make(series)
			}
			if groups[k][b.Implementation] == nil {
				groups[k][b.Implementation] = make(map[float64][]float64)
			}
			xv := x.value(b)
			groups[k][b.Implementation][xv] = append(groups[k][b.Implementation][xv], ns)
		}
	}
	return groups, skipped
}

func newPlot(k groupKey, x xAxis) *plot.Plot {
	p := plot.New()
	mode := "no delay"
	if k.delay {
		mode = "random delay"
	}
	p.Title.Text = fmt.Sprintf("Time per item (5%%-avg-min / Median / 5%%-avg-max), %d CPU(s), %s", k.cpus, mode)
	p.X.Label.Text = x.label()
	p.Y.Label.Text = "Time per item [log scale]"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = denseLogTicks{pxHeight: 648, pxSpacing: 30}

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
	return p
}

func addSeries(p *plot.Plot, impls series) {
	// Union of X values, mapped onto evenly spaced categories.
	xSet := make(map[float64]struct{})
	for _, byX := range impls {
		for xv := range byX {
			xSet[xv] = struct{}{}
		}
	}
	xValues := make([]float64, 0, len(xSet))
	for xv := range xSet {
		xValues = append(xValues, xv)
	}
	sort.Float64s(xValues)

	category := make(map[float64]float64, len(xValues))
	ticks := categoryTicks{}
	for i, xv := range xValues {
		category[xv] = float64(i)
		ticks.positions = append(ticks.positions, float64(i))
		ticks.labels = append(ticks.labels, strconv.FormatFloat(xv, 'f', -1, 64))
	}
	p.X.Tick.Marker = ticks

	names := make([]string, 0, len(impls))
	for name := range impls {
		names = append(names, name)
	}
	sort.Strings(names)

	colors := plotutil.SoftColors
	shapes := []draw.GlyphDrawer{
		draw.CircleGlyph{},
		draw.SquareGlyph{},
		draw.TriangleGlyph{},
		draw.CrossGlyph{},
		draw.PlusGlyph{},
	}

	// Slight offset so each implementation is visually separated.
	const offsetRange = 0.4
	offsetStep := offsetRange / float64(len(names))
	startOffset := -offsetRange/2 + offsetStep/2

	for i, name := range names {
		stats := buildStats(impls[name])
		for j := range stats {
			stats[j].x = category[stats[j].orig] + startOffset + float64(i)*offsetStep
		}
		sort.Slice(stats, func(a, b int) bool { return stats[a].x < stats[b].x })
		sp := statsPoints(stats)

		line, err := plotter.NewLine(sp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating line for %s: %v\n", name, err)
			continue
		}
		points, err := plotter.NewScatter(sp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating scatter for %s: %v\n", name, err)
			continue
		}
		bars, err := plotter.NewYErrorBars(sp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating error bars for %s: %v\n", name, err)
			continue
		}

		c := colors[i%len(colors)]
		line.Color = c
		points.Color = c
		points.Shape = shapes[i%len(shapes)]
		points.GlyphStyle.Radius = vg.Points(5)
		bars.Color = c

		p.Add(line, points, bars)
		p.Legend.Add(name, line, points)
	}
}

// categoryTicks implements a categorical X-axis: 0,1,2,... => labels.
type categoryTicks struct {
	positions []float64
	labels    []string
}

func (ct categoryTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for i, pos := range ct.positions {
		if pos >= min && pos <= max {
			ticks = append(ticks, plot.Tick{Value: pos, Label: ct.labels[i]})
		}
	}
	return ticks
}

// denseLogTicks spaces labelled ticks evenly in log space so a tall image
// gets a label roughly every pxSpacing pixels.
type denseLogTicks struct {
	pxHeight  float64
	pxSpacing float64
}

func (d denseLogTicks) Ticks(min, max float64) []plot.Tick {
	if min <= 0 {
		min = 1e-9
	}
	if max <= min {
		return []plot.Tick{{Value: min, Label: formatNs(min)}}
	}
	n := d.pxHeight / d.pxSpacing
	start, end := math.Log10(min), math.Log10(max)
	step := (end - start) / n

	var ticks []plot.Tick
	for i := 0.0; i <= n; i++ {
		y := math.Pow(10, start+i*step)
		ticks = append(ticks, plot.Tick{Value: y, Label: formatNs(y)})
	}
	return ticks
}
