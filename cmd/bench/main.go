package main

import (
	"context"
	"flag"
	"fmt"
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

	"github.com/i5heu/GoBoundedQueue/internal/queue"
	"github.com/i5heu/GoBoundedQueue/internal/report"
	"github.com/i5heu/GoBoundedQueue/internal/testbench"
	"github.com/i5heu/GoBoundedQueue/pkg/boundedqueue"
	"github.com/i5heu/GoBoundedQueue/pkg/chanqueue"
	"github.com/i5heu/GoBoundedQueue/pkg/config"
)

// Implementation represents a queue implementation.
type Implementation[T any] struct {
	name        string
	description string
	pkgName     string
	features    []string
	newQueue    func(capacity int) (queue.BlockingQueueInterface[T], error)
}

// outputMarkdownTable loads the JSON file and prints one row per implementation
// of the last session.
func outputMarkdownTable(jsonFile string) error {
	sessions, err := report.Load(jsonFile)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return errors.Errorf("no sessions found in %s", jsonFile)
	}
	fmt.Print(renderMarkdownTable(sessions[len(sessions)-1]))
	return nil
}

func renderMarkdownTable(session report.FullReport) string {
	meta := make(map[string]Implementation[testbench.Item])
	for _, impl := range getImplementations[testbench.Item]() {
		meta[impl.name] = impl
	}

	type tableRow struct {
		implementation string
		pkgName        string
		features       string
		description    string
		runs           int
		failures       int
		throughput     float64
	}
	byImpl := make(map[string]*tableRow)
	for _, bench := range session.Benchmarks {
		row, ok := byImpl[bench.Implementation]
		if !ok {
			row = &tableRow{implementation: bench.Implementation}
			if m, ok := meta[bench.Implementation]; ok {
				row.pkgName = m.pkgName
				row.features = strings.Join(m.features, ", ")
				row.description = m.description
			}
			byImpl[bench.Implementation] = row
		}
		row.runs++
		if !bench.Success {
			row.failures++
		}
		row.throughput += bench.Throughput
	}

	rows := make([]*tableRow, 0, len(byImpl))
	for _, r := range byImpl {
		r.throughput /= float64(r.runs)
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].throughput > rows[j].throughput
	})

	var b strings.Builder
	b.WriteString("## Last Session Benchmark Summary\n\n")
	b.WriteString("| Implementation           | Package         | Features                    | Runs | Failures | Mean Throughput (msgs/sec) | Description |\n")
	b.WriteString("|--------------------------|-----------------|-----------------------------|------|----------|----------------------------|-------------|\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %-24s | %-15s | %-27s | %4d | %8d | %26.0f | %s |\n",
			r.implementation, r.pkgName, r.features, r.runs, r.failures, r.throughput, r.description)
	}
	return b.String()
}

func main() {
	// Flags.
	testIterations := flag.Int("iter", 3, "Number of test iterations per scenario")
	cpuMaxFlag := flag.Int("cpu", 0, "If non-zero, test only that GOMAXPROCS value; if 0, test common CPU/vCPU values up to runtime.NumCPU()")
	scenarioFile := flag.String("scenarios", "", "YAML scenario file; the built-in integration matrix is used when empty")
	jsonExport := flag.Bool("json", false, "Export results as JSON to test-results.json")
	markdownTable := flag.Bool("markdown-table", false, "Output markdown table from test-results.json and exit")
	jsonFileForMarkdown := flag.String("jsonfile", "test-results.json", "Path to JSON file for markdown table")
	progressFlag := flag.Bool("progress", false, "Display a progress bar with ETA")
	verbose := flag.Bool("v", false, "Log harness events")
	flag.Parse()

	if *markdownTable {
		if err := outputMarkdownTable(*jsonFileForMarkdown); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	scenarios := config.DefaultScenarios()
	if *scenarioFile != "" {
		var err error
		if scenarios, err = config.LoadScenarios(*scenarioFile); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
	}

	logger := zap.NewNop()
	if *verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintln(os.Stderr, "Error creating logger:", err)
			os.Exit(1)
		}
	}
	defer func() { _ = logger.Sync() }()

	trueCpuCount := runtime.NumCPU()
	cpuSettings := selectCPUSettings(*cpuMaxFlag, trueCpuCount)

	impls := getImplementations[testbench.Item]()
	totalTests := len(cpuSettings) * len(scenarios) * (*testIterations) * len(impls)

	var bar *progressbar.ProgressBar
	if *progressFlag {
		bar = progressbar.NewOptions(totalTests,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Progress"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
		)
	}

	var allSessions []report.FullReport
	failures := 0

	// Iterate over the desired GOMAXPROCS settings.
	for _, cpus := range cpuSettings {
		runtime.GOMAXPROCS(cpus)
		sysInfo := gatherSystemInfo()
		sysInfo.NumCPU = cpus
		sysInfo.TrueCPU = trueCpuCount
		sysInfo.SimulatedCPUCount = cpus

		fmt.Printf("\n=============================\n")
		fmt.Printf("GOMAXPROCS = %d\n", cpus)
		fmt.Printf("=============================\n")

		var results []report.BenchmarkResult
		for _, sc := range scenarios {
			fmt.Printf("  [producers=%d, consumers=%d, items=%d, size=%d, delay=%t]\n",
				sc.NumProducers, sc.NumConsumers, sc.ItemsPerProducer, sc.Capacity, sc.Delay)
			for iteration := 1; iteration <= *testIterations; iteration++ {
				for _, impl := range impls {
					runtime.GC()
					result := runOnce(impl, sc, logger)
					if !result.Success {
						failures++
					}
					if bar != nil {
						_ = bar.Add(1)
					} else {
						status := "ok"
						if !result.Success {
							status = "FAILED: " + result.Error
						}
						fmt.Printf("    %s #%d => produced=%d, consumed=%d, throughput=%.0f msg/s, took=%s %s\n",
							impl.name, iteration, result.NumProduced, result.NumConsumed, result.Throughput, result.ActualElapsed, status)
					}
					results = append(results, result)
				}
			}
		}

		allSessions = append(allSessions, report.FullReport{
			SessionID:   uuid.NewString(),
			SessionTime: time.Now().Format(time.RFC3339),
			SystemInfo:  sysInfo,
			Benchmarks:  results,
		})
	}

	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	if *jsonExport {
		const filename = "test-results.json"
		if err := report.Append(filename, allSessions); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote results to %s\n", filename)
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d run(s) failed verification\n", failures)
		os.Exit(1)
	}
}

func selectCPUSettings(cpuMax, trueCpuCount int) []int {
	if cpuMax > 0 {
		return []int{min(cpuMax, trueCpuCount)}
	}
	commonCPUs := []int{1, 2, 3, 4, 6, 8, 12, 16, 32, 48, 56, 64, 96, 128, 192, 256, 384, 512}
	var out []int
	for _, v := range commonCPUs {
		if v <= trueCpuCount {
			out = append(out, v)
		}
	}
	return out
}

func runOnce(impl Implementation[testbench.Item], sc config.Config, logger *zap.Logger) report.BenchmarkResult {
	result := report.BenchmarkResult{
		Implementation:   impl.name,
		NumProducers:     sc.NumProducers,
		NumConsumers:     sc.NumConsumers,
		ItemsPerProducer: sc.ItemsPerProducer,
		Capacity:         sc.Capacity,
		Delay:            sc.Delay,
		Timestamp:        time.Now().Unix(),
		GoVersion:        runtime.Version(),
	}

	q, err := impl.newQueue(sc.Capacity)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	res, err := testbench.Run(context.Background(), q, sc, testbench.Options{
		Logger: logger.With(zap.String("impl", impl.name)),
	})
	result.NumProduced = res.Produced
	result.NumConsumed = res.Consumed
	result.ActualElapsed = res.Elapsed.String()
	if secs := res.Elapsed.Seconds(); secs > 0 {
		result.Throughput = float64(res.Consumed) / secs
	}
	result.Success = err == nil
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// gatherSystemInfo collects basic CPU and memory details.
func gatherSystemInfo() report.SystemInfo {
	var cpuModel string
	var cpuSpeed float64
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		cpuModel = infos[0].ModelName
		cpuSpeed = infos[0].Mhz
	}

	var totalMemory uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		totalMemory = vm.Total
	}

	return report.SystemInfo{
		NumCPU:      runtime.NumCPU(),
		CPUModel:    cpuModel,
		CPUSpeedMHz: cpuSpeed,
		GOARCH:      runtime.GOARCH,
		TotalMemory: totalMemory,
	}
}

// getImplementations enumerates the queue implementations under test.
func getImplementations[T any]() []Implementation[T] {
	return []Implementation[T]{
		{
			name:        "MonitorQueue",
			pkgName:     "boundedqueue",
			description: "Mutex plus two condition variables over a fixed ring; FIFO wake-up order.",
			features:    []string{"MPMC", "FIFO", "Blocking", "Drain-On-Close"},
			newQueue: func(capacity int) (queue.BlockingQueueInterface[T], error) {
				return boundedqueue.New[T](capacity)
			},
		},
		{
			name:        "Golang Buffered Channel",
			pkgName:     "chanqueue",
			description: "Buffered channel with a done channel and an in-flight barrier for close.",
			features:    []string{"MPMC", "FIFO", "Blocking", "Drain-On-Close"},
			newQueue: func(capacity int) (queue.BlockingQueueInterface[T], error) {
				return chanqueue.New[T](capacity)
			},
		},
	}
}
