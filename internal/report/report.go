// Package report is the JSON schema written by the bench command and read by
// buildGraph.
package report

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
)

// BenchmarkResult holds results for one harness run.
type BenchmarkResult struct {
	Implementation   string  `json:"implementation"`
	NumProducers     int     `json:"num_producers"`
	NumConsumers     int     `json:"num_consumers"`
	ItemsPerProducer int     `json:"items_per_producer"`
	Capacity         int     `json:"capacity"`
	Delay            bool    `json:"delay"`
	NumProduced      int64   `json:"num_produced"`
	NumConsumed      int64   `json:"num_consumed"`
	ActualElapsed    string  `json:"actual_elapsed"`      // measured time
	Throughput       float64 `json:"throughput_msgs_sec"` // based on consumed count
	Success          bool    `json:"success"`
	Error            string  `json:"error,omitempty"`
	Timestamp        int64   `json:"timestamp"`
	GoVersion        string  `json:"go_version"`
}

// NsPerItem is the elapsed time divided by consumed items. ok is false for
// failed runs and runs that consumed nothing.
func (b BenchmarkResult) NsPerItem() (ns float64, ok bool) {
	if !b.Success || b.NumConsumed == 0 {
		return 0, false
	}
	dur, err := time.ParseDuration(b.ActualElapsed)
	if err != nil {
		return 0, false
	}
	return float64(dur.Nanoseconds()) / float64(b.NumConsumed), true
}

// SystemInfo holds system information.
type SystemInfo struct {
	NumCPU            int     `json:"num_cpu"`
	TrueCPU           int     `json:"true_cpu,omitempty"`
	SimulatedCPUCount int     `json:"simulated_cpu_count,omitempty"`
	CPUModel          string  `json:"cpu_model,omitempty"`
	CPUSpeedMHz       float64 `json:"cpu_speed_mhz,omitempty"`
	GOARCH            string  `json:"go_arch"`
	TotalMemory       uint64  `json:"total_memory_bytes,omitempty"`
}

// CPUs is the GOMAXPROCS value the session ran with.
func (s SystemInfo) CPUs() int {
	if s.SimulatedCPUCount != 0 {
		return s.SimulatedCPUCount
	}
	return s.NumCPU
}

// FullReport represents a complete test session.
type FullReport struct {
	SessionID   string            `json:"session_id"`
	SessionTime string            `json:"session_time"`
	SystemInfo  SystemInfo        `json:"system_info"`
	Benchmarks  []BenchmarkResult `json:"benchmarks"`
}

// Load reads every session stored in path.
func Load(path string) ([]FullReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading JSON file %q", path)
	}
	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling %q", path)
	}
	return sessions, nil
}

// Append adds sessions to the list stored in path, creating the file if needed.
func Append(path string, sessions []FullReport) error {
	var previous []FullReport
	if _, err := os.Stat(path); err == nil {
		if previous, err = Load(path); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(append(previous, sessions...), "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshalling JSON")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "writing %q", path)
}
