package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/i5heu/GoBoundedQueue/pkg/boundedqueue"
)

// =============================================================================
// Test Configuration Helpers
// =============================================================================

// getEnvInt reads an integer from an environment variable with a default value.
func getEnvInt(name string, defaultVal int) int {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return defaultVal
}

// getEnvBool reads a boolean from an environment variable with a default value.
func getEnvBool(name string, defaultVal bool) bool {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// Test size configuration via environment variables:
//   FIFO_TEST_SIZE      - Default size for normal tests (default: 10000)
//   FIFO_STRESS_SIZE    - Size for stress tests (default: 100000)
//   FIFO_ENABLE_STRESS  - Enable large stress tests (default: false)
//   FIFO_CONCURRENCY    - Number of concurrent goroutines (default: 16)

func getTestSize() int {
	return getEnvInt("FIFO_TEST_SIZE", 10000)
}

func getStressSize() int {
	return getEnvInt("FIFO_STRESS_SIZE", 100000)
}

func stressTestsEnabled() bool {
	return getEnvBool("FIFO_ENABLE_STRESS", false)
}

func getConcurrency() int {
	return getEnvInt("FIFO_CONCURRENCY", 16)
}

// drain takes until the queue reports ErrEmpty and returns the values in
// arrival order.
func drain(t *testing.T, take func() (*int, error)) []int {
	t.Helper()
	var out []int
	for {
		v, err := take()
		if errors.Is(err, boundedqueue.ErrEmpty) {
			return out
		}
		if err != nil {
			t.Errorf("Take: %v", err)
			return out
		}
		out = append(out, *v)
	}
}

// =============================================================================
// FIFO Ordering Tests
// =============================================================================

// TestStrictFIFOOrderingSingleProducer validates exact FIFO ordering with a single
// producer and single consumer running concurrently.
func TestStrictFIFOOrderingSingleProducer(t *testing.T) {
	withAllQueues(t, []string{"FIFO"}, func(t *testing.T, impl Implementation[*int]) {
		logTestStart(t, "TestStrictFIFOOrderingSingleProducer", impl)
		n := getTestSize()
		q, err := impl.newQueue(64)
		if err != nil {
			t.Fatal(err)
		}

		go func() {
			defer q.Close()
			for i := 0; i < n; i++ {
				v := i
				if err := q.Put(&v); err != nil {
					t.Errorf("Put(%d): %v", i, err)
					return
				}
			}
		}()

		received := drain(t, q.Take)
		if len(received) != n {
			t.Fatalf("received %d items, want %d", len(received), n)
		}
		for i, v := range received {
			if v != i {
				t.Fatalf("FIFO violation at index %d: got %d", i, v)
			}
		}
	})
}

// TestFIFOOrderingConcurrentProducerSingleConsumer checks that every producer's
// stream arrives in order when a single consumer drains many producers.
func TestFIFOOrderingConcurrentProducerSingleConsumer(t *testing.T) {
	withAllQueues(t, []string{"FIFO", "MPMC"}, func(t *testing.T, impl Implementation[*int]) {
		logTestStart(t, "TestFIFOOrderingConcurrentProducerSingleConsumer", impl)
		numProducers := getConcurrency()
		itemsPerProducer := getTestSize() / numProducers
		q, err := impl.newQueue(32)
		if err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		wg.Add(numProducers)
		for p := 0; p < numProducers; p++ {
			go func(p int) {
				defer wg.Done()
				for i := 0; i < itemsPerProducer; i++ {
					v := p*itemsPerProducer + i
					if err := q.Put(&v); err != nil {
						t.Errorf("producer %d Put: %v", p, err)
						return
					}
				}
			}(p)
		}
		go func() {
			wg.Wait()
			q.Close()
		}()

		received := drain(t, q.Take)
		verifyCompleteness(t, received, numProducers*itemsPerProducer)
		verifyMonotonicOrdering(t, received, numProducers, itemsPerProducer)
	})
}

// =============================================================================
// Completeness Tests
// =============================================================================

// TestNoLostMessagesHighContention runs many producers and consumers against a
// tiny buffer and checks nothing is lost or duplicated.
func TestNoLostMessagesHighContention(t *testing.T) {
	withAllQueues(t, []string{"MPMC"}, func(t *testing.T, impl Implementation[*int]) {
		logTestStart(t, "TestNoLostMessagesHighContention", impl)
		workers := getConcurrency()
		total := getTestSize()
		if testing.Short() {
			total = 2000
		}
		total -= total % workers
		perProducer := total / workers

		q, err := impl.newQueue(2)
		if err != nil {
			t.Fatal(err)
		}

		results := make(chan []int, workers)
		var consumers sync.WaitGroup
		consumers.Add(workers)
		for c := 0; c < workers; c++ {
			go func() {
				defer consumers.Done()
				results <- drain(t, q.Take)
			}()
		}

		var producers sync.WaitGroup
		producers.Add(workers)
		for p := 0; p < workers; p++ {
			go func(p int) {
				defer producers.Done()
				for i := 0; i < perProducer; i++ {
					v := p*perProducer + i
					if err := q.Put(&v); err != nil {
						t.Errorf("Put: %v", err)
						return
					}
				}
			}(p)
		}
		producers.Wait()
		q.Close()
		consumers.Wait()
		close(results)

		var received []int
		for r := range results {
			received = append(received, r...)
		}
		verifyCompleteness(t, received, total)
	})
}

// TestNoLostMessagesStress is the large version of the contention test.
func TestNoLostMessagesStress(t *testing.T) {
	if !stressTestsEnabled() {
		t.Skip("set FIFO_ENABLE_STRESS=true to run")
	}
	withAllQueues(t, []string{"MPMC"}, func(t *testing.T, impl Implementation[*int]) {
		logTestStart(t, "TestNoLostMessagesStress", impl)
		workers := runtime.NumCPU() * 2
		perProducer := getStressSize() / workers
		q, err := impl.newQueue(128)
		if err != nil {
			t.Fatal(err)
		}

		wd := newWatchdog(t, "NoLostMessagesStress")
		wd.Start()
		defer wd.Stop()

		var mu sync.Mutex
		var received []int
		var consumers sync.WaitGroup
		consumers.Add(workers)
		for c := 0; c < workers; c++ {
			go func() {
				defer consumers.Done()
				local := drain(t, func() (*int, error) {
					wd.Progress()
					return q.Take()
				})
				mu.Lock()
				received = append(received, local...)
				mu.Unlock()
			}()
		}

		var producers sync.WaitGroup
		producers.Add(workers)
		for p := 0; p < workers; p++ {
			go func(p int) {
				defer producers.Done()
				for i := 0; i < perProducer; i++ {
					v := p*perProducer + i
					_ = q.Put(&v)
				}
			}(p)
		}
		producers.Wait()
		q.Close()
		consumers.Wait()

		verifyCompleteness(t, received, workers*perProducer)
	})
}

// TestCapacityBoundaryBehavior fills to exactly capacity, then checks both the
// blocking edge and the observers.
func TestCapacityBoundaryBehavior(t *testing.T) {
	for _, capacity := range []int{1, 2, 3, 16, 1000} {
		withAllQueues(t, nil, func(t *testing.T, impl Implementation[*int]) {
			q, err := impl.newQueue(capacity)
			if err != nil {
				t.Fatal(err)
			}
			for i := 0; i < capacity; i++ {
				v := i
				_ = q.Put(&v)
			}
			if !q.IsFull() || q.FreeSlots() != 0 {
				t.Fatalf("capacity %d: expected full queue, free=%d", capacity, q.FreeSlots())
			}

			blocked := make(chan struct{})
			go func() {
				v := capacity
				_ = q.Put(&v)
				close(blocked)
			}()
			select {
			case <-blocked:
				t.Fatalf("capacity %d: Put into a full queue returned", capacity)
			case <-time.After(20 * time.Millisecond):
			}

			q.Close()
			<-blocked

			received := drain(t, q.Take)
			verifyCompleteness(t, received, capacity)
		})
	}
}

// TestRepeatedFillAndDrain cycles the buffer many times to cover index wrap.
func TestRepeatedFillAndDrain(t *testing.T) {
	withAllQueues(t, []string{"FIFO"}, func(t *testing.T, impl Implementation[*int]) {
		const capacity = 5
		q, err := impl.newQueue(capacity)
		if err != nil {
			t.Fatal(err)
		}
		for cycle := 0; cycle < 200; cycle++ {
			for i := 0; i < capacity; i++ {
				v := cycle*capacity + i
				_ = q.Put(&v)
			}
			for i := 0; i < capacity; i++ {
				v, err := q.Take()
				if err != nil {
					t.Fatal(err)
				}
				if want := cycle*capacity + i; *v != want {
					t.Fatalf("cycle %d: expected %d, got %d", cycle, want, *v)
				}
			}
			if !q.IsEmpty() {
				t.Fatalf("cycle %d: queue not empty after drain", cycle)
			}
		}
	})
}

// =============================================================================
// Helpers
// =============================================================================

// logTestStart records which implementation a test is about to run.
func logTestStart(t *testing.T, testName string, impl Implementation[*int]) {
	t.Helper()
	t.Logf("Starting %s (impl: %q, features: %v)", testName, impl.name, impl.features)
}

// verifyMonotonicOrdering checks that values form a monotonically increasing sequence
// within each producer's stream.
func verifyMonotonicOrdering(t *testing.T, received []int, numProducers, itemsPerProducer int) {
	t.Helper()

	lastSeen := make(map[int]int, numProducers)
	for i := 0; i < numProducers; i++ {
		lastSeen[i] = -1
	}

	for i, val := range received {
		producerID := val / itemsPerProducer
		localSeq := val % itemsPerProducer

		if localSeq <= lastSeen[producerID] {
			t.Errorf("Monotonic ordering violation at index %d: producer %d received %d after %d",
				i, producerID, localSeq, lastSeen[producerID])
		}
		lastSeen[producerID] = localSeq
	}
}

// verifyCompleteness checks that all expected values are present exactly once.
func verifyCompleteness(t *testing.T, received []int, expected int) {
	t.Helper()

	seen := make(map[int]int, expected)
	for _, v := range received {
		seen[v]++
	}

	missing := 0
	duplicates := 0
	for i := 0; i < expected; i++ {
		count := seen[i]
		if count == 0 {
			missing++
			if missing <= 10 {
				t.Errorf("Missing value: %d", i)
			}
		} else if count > 1 {
			duplicates++
			if duplicates <= 10 {
				t.Errorf("Duplicate value: %d (count: %d)", i, count)
			}
		}
	}

	if missing > 0 || duplicates > 0 || len(received) != expected {
		t.Errorf("Completeness check failed: %d missing, %d duplicated, %d received of %d",
			missing, duplicates, len(received), expected)
	}
}

// BenchmarkFIFOThroughput measures single producer, single consumer throughput.
func BenchmarkFIFOThroughput(b *testing.B) {
	for _, impl := range getImplementations[*int]() {
		b.Run(impl.name, func(b *testing.B) {
			q, err := impl.newQueue(256)
			if err != nil {
				b.Fatal(err)
			}
			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < b.N; i++ {
					if _, err := q.Take(); err != nil {
						return
					}
				}
			}()
			v := 1
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = q.Put(&v)
			}
			<-done
		})
	}
}

// TestPrintTestConfiguration outputs the current test configuration (informational).
func TestPrintTestConfiguration(t *testing.T) {
	t.Logf("FIFO Integrity Test Configuration:")
	t.Logf("  FIFO_TEST_SIZE:     %d", getTestSize())
	t.Logf("  FIFO_STRESS_SIZE:   %d", getStressSize())
	t.Logf("  FIFO_ENABLE_STRESS: %v", stressTestsEnabled())
	t.Logf("  FIFO_CONCURRENCY:   %d", getConcurrency())
	t.Logf("  runtime.NumCPU():   %d", runtime.NumCPU())
	t.Logf("  runtime.GOMAXPROCS: %d", runtime.GOMAXPROCS(0))

	t.Logf("\nRegistered Implementations:")
	for _, impl := range getImplementations[*int]() {
		features := "none"
		if len(impl.features) > 0 {
			features = fmt.Sprintf("%v", impl.features)
		}
		t.Logf("  - %s: %s", impl.name, features)
	}
}
