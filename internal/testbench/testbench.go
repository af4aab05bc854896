package testbench

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i5heu/GoBoundedQueue/internal/queue"
	"github.com/i5heu/GoBoundedQueue/pkg/boundedqueue"
	"github.com/i5heu/GoBoundedQueue/pkg/config"
)

var (
	// ErrDeadlock is returned when a run does not terminate within Config.Timeout.
	ErrDeadlock = errors.New("testbench: run did not terminate in time")

	// ErrMismatch is returned when the delivered items do not match what was produced.
	ErrMismatch = errors.New("testbench: produced and consumed items differ")

	// ErrProducerClosed is returned when Put fails with a closed queue while
	// producers are still running.
	ErrProducerClosed = errors.New("testbench: queue closed before all producers finished")
)

// Item is what producers put into the queue. Seq counts up from zero per producer.
type Item struct {
	Producer int
	Seq      int
}

// State is the lifecycle of a run.
type State int32

const (
	Running State = iota
	Draining
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Result is the outcome of Run.
type Result struct {
	Produced   int64
	Consumed   int64
	Expected   int64
	Duplicates int64
	Missing    int64
	OutOfOrder int64
	Elapsed    time.Duration
	FinalState State
}

// Options carries optional hooks. The zero value is valid.
type Options struct {
	Logger *zap.Logger

	// OnProduce and OnConsume are called from producer and consumer
	// goroutines after each successful Put or Take.
	OnProduce func(Item)
	OnConsume func(Item)
}

type run struct {
	q      queue.BlockingQueueInterface[Item]
	cfg    config.Config
	opts   Options
	log    *zap.Logger
	state  atomic.Int32
	active atomic.Int64

	produced atomic.Int64
	consumed atomic.Int64

	// deliveries[p][seq] counts how often an item was taken.
	deliveries [][]atomic.Int32
	// lastSeq tracks per-producer order; only read when there is one consumer.
	lastSeq []int
	order   atomic.Int64
	foreign atomic.Int64
}

// Run spawns cfg.NumProducers producers and cfg.NumConsumers consumers against
// q and waits until every item has been delivered. The last producer to finish
// closes the queue; consumers stop on boundedqueue.ErrEmpty. The returned
// error is nil only if every produced item was consumed exactly once.
func Run(ctx context.Context, q queue.BlockingQueueInterface[Item], cfg config.Config, opts Options) (Result, error) {
	cfg = cfg.WithDefaults()
	cfg.Capacity = q.Cap()
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	r := &run{
		q:    q,
		cfg:  cfg,
		opts: opts,
		log:  opts.Logger,
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	r.deliveries = make([][]atomic.Int32, cfg.NumProducers)
	for p := range r.deliveries {
		r.deliveries[p] = make([]atomic.Int32, cfg.ItemsPerProducer)
	}
	r.lastSeq = make([]int, cfg.NumProducers)
	for p := range r.lastSeq {
		r.lastSeq[p] = -1
	}
	r.active.Store(int64(cfg.NumProducers))

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	r.log.Info("run started",
		zap.Int("producers", cfg.NumProducers),
		zap.Int("consumers", cfg.NumConsumers),
		zap.Int("items_per_producer", cfg.ItemsPerProducer),
		zap.Int("capacity", q.Cap()),
		zap.Bool("delay", cfg.Delay),
	)

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- r.execute() }()

	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		// Release whatever is still parked so goroutines can exit.
		q.Close()
		runErr = errors.Wrapf(ErrDeadlock, "after %s (state %s)", cfg.Timeout, State(r.state.Load()))
	}

	res := Result{
		Produced:   r.produced.Load(),
		Consumed:   r.consumed.Load(),
		Expected:   cfg.TotalItems(),
		OutOfOrder: r.order.Load(),
		Elapsed:    time.Since(start),
		FinalState: State(r.state.Load()),
	}
	if runErr != nil {
		r.log.Error("run failed", zap.Error(runErr), zap.Stringer("state", res.FinalState))
		return res, runErr
	}

	res.Duplicates, res.Missing = r.audit()
	if err := res.verify(); err != nil {
		r.log.Error("verification failed", zap.Error(err))
		return res, err
	}

	r.log.Info("run finished",
		zap.Int64("produced", res.Produced),
		zap.Int64("consumed", res.Consumed),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (r *run) execute() error {
	var producers, consumers errgroup.Group

	if r.cfg.NumProducers == 0 {
		r.finishProduction()
	}
	for p := 0; p < r.cfg.NumProducers; p++ {
		producers.Go(func() error { return r.produce(p) })
	}
	for c := 0; c < r.cfg.NumConsumers; c++ {
		consumers.Go(r.consume)
	}

	prodErr := producers.Wait()
	if r.cfg.NumConsumers == 0 {
		// Nobody else will drain the closed queue.
		consumers.Go(r.consume)
	}
	consErr := consumers.Wait()
	r.setState(Terminated)

	if prodErr != nil {
		return prodErr
	}
	return consErr
}

func (r *run) produce(id int) error {
	defer func() {
		if r.active.Add(-1) == 0 {
			r.finishProduction()
		}
	}()

	for seq := 0; seq < r.cfg.ItemsPerProducer; seq++ {
		item := Item{Producer: id, Seq: seq}
		r.pause()
		if err := r.q.Put(item); err != nil {
			if errors.Is(err, boundedqueue.ErrClosed) {
				return errors.Wrapf(ErrProducerClosed, "producer %d at seq %d", id, seq)
			}
			return errors.Wrapf(err, "producer %d", id)
		}
		r.produced.Add(1)
		if r.opts.OnProduce != nil {
			r.opts.OnProduce(item)
		}
	}
	return nil
}

func (r *run) consume() error {
	for {
		r.pause()
		item, err := r.q.Take()
		if errors.Is(err, boundedqueue.ErrEmpty) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "consumer")
		}
		r.record(item)
		r.consumed.Add(1)
		if r.opts.OnConsume != nil {
			r.opts.OnConsume(item)
		}
	}
}

// finishProduction is the shutdown trigger: it runs once, after the last
// producer has confirmed completion.
func (r *run) finishProduction() {
	r.q.Close()
	r.setState(Draining)
}

func (r *run) setState(s State) {
	old := State(r.state.Swap(int32(s)))
	if old != s {
		r.log.Debug("state change", zap.Stringer("from", old), zap.Stringer("to", s))
	}
}

func (r *run) pause() {
	if !r.cfg.Delay || r.cfg.MaxDelay <= 0 {
		return
	}
	time.Sleep(rand.N(r.cfg.MaxDelay))
}

func (r *run) record(item Item) {
	if item.Producer < 0 || item.Producer >= len(r.deliveries) ||
		item.Seq < 0 || item.Seq >= len(r.deliveries[item.Producer]) {
		r.foreign.Add(1)
		return
	}
	r.deliveries[item.Producer][item.Seq].Add(1)

	// A single consumer sees each producer's items in put order.
	if r.cfg.NumConsumers <= 1 {
		if item.Seq != r.lastSeq[item.Producer]+1 {
			r.order.Add(1)
		}
		r.lastSeq[item.Producer] = item.Seq
	}
}

func (r *run) audit() (duplicates, missing int64) {
	duplicates = r.foreign.Load()
	for p := range r.deliveries {
		for s := range r.deliveries[p] {
			switch n := r.deliveries[p][s].Load(); {
			case n == 0:
				missing++
			case n > 1:
				duplicates += int64(n - 1)
			}
		}
	}
	return duplicates, missing
}

func (res Result) verify() error {
	switch {
	case res.Produced != res.Expected:
		return errors.Wrapf(ErrMismatch, "produced %d, expected %d", res.Produced, res.Expected)
	case res.Consumed != res.Produced:
		return errors.Wrapf(ErrMismatch, "produced %d, consumed %d", res.Produced, res.Consumed)
	case res.Duplicates > 0 || res.Missing > 0:
		return errors.Wrapf(ErrMismatch, "%d duplicated, %d missing", res.Duplicates, res.Missing)
	case res.OutOfOrder > 0:
		return errors.Wrapf(ErrMismatch, "%d items out of producer order", res.OutOfOrder)
	}
	return nil
}

// Succeeded reports whether the tallies match.
func (res Result) Succeeded() bool {
	return res.verify() == nil
}
