// Command boundedqueue runs producers and consumers against one bounded queue
// and checks that everything produced was consumed exactly once.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/i5heu/GoBoundedQueue/internal/queue"
	"github.com/i5heu/GoBoundedQueue/internal/testbench"
	"github.com/i5heu/GoBoundedQueue/pkg/boundedqueue"
	"github.com/i5heu/GoBoundedQueue/pkg/chanqueue"
	"github.com/i5heu/GoBoundedQueue/pkg/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var implementations = map[string]func(capacity int) (queue.BlockingQueueInterface[testbench.Item], error){
	"monitor": func(c int) (queue.BlockingQueueInterface[testbench.Item], error) {
		return boundedqueue.New[testbench.Item](c)
	},
	"channel": func(c int) (queue.BlockingQueueInterface[testbench.Item], error) {
		return chanqueue.New[testbench.Item](c)
	},
}

type options struct {
	cfg      config.Config
	impl     string
	progress bool
	logLevel string
	logFile  string
	help     bool
	version  bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs, opts := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if opts.help {
		printUsage(stdout, fs)
		return exitOK
	}
	if opts.version {
		fmt.Fprintf(stdout, "boundedqueue %s\n", version)
		return exitOK
	}

	// Everything below the usage checks must be rejected before a goroutine starts.
	if err := opts.cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	newQueue, ok := implementations[opts.impl]
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown implementation %q (want one of %s)\n", opts.impl, implementationNames())
		return exitUsage
	}
	logger, err := newLogger(opts.logLevel, opts.logFile, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	defer func() { _ = logger.Sync() }()

	q, err := newQueue(opts.cfg.Capacity)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	cfg := opts.cfg
	fmt.Fprintf(stdout, "Simulating %d producers %d consumers with %d items per thread and a queue size of %d\n",
		cfg.NumProducers, cfg.NumConsumers, cfg.ItemsPerProducer, cfg.Capacity)

	runOpts := testbench.Options{Logger: logger.Named("testbench")}
	var bar *progressbar.ProgressBar
	if opts.progress && cfg.TotalItems() > 0 {
		bar = progressbar.NewOptions64(cfg.TotalItems(),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription("consumed"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(50*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		runOpts.OnConsume = func(testbench.Item) { _ = bar.Add(1) }
	}

	res, err := testbench.Run(context.Background(), q, cfg, runOpts)
	if bar != nil {
		_ = bar.Finish()
	}

	fmt.Fprintf(stdout, "Queue is empty: %t\n", q.IsEmpty())
	fmt.Fprintf(stdout, "Total produced: %d\n", res.Produced)
	fmt.Fprintf(stdout, "Total consumed: %d\n", res.Consumed)
	fmt.Fprintf(stdout, "Took %.3fms with %d produced.\n", float64(res.Elapsed.Microseconds())/1000, res.Produced)

	if err != nil {
		switch {
		case errors.Is(err, testbench.ErrMismatch):
			fmt.Fprintln(stderr, "ERROR! produced != consumed")
		case errors.Is(err, testbench.ErrDeadlock):
			fmt.Fprintln(stderr, "ERROR! run did not terminate")
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func newFlagSet(stderr io.Writer) (*pflag.FlagSet, *options) {
	opts := &options{cfg: config.Default()}
	fs := pflag.NewFlagSet("boundedqueue", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	fs.IntVarP(&opts.cfg.NumConsumers, "consumers", "c", config.DefaultConsumers, "Number of consumer goroutines")
	fs.IntVarP(&opts.cfg.NumProducers, "producers", "p", config.DefaultProducers, "Number of producer goroutines")
	fs.IntVarP(&opts.cfg.ItemsPerProducer, "items", "i", config.DefaultItemsPerProducer, "Items produced per producer")
	fs.IntVarP(&opts.cfg.Capacity, "size", "s", config.DefaultCapacity, "Queue capacity")
	fs.BoolVarP(&opts.cfg.Delay, "delay", "d", false, "Sleep a random time before each put and take")
	fs.DurationVar(&opts.cfg.MaxDelay, "max-delay", config.DefaultMaxDelay, "Upper bound of the random delay")
	fs.DurationVar(&opts.cfg.Timeout, "timeout", config.DefaultTimeout, "Fail the run if it has not terminated after this long")
	fs.StringVar(&opts.impl, "impl", "monitor", "Queue implementation: "+implementationNames())
	fs.BoolVar(&opts.progress, "progress", false, "Display a progress bar of consumed items")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFile, "log-file", "", "Also write JSON logs to this file, rotated")
	fs.BoolVarP(&opts.help, "help", "h", false, "Print usage and exit")
	fs.BoolVarP(&opts.version, "version", "V", false, "Print version and exit")

	fs.Usage = func() { printUsage(stderr, fs) }
	return fs, opts
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: boundedqueue [flags]\n\n%s", fs.FlagUsages())
}

func newLogger(level, file string, stderr io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(stderr), lvl),
	}
	if file != "" {
		rotating := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotating),
			lvl,
		))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

func implementationNames() string {
	names := make([]string, 0, len(implementations))
	for name := range implementations {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
