// Package config describes one producer/consumer run and loads scenario
// matrices for the bench command.
package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultProducers        = 1
	DefaultConsumers        = 1
	DefaultItemsPerProducer = 10
	DefaultCapacity         = 5

	// DefaultMaxDelay bounds the random pause taken before each Put and Take
	// when Delay is set.
	DefaultMaxDelay = time.Millisecond

	// DefaultTimeout is the wall-clock bound after which a run is declared
	// deadlocked.
	DefaultTimeout = 30 * time.Second
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the concurrency shape of a single run.
type Config struct {
	NumProducers     int           `yaml:"producers" json:"num_producers" validate:"gte=0"`
	NumConsumers     int           `yaml:"consumers" json:"num_consumers" validate:"gte=0"`
	ItemsPerProducer int           `yaml:"items" json:"items_per_producer" validate:"gte=0"`
	Capacity         int           `yaml:"size" json:"capacity" validate:"gte=1"`
	Delay            bool          `yaml:"delay" json:"delay"`
	MaxDelay         time.Duration `yaml:"max_delay" json:"max_delay" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
}

// Default returns the configuration used when no flag overrides a value.
func Default() Config {
	return Config{
		NumProducers:     DefaultProducers,
		NumConsumers:     DefaultConsumers,
		ItemsPerProducer: DefaultItemsPerProducer,
		Capacity:         DefaultCapacity,
		MaxDelay:         DefaultMaxDelay,
		Timeout:          DefaultTimeout,
	}
}

// TotalItems is the number of items the run must deliver.
func (c Config) TotalItems() int64 {
	return int64(c.NumProducers) * int64(c.ItemsPerProducer)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and rejects shapes that can never terminate.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.Wrapf(ErrInvalid, "%s must be %s %s, got %v", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
		}
		return errors.Wrap(ErrInvalid, err.Error())
	}
	// Without consumers the harness drains after close, so everything has to
	// fit in the buffer or producers block forever.
	if c.NumConsumers == 0 && c.TotalItems() > int64(c.Capacity) {
		return errors.Wrapf(ErrInvalid, "no consumers and %d items exceed capacity %d", c.TotalItems(), c.Capacity)
	}
	return nil
}

// WithDefaults fills zero durations with their defaults.
func (c Config) WithDefaults() Config {
	if c.MaxDelay == 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Scenarios is the on-disk form of a bench matrix.
type Scenarios struct {
	Scenarios []Config `yaml:"scenarios"`
}

// LoadScenarios reads a YAML scenario file. Every entry is defaulted and validated.
func LoadScenarios(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenarios %q", path)
	}
	var s Scenarios
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrapf(err, "parse scenarios %q", path)
	}
	if len(s.Scenarios) == 0 {
		return nil, errors.Wrapf(ErrInvalid, "%q contains no scenarios", path)
	}
	out := make([]Config, 0, len(s.Scenarios))
	for i, sc := range s.Scenarios {
		sc = sc.WithDefaults()
		if err := sc.Validate(); err != nil {
			return nil, errors.Wrapf(err, "scenario %d", i)
		}
		out = append(out, sc)
	}
	return out, nil
}

// DefaultScenarios is the built-in integration matrix
// (producers, consumers, items per producer, capacity, delay).
func DefaultScenarios() []Config {
	rows := [][5]int{
		{2, 2, 10, 5, 0},
		{4, 4, 20, 10, 1},
		{8, 2, 15, 8, 0},
		{2, 8, 15, 8, 1},
		{3, 3, 50, 20, 1},
		{1, 1, 10, 5, 0},
		{2, 2, 50, 10, 0},
		{4, 2, 100, 20, 0},
		{2, 4, 100, 10, 0},
		{1, 8, 80, 5, 0},
		{8, 1, 10, 2, 0},
		{4, 4, 1000, 50, 1},
		{8, 8, 1000, 100, 1},
		{16, 4, 500, 10, 1},
		{4, 16, 500, 10, 1},
		{1, 1, 1000, 1, 1},
		{3, 5, 200, 3, 1},
		{5, 3, 200, 3, 1},
		{6, 6, 600, 6, 1},
		{10, 2, 150, 2, 1},
		{2, 10, 150, 2, 1},
	}
	out := make([]Config, 0, len(rows))
	for _, r := range rows {
		c := Default()
		c.NumProducers, c.NumConsumers, c.ItemsPerProducer, c.Capacity = r[0], r[1], r[2], r[3]
		c.Delay = r[4] == 1
		out = append(out, c)
	}
	return out
}
