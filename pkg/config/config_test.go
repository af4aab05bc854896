package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 1, c.NumProducers)
	assert.Equal(t, 1, c.NumConsumers)
	assert.Equal(t, 10, c.ItemsPerProducer)
	assert.Equal(t, 5, c.Capacity)
	assert.False(t, c.Delay)
	assert.Equal(t, int64(10), c.TotalItems())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capacity", func(c *Config) { c.Capacity = 0 }},
		{"negative capacity", func(c *Config) { c.Capacity = -3 }},
		{"negative producers", func(c *Config) { c.NumProducers = -1 }},
		{"negative consumers", func(c *Config) { c.NumConsumers = -1 }},
		{"negative items", func(c *Config) { c.ItemsPerProducer = -1 }},
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"no consumers overflow", func(c *Config) { c.NumConsumers = 0; c.Capacity = 5; c.ItemsPerProducer = 6 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestValidateAcceptsBufferedRunWithoutConsumers(t *testing.T) {
	c := Default()
	c.NumConsumers = 0
	c.NumProducers = 1
	c.ItemsPerProducer = 5
	c.Capacity = 5
	assert.NoError(t, c.Validate())
}

func TestWithDefaults(t *testing.T) {
	c := Config{Capacity: 1}.WithDefaults()
	assert.Equal(t, DefaultMaxDelay, c.MaxDelay)
	assert.Equal(t, DefaultTimeout, c.Timeout)
}

func TestLoadScenarios(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	body := `scenarios:
  - producers: 2
    consumers: 3
    items: 40
    size: 4
    delay: true
    max_delay: 250us
  - producers: 1
    consumers: 1
    items: 0
    size: 1
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	got, err := LoadScenarios(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 2, got[0].NumProducers)
	assert.Equal(t, 3, got[0].NumConsumers)
	assert.Equal(t, 40, got[0].ItemsPerProducer)
	assert.Equal(t, 4, got[0].Capacity)
	assert.True(t, got[0].Delay)
	assert.Equal(t, 250*time.Microsecond, got[0].MaxDelay)
	assert.Equal(t, DefaultTimeout, got[0].Timeout)

	assert.Equal(t, 0, got[1].ItemsPerProducer)
	assert.Equal(t, DefaultMaxDelay, got[1].MaxDelay)
}

func TestLoadScenariosRejectsInvalidEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scenarios:\n  - producers: 1\n    consumers: 1\n    items: 1\n    size: 0\n"), 0o644))

	_, err := LoadScenarios(path)
	assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
}

func TestLoadScenariosEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scenarios: []\n"), 0o644))

	_, err := LoadScenarios(path)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestDefaultScenariosAreValid(t *testing.T) {
	scenarios := DefaultScenarios()
	require.Len(t, scenarios, 21)
	for i, sc := range scenarios {
		assert.NoError(t, sc.Validate(), "scenario %d", i)
	}
}
