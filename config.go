package hnsw

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the construction parameters of a graph in a form that can be
// loaded from YAML. See Graph for the meaning of each parameter.
type Config struct {
	M              int     `yaml:"m"`
	Ml             float64 `yaml:"ml"`
	EfConstruction int     `yaml:"ef_construction"`
	EfSearch       int     `yaml:"ef_search"`

	// Distance is the registered name of the distance function.
	Distance string `yaml:"distance"`

	KeepPrunedConnections bool `yaml:"keep_pruned_connections"`

	// Seed seeds level generation. Zero seeds from the clock.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig returns the parameters used by NewGraph.
func DefaultConfig() Config {
	return Config{
		M:              16,
		EfConstruction: 200,
		EfSearch:       50,
		Distance:       "cosine",
	}
}

// Validate reports the first invalid parameter.
func (c Config) Validate() error {
	if c.M < 2 {
		return invalidConfig("m must be at least 2, got %d", c.M)
	}
	if c.Ml < 0 || math.IsNaN(c.Ml) || math.IsInf(c.Ml, 0) {
		return invalidConfig("ml must be a non-negative finite number, got %f", c.Ml)
	}
	if c.EfConstruction <= 0 {
		return invalidConfig("ef_construction must be greater than 0, got %d", c.EfConstruction)
	}
	if c.EfSearch <= 0 {
		return invalidConfig("ef_search must be greater than 0, got %d", c.EfSearch)
	}
	if _, ok := distanceFuncs[c.Distance]; !ok {
		return invalidConfig("unknown distance %q", c.Distance)
	}
	return nil
}

// ParseConfig decodes YAML on top of DefaultConfig, so omitted fields keep
// their defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}
