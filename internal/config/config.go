// Package config holds the YAML experiment surface consumed at
// construction time.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPosdefTol     = 5.0e-2
	DefaultWeightInitStd = 0.5
	DefaultHorizon       = 50
	DefaultSpan          = 1.0
	DefaultDt            = 0.005
	DefaultTolerance     = 1e-4
)

type Config struct {
	Model      ModelConfig `yaml:"model"`
	Sim        SimConfig   `yaml:"sim"`
	Input      InputConfig `yaml:"input"`
	InitOutput []float64   `yaml:"init_output"`
	Seed       int64       `yaml:"seed"`
}

type ModelConfig struct {
	DimIn             int     `yaml:"dim_in"`
	DimOut            int     `yaml:"dim_out"`
	DimX              int     `yaml:"dim_x"`
	DimV              int     `yaml:"dim_v"`
	BatchSize         int     `yaml:"batch_size"`
	PosdefTol         float64 `yaml:"posdef_tol"`
	ContractionRateLB float64 `yaml:"contraction_rate_lb"`
	WeightInitStd     float64 `yaml:"weight_init_std"`
	AddBias           bool    `yaml:"add_bias"`
	LinearOutput      bool    `yaml:"linear_output"`
	Variant           string  `yaml:"variant"`
}

type SimConfig struct {
	Horizon    int     `yaml:"horizon"`
	Span       float64 `yaml:"span"`
	Dt         float64 `yaml:"dt"`
	Integrator string  `yaml:"integrator"`
	Adaptive   bool    `yaml:"adaptive"`
	Tolerance  float64 `yaml:"tolerance"`
}

type InputConfig struct {
	Kind      string      `yaml:"kind"` // zero, constant, sequence, sine
	Values    []float64   `yaml:"values"`
	Samples   [][]float64 `yaml:"samples"`
	Amplitude float64     `yaml:"amplitude"`
	Frequency float64     `yaml:"frequency"`
}

func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			DimIn:         2,
			DimOut:        2,
			DimX:          4,
			DimV:          4,
			BatchSize:     1,
			PosdefTol:     DefaultPosdefTol,
			WeightInitStd: DefaultWeightInitStd,
			LinearOutput:  true,
			Variant:       "continuous",
		},
		Sim: SimConfig{
			Horizon:    DefaultHorizon,
			Span:       DefaultSpan,
			Dt:         DefaultDt,
			Integrator: "rk45",
			Adaptive:   true,
			Tolerance:  DefaultTolerance,
		},
		Input: InputConfig{Kind: "zero"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports configuration errors; these are fatal at
// construction and never retried.
func (c *Config) Validate() error {
	m := c.Model
	if m.DimIn <= 0 || m.DimOut <= 0 || m.DimX <= 0 || m.DimV <= 0 || m.BatchSize <= 0 {
		return fmt.Errorf("config: model dimensions must be positive")
	}
	if m.PosdefTol <= 0 {
		return fmt.Errorf("config: posdef_tol must be positive, got %g", m.PosdefTol)
	}
	if m.ContractionRateLB < 0 {
		return fmt.Errorf("config: contraction_rate_lb must be non-negative, got %g", m.ContractionRateLB)
	}
	if m.WeightInitStd <= 0 {
		return fmt.Errorf("config: weight_init_std must be positive, got %g", m.WeightInitStd)
	}
	switch m.Variant {
	case "continuous", "discrete":
	default:
		return fmt.Errorf("config: unknown variant %q", m.Variant)
	}
	if c.Sim.Horizon < 2 {
		return fmt.Errorf("config: horizon must be at least 2, got %d", c.Sim.Horizon)
	}
	if m.Variant == "continuous" {
		if c.Sim.Span <= 0 {
			return fmt.Errorf("config: span must be positive, got %g", c.Sim.Span)
		}
		if c.Sim.Dt <= 0 {
			return fmt.Errorf("config: dt must be positive, got %g", c.Sim.Dt)
		}
		if c.Sim.Adaptive && c.Sim.Tolerance <= 0 {
			return fmt.Errorf("config: tolerance must be positive for adaptive stepping")
		}
	}
	switch c.Input.Kind {
	case "zero", "constant", "sequence", "sine":
	default:
		return fmt.Errorf("config: unknown input kind %q", c.Input.Kind)
	}
	return nil
}
