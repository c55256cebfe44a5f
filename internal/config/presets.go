package config

// Presets are ready-made experiment configurations.
var Presets = map[string]*Config{
	// A small planar model, the usual starting point for drawing-style
	// imitation tasks: 2-D output, modest implicit layer.
	"small": {
		Model: ModelConfig{
			DimIn: 2, DimOut: 2, DimX: 4, DimV: 4, BatchSize: 1,
			PosdefTol: DefaultPosdefTol, WeightInitStd: DefaultWeightInitStd,
			LinearOutput: true, Variant: "continuous",
		},
		Sim: SimConfig{
			Horizon: 50, Span: 1.0, Dt: DefaultDt,
			Integrator: "rk45", Adaptive: true, Tolerance: DefaultTolerance,
		},
		Input: InputConfig{Kind: "zero"},
	},
	// Wider implicit layer for more expressive feedback.
	"wide": {
		Model: ModelConfig{
			DimIn: 2, DimOut: 2, DimX: 8, DimV: 16, BatchSize: 1,
			PosdefTol: DefaultPosdefTol, WeightInitStd: DefaultWeightInitStd,
			LinearOutput: true, Variant: "continuous",
		},
		Sim: SimConfig{
			Horizon: 100, Span: 1.0, Dt: DefaultDt,
			Integrator: "rk45", Adaptive: true, Tolerance: DefaultTolerance,
		},
		Input: InputConfig{Kind: "zero"},
	},
	// Discrete recurrence with a batch of parallel trajectories, the
	// configuration expert-demonstration batches train against.
	"batch-discrete": {
		Model: ModelConfig{
			DimIn: 2, DimOut: 2, DimX: 6, DimV: 8, BatchSize: 4,
			PosdefTol: DefaultPosdefTol, WeightInitStd: DefaultWeightInitStd,
			LinearOutput: true, Variant: "discrete",
		},
		Sim:   SimConfig{Horizon: 50},
		Input: InputConfig{Kind: "zero"},
	},
	// Driven model: sinusoidal input, nonlinear readout, biases on.
	"driven": {
		Model: ModelConfig{
			DimIn: 1, DimOut: 1, DimX: 3, DimV: 2, BatchSize: 1,
			PosdefTol: DefaultPosdefTol, WeightInitStd: DefaultWeightInitStd,
			AddBias: true, LinearOutput: false, Variant: "continuous",
		},
		Sim: SimConfig{
			Horizon: 80, Span: 2.0, Dt: DefaultDt,
			Integrator: "rk45", Adaptive: true, Tolerance: DefaultTolerance,
		},
		Input: InputConfig{Kind: "sine", Amplitude: 0.5, Frequency: 1.0},
	},
}

// GetPreset returns a copy of the named preset, nil when unknown.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// ListPresets returns the available preset names.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
