package sim

import (
	"context"
	"math"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"zeros", State{0.0, 0.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Norm(t *testing.T) {
	tests := []struct {
		state    State
		expected float64
	}{
		{State{3, 4}, 5.0},
		{State{1, 0}, 1.0},
		{State{0, 0}, 0.0},
		{State{1, 1, 1, 1}, 2.0},
	}

	for _, tt := range tests {
		if got := tt.state.Norm(); math.Abs(got-tt.expected) > 1e-10 {
			t.Errorf("Norm(%v) = %v, want %v", tt.state, got, tt.expected)
		}
	}
}

func TestState_CloneIndependent(t *testing.T) {
	a := State{1, 2, 3}
	b := a.Clone()
	b[0] = 99
	if a[0] != 1 {
		t.Error("Clone did not create independent copy")
	}

	diff := State{4, 5, 6}.Sub(a)
	if diff[0] != 3 || diff[1] != 3 || diff[2] != 3 {
		t.Errorf("Sub failed: got %v", diff)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Horizon < 2 {
		t.Error("DefaultConfig has invalid Horizon")
	}
	if cfg.Dt <= 0 {
		t.Error("DefaultConfig has invalid Dt")
	}
	if cfg.Span <= 0 {
		t.Error("DefaultConfig has invalid Span")
	}
	if cfg.Tolerance <= 0 {
		t.Error("DefaultConfig has invalid Tolerance")
	}
	if cfg.MinDt <= 0 || cfg.MaxDt <= cfg.MinDt {
		t.Error("DefaultConfig has invalid step bounds")
	}
}

func TestSimError(t *testing.T) {
	err := SimError{Time: 1.5, Step: 150, Message: "test error"}
	expected := "step 150 (t=1.5000): test error"
	if err.Error() != expected {
		t.Errorf("SimError.Error() = %q, want %q", err.Error(), expected)
	}
}

func TestEnsembleRunsAllInitialConditions(t *testing.T) {
	ensemble := NewEnsemble(func() *Simulator {
		return New(&halver{}, nil, nil, &constInput{0})
	})

	inits := []State{{1}, {2}, {4}}
	cfg := Config{Horizon: 3, Discrete: true}

	results, err := ensemble.Run(context.Background(), inits, cfg)
	if err != nil {
		t.Fatalf("ensemble run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, r := range results {
		want := inits[i][0] / 4
		if got := r.States[2][0]; got != want {
			t.Errorf("run %d final state %v, want %v", i, got, want)
		}
	}
}

func TestEnsemblePropagatesErrors(t *testing.T) {
	ensemble := NewEnsemble(func() *Simulator {
		return New(&halver{}, nil, nil, &constInput{0})
	})

	// One bad initial condition fails the whole ensemble.
	inits := []State{{1}, {1, 2}}
	cfg := Config{Horizon: 3, Discrete: true}
	if _, err := ensemble.Run(context.Background(), inits, cfg); err == nil {
		t.Error("expected error for mismatched initial state")
	}
}
