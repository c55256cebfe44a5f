package sim

import "math"

// State is a flattened state vector. Batched models lay out their state
// row-major, one block of n entries per batch element.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// Control is an exogenous input vector, shared across batch elements.
type Control []float64

// Dynamics is a continuous-time system dX/dt = f(X, u, t).
type Dynamics interface {
	Derivative(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Stepper is a discrete-time recurrence X[k+1] = f(X[k], u[k]).
// Discrete models implement this in addition to Dynamics.
type Stepper interface {
	Next(x State, u Control, t float64) State
}

// OutputMapper maps a state (and the input it evolved under) to the
// observable output vector.
type OutputMapper interface {
	Output(x State, u Control) []float64
	OutputDim() int
}

type Integrator interface {
	Step(dyn Dynamics, x State, u Control, t float64, dt float64) State
}

type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(dyn Dynamics, x State, u Control, t, dt, tol float64) (State, float64, error)
}

// Input supplies the exogenous signal u(t). Implementations may also look
// at the current state (e.g. feedback inputs), but most are open-loop.
type Input interface {
	At(x State, t float64) Control
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}

// Config controls a single rollout.
//
// Discrete rollouts apply the recurrence Horizon-1 times. Continuous
// rollouts integrate over a uniform grid of Horizon points spanning
// [0, Span], sub-stepping with Dt (or adaptively) between grid points.
type Config struct {
	Horizon       int
	Span          float64
	Dt            float64
	Discrete      bool
	Adaptive      bool
	Tolerance     float64
	MinDt         float64
	MaxDt         float64
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Horizon:       50,
		Span:          1.0,
		Dt:            0.005,
		Tolerance:     1e-4,
		MinDt:         1e-8,
		MaxDt:         0.05,
		ValidateState: true,
	}
}

// Result holds one rollout: Horizon state samples, the matching output
// samples, the input applied at each sample, and the grid times.
type Result struct {
	States     []State
	Outputs    [][]float64
	Controls   []Control
	Times      []float64
	Metrics    map[string]float64
	StepsTaken int
}
