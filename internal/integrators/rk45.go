package integrators

import (
	"math"

	"github.com/san-kum/rensim/internal/sim"
)

// Dormand-Prince 5(4) tableau.
var (
	dpA = [7]float64{0, 1.0 / 5.0, 3.0 / 10.0, 4.0 / 5.0, 8.0 / 9.0, 1, 1}

	dpB = [7][6]float64{
		{},
		{1.0 / 5.0},
		{3.0 / 40.0, 9.0 / 40.0},
		{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0},
		{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0},
		{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0},
		{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0},
	}

	// Fifth-order weights; stage 7 reuses the solution (FSAL).
	dpC = [7]float64{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0, 0}

	// Difference against the embedded fourth-order solution.
	dpE = [7]float64{
		35.0/384.0 - 5179.0/57600.0,
		0,
		500.0/1113.0 - 7571.0/16695.0,
		125.0/192.0 - 393.0/640.0,
		-2187.0/6784.0 + 92097.0/339200.0,
		11.0/84.0 - 187.0/2100.0,
		-1.0 / 40.0,
	}
)

// RK45 is an adaptive Dormand-Prince integrator. Every stage evaluates
// the full right-hand side, so implicit-layer models re-solve their
// feedback at each intermediate state, as the step contract requires.
type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt float64) sim.State {
	newX, _, _ := r.StepAdaptive(dyn, x, u, t, dt, 1e-6)
	return newX
}

// StepAdaptive advances one step of size dt and returns the new state
// together with the suggested next step size.
func (r *RK45) StepAdaptive(dyn sim.Dynamics, x sim.State, u sim.Control, t, dt, tol float64) (sim.State, float64, error) {
	n := len(x)
	var k [7]sim.State

	stage := make(sim.State, n)
	for s := 0; s < 7; s++ {
		if s == 0 {
			k[0] = dyn.Derivative(x, u, t)
			continue
		}
		for i := 0; i < n; i++ {
			acc := x[i]
			for j := 0; j < s; j++ {
				if dpB[s][j] != 0 {
					acc += dt * dpB[s][j] * k[j][i]
				}
			}
			stage[i] = acc
		}
		k[s] = dyn.Derivative(stage, u, t+dpA[s]*dt)
		stage = make(sim.State, n)
	}

	xNew := make(sim.State, n)
	for i := 0; i < n; i++ {
		acc := x[i]
		for s := 0; s < 7; s++ {
			if dpC[s] != 0 {
				acc += dt * dpC[s] * k[s][i]
			}
		}
		xNew[i] = acc
	}

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := 0.0
		for s := 0; s < 7; s++ {
			if dpE[s] != 0 {
				errEst += dt * dpE[s] * k[s][i]
			}
		}
		scale := math.Abs(x[i]) + math.Abs(dt*k[0][i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}

	errRatio := errMax / tol
	var dtNew float64
	switch {
	case errRatio > 1:
		dtNew = dt * math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	case errRatio > 0:
		dtNew = dt * math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
	default:
		dtNew = dt * r.maxScale
	}

	return xNew, dtNew, nil
}
