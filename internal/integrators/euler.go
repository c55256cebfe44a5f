package integrators

import "github.com/san-kum/rensim/internal/sim"

// Euler is the explicit first-order method. One derivative evaluation
// per step, so one equilibrium solve; the cheapest baseline for
// comparing against RK4 and RK45.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn sim.Dynamics, x sim.State, u sim.Control, t float64, dt float64) sim.State {
	dx := dyn.Derivative(x, u, t)
	result := make(sim.State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}
