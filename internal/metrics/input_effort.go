package metrics

import "github.com/san-kum/rensim/internal/sim"

// InputEffort accumulates the mean squared input magnitude across the
// rollout, a cheap proxy for how hard the exogenous signal drives the
// system.
type InputEffort struct {
	sum  float64
	seen int
}

func NewInputEffort() *InputEffort {
	return &InputEffort{}
}

func (e *InputEffort) Name() string { return "input_effort" }

func (e *InputEffort) Observe(x sim.State, u sim.Control, t float64) {
	for _, v := range u {
		e.sum += v * v
	}
	e.seen++
}

func (e *InputEffort) Value() float64 {
	if e.seen == 0 {
		return 0
	}
	return e.sum / float64(e.seen)
}

func (e *InputEffort) Reset() {
	e.sum = 0
	e.seen = 0
}
