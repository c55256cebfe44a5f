// Package input provides exogenous input signals for rollouts. The
// model treats u as a genuine time-varying drive; a zero signal is one
// choice among several, not a baked-in placeholder.
package input

import (
	"math"

	"github.com/san-kum/rensim/internal/sim"
)

// Zero drives the model with no input, the autonomous setting.
type Zero struct {
	dim int
}

func NewZero(dim int) *Zero {
	return &Zero{dim: dim}
}

func (z *Zero) At(x sim.State, t float64) sim.Control {
	return make(sim.Control, z.dim)
}

// Constant holds a fixed input vector for the whole horizon.
type Constant struct {
	u sim.Control
}

func NewConstant(u []float64) *Constant {
	return &Constant{u: append(sim.Control(nil), u...)}
}

func (c *Constant) At(x sim.State, t float64) sim.Control {
	return append(sim.Control(nil), c.u...)
}

// Sequence replays a recorded input trajectory with zero-order hold:
// sample k applies on [k·dt, (k+1)·dt). Past the end it holds the last
// sample, so discrete rollouts can index it one-to-one.
type Sequence struct {
	samples []sim.Control
	dt      float64
}

func NewSequence(samples [][]float64, dt float64) *Sequence {
	s := &Sequence{dt: dt}
	for _, u := range samples {
		s.samples = append(s.samples, append(sim.Control(nil), u...))
	}
	return s
}

func (s *Sequence) At(x sim.State, t float64) sim.Control {
	if len(s.samples) == 0 {
		return nil
	}
	k := int(math.Floor(t / s.dt))
	if k < 0 {
		k = 0
	}
	if k >= len(s.samples) {
		k = len(s.samples) - 1
	}
	return append(sim.Control(nil), s.samples[k]...)
}

// Sine drives every channel with amp·sin(2π·freq·t + phase).
type Sine struct {
	dim   int
	amp   float64
	freq  float64
	phase float64
}

func NewSine(dim int, amp, freq, phase float64) *Sine {
	return &Sine{dim: dim, amp: amp, freq: freq, phase: phase}
}

func (s *Sine) At(x sim.State, t float64) sim.Control {
	u := make(sim.Control, s.dim)
	v := s.amp * math.Sin(2*math.Pi*s.freq*t+s.phase)
	for i := range u {
		u[i] = v
	}
	return u
}
