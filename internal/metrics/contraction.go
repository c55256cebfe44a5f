// Package metrics provides rollout metrics observed step by step.
package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rensim/internal/sim"
)

// Contraction monitors the P-weighted squared state norm over a rollout
// and reports the worst step-to-step ratio. A value at or below one
// certifies monotone decay in the contraction metric; the rate lower
// bound can be checked by comparing against exp(-c·dt).
type Contraction struct {
	p     mat.Matrix
	n     int
	prev  float64
	worst float64
	seen  int
}

// NewContraction takes the compiled contraction metric P (n×n) and the
// per-element state width n; the observed state is the flattened batch.
func NewContraction(p mat.Matrix, n int) *Contraction {
	return &Contraction{p: p, n: n}
}

func (c *Contraction) Name() string { return "contraction" }

func (c *Contraction) Observe(x sim.State, u sim.Control, t float64) {
	v := c.metricNorm(x)
	if c.seen > 0 && c.prev > 0 {
		ratio := v / c.prev
		if c.seen == 1 || ratio > c.worst {
			c.worst = ratio
		}
	}
	c.prev = v
	c.seen++
}

// Value returns the worst observed V(t+1)/V(t); 1 when fewer than two
// samples were seen.
func (c *Contraction) Value() float64 {
	if c.seen < 2 {
		return 1
	}
	return c.worst
}

func (c *Contraction) Reset() {
	c.prev = 0
	c.worst = 0
	c.seen = 0
}

// metricNorm sums xᵣᵀ·P·xᵣ over the batch blocks of the flattened state.
func (c *Contraction) metricNorm(x sim.State) float64 {
	total := 0.0
	for off := 0; off+c.n <= len(x); off += c.n {
		row := x[off : off+c.n]
		for i := 0; i < c.n; i++ {
			dot := 0.0
			for j := 0; j < c.n; j++ {
				dot += c.p.At(i, j) * row[j]
			}
			total += row[i] * dot
		}
	}
	return total
}
