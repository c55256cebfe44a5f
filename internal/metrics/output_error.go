package metrics

import (
	"math"

	"github.com/san-kum/rensim/internal/sim"
)

// OutputError tracks the RMS distance between the rollout's outputs and
// a reference trajectory, the quantity an imitation-learning loop would
// feed back as loss. Sample k of the reference is compared against
// observation k.
type OutputError struct {
	out  sim.OutputMapper
	ref  [][]float64
	sum  float64
	seen int
}

func NewOutputError(out sim.OutputMapper, ref [][]float64) *OutputError {
	return &OutputError{out: out, ref: ref}
}

func (o *OutputError) Name() string { return "output_error" }

func (o *OutputError) Observe(x sim.State, u sim.Control, t float64) {
	if o.seen >= len(o.ref) {
		o.seen++
		return
	}
	y := o.out.Output(x, u)
	want := o.ref[o.seen]
	for i := range y {
		if i >= len(want) {
			break
		}
		diff := y[i] - want[i]
		o.sum += diff * diff
	}
	o.seen++
}

func (o *OutputError) Value() float64 {
	n := o.seen
	if n > len(o.ref) {
		n = len(o.ref)
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(o.sum / float64(n))
}

func (o *OutputError) Reset() {
	o.sum = 0
	o.seen = 0
}
