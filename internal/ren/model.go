package ren

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rensim/internal/sim"
)

// Model owns the free parameters, the compiled dynamics and the internal
// state, and exposes the sim package interfaces over the flattened
// batch-major state layout (b·n entries, row per batch element).
//
// The parameters are mutated only by an external optimizer, strictly
// between rollouts; Compile must run after every such mutation. The
// simulator never sees the parameters, only the compiled snapshot.
type Model struct {
	params *Params
	dyn    *Dynamics
	x      *mat.Dense // b×n internal state
}

// New builds a model with randomly initialized parameters and compiles
// the initial dynamics.
func New(dims Dims, opts Options, seed int64) (*Model, error) {
	params, err := NewParams(dims, opts, seed)
	if err != nil {
		return nil, err
	}
	return FromParams(params)
}

// FromParams wraps existing parameters (e.g. from a checkpoint) and
// compiles immediately, so the model is never observable in a state
// where the dynamics lag the parameters.
func FromParams(params *Params) (*Model, error) {
	m := &Model{
		params: params,
		x:      mat.NewDense(params.Dims.Batch, params.Dims.X, nil),
	}
	if err := m.Compile(); err != nil {
		return nil, err
	}
	return m, nil
}

// Params exposes the free parameters for the external optimizer. Any
// mutation invalidates the compiled dynamics until the next Compile.
func (m *Model) Params() *Params { return m.params }

// Compile rebuilds the constrained dynamics from the current parameters.
func (m *Model) Compile() error {
	dyn, err := m.params.Compile()
	if err != nil {
		return err
	}
	m.dyn = dyn
	return nil
}

// Dynamics returns the current compiled snapshot.
func (m *Model) Dynamics() *Dynamics { return m.dyn }

func (m *Model) Variant() Variant { return m.params.Opts.Variant }

// SetState overwrites the internal state (b×n).
func (m *Model) SetState(x0 *mat.Dense) error {
	r, c := x0.Dims()
	if r != m.params.Dims.Batch || c != m.params.Dims.X {
		return fmt.Errorf("%w: state is %d×%d, want %d×%d",
			ErrShapeMismatch, r, c, m.params.Dims.Batch, m.params.Dims.X)
	}
	m.x.Copy(x0)
	return nil
}

// SetStateFromOutput chooses the internal state that reproduces the
// given initial output under the linear readout, min-norm when
// underdetermined.
func (m *Model) SetStateFromOutput(y0 *mat.Dense) error {
	if m.dyn == nil {
		return ErrNotCompiled
	}
	x0, err := m.dyn.InitStateFromOutput(y0)
	if err != nil {
		return err
	}
	return m.SetState(x0)
}

// State returns the flattened internal state for seeding a rollout.
func (m *Model) State() sim.State {
	b, n := m.x.Dims()
	s := make(sim.State, 0, b*n)
	for r := 0; r < b; r++ {
		s = append(s, m.x.RawRowView(r)...)
	}
	return s
}

// StateDim is the flattened width b·n seen by the simulator.
func (m *Model) StateDim() int { return m.params.Dims.Batch * m.params.Dims.X }

func (m *Model) ControlDim() int { return m.params.Dims.In }

func (m *Model) OutputDim() int { return m.params.Dims.Batch * m.params.Dims.Out }

// Derivative implements sim.Dynamics. Each call resolves the implicit
// feedback against the supplied state, so adaptive integrators get a
// consistent right-hand side at every sub-stage. The time argument is
// accepted but unused: the matrices are time-invariant.
func (m *Model) Derivative(x sim.State, u sim.Control, t float64) sim.State {
	out, ok := m.forward(x, u)
	if !ok {
		return nanState(len(x))
	}
	return flatten(out)
}

// Next implements sim.Stepper for the discrete variant.
func (m *Model) Next(x sim.State, u sim.Control, t float64) sim.State {
	out, ok := m.forward(x, u)
	if !ok {
		return nanState(len(x))
	}
	return flatten(out)
}

// Output implements sim.OutputMapper over the flattened layout.
func (m *Model) Output(x sim.State, u sim.Control) []float64 {
	xm, um, ok := m.reshape(x, u)
	if !ok {
		return nanState(m.OutputDim())
	}
	var w *mat.Dense
	if !m.params.Opts.LinearOutput {
		var err error
		w, err = m.dyn.Equilibrium(xm, um)
		if err != nil {
			return nanState(m.OutputDim())
		}
	}
	y, err := m.dyn.Output(xm, um, w)
	if err != nil {
		return nanState(m.OutputDim())
	}
	return flatten(y)
}

// forward runs one solve+affine pass; shared by both variants.
func (m *Model) forward(x sim.State, u sim.Control) (*mat.Dense, bool) {
	xm, um, ok := m.reshape(x, u)
	if !ok {
		return nil, false
	}
	w, err := m.dyn.Equilibrium(xm, um)
	if err != nil {
		return nil, false
	}
	out, err := m.dyn.affine(xm, um, w)
	if err != nil {
		return nil, false
	}
	return out, true
}

// reshape views the flattened state as b×n and broadcasts the shared
// input vector across the batch.
func (m *Model) reshape(x sim.State, u sim.Control) (*mat.Dense, *mat.Dense, bool) {
	d := m.params.Dims
	if m.dyn == nil || len(x) != d.Batch*d.X || len(u) != d.In {
		return nil, nil, false
	}
	xm := mat.NewDense(d.Batch, d.X, x)
	um := mat.NewDense(d.Batch, d.In, nil)
	for r := 0; r < d.Batch; r++ {
		copy(um.RawRowView(r), u)
	}
	return xm, um, true
}

func flatten(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}

// nanState poisons the trajectory on a shape violation; the simulator's
// state validation turns it into a SimError at the offending step.
func nanState(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
