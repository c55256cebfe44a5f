package ren

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Dynamics is an immutable snapshot of the constrained matrices. All
// forward operations live here; batches are rows of the state, input and
// feedback matrices, shared read-only matrices underneath.
type Dynamics struct {
	dims Dims
	opts Options

	p   *mat.Dense // n×n contraction metric, symmetric positive definite
	a   *mat.Dense // n×n
	b1  *mat.Dense // n×q
	c1  *mat.Dense // q×n
	d11 *mat.Dense // q×q, strictly lower triangular

	b2  *mat.Dense // n×m
	d12 *mat.Dense // q×m
	c2  *mat.Dense // p×n
	d21 *mat.Dense // p×q
	d22 *mat.Dense // p×m

	bx *mat.VecDense
	bv *mat.VecDense
	by *mat.VecDense
}

func (d *Dynamics) Dims() Dims    { return d.dims }
func (d *Dynamics) Opts() Options { return d.opts }

// Matrix accessors return live views; callers must not mutate them.
func (d *Dynamics) Metric() mat.Matrix { return d.p }
func (d *Dynamics) A() mat.Matrix      { return d.a }
func (d *Dynamics) B1() mat.Matrix     { return d.b1 }
func (d *Dynamics) C1() mat.Matrix     { return d.c1 }
func (d *Dynamics) D11() mat.Matrix    { return d.d11 }
func (d *Dynamics) C2() mat.Matrix     { return d.c2 }

// Equilibrium resolves the implicit feedback w = tanh(C1·x + D11·w +
// D12·u + bv) for a batch of states x (b×n) and inputs u (b×m).
//
// D11 is strictly lower triangular, so this is not a fixed point: row i
// only references rows j < i, and one forward-substitution sweep over
// the q rows yields the exact solution. Cost is O(q²) multiply-adds per
// batch element.
func (d *Dynamics) Equilibrium(x, u *mat.Dense) (*mat.Dense, error) {
	b, err := d.checkShapes(x, u)
	if err != nil {
		return nil, err
	}
	q := d.dims.V

	w := mat.NewDense(b, q, nil)
	for i := 0; i < q; i++ {
		c1i := d.c1.RawRowView(i)
		d11i := d.d11.RawRowView(i)[:i]
		d12i := d.d12.RawRowView(i)
		bvi := d.bv.AtVec(i)
		for r := 0; r < b; r++ {
			v := bvi +
				floats.Dot(c1i, x.RawRowView(r)) +
				floats.Dot(d11i, w.RawRowView(r)[:i]) +
				floats.Dot(d12i, u.RawRowView(r))
			w.Set(r, i, math.Tanh(v))
		}
	}
	return w, nil
}

// Derivative evaluates the continuous-time right-hand side
// ẋ = A·x + B1·w + bx + B2·u for a batch. The feedback w must have been
// resolved against the same x and u.
func (d *Dynamics) Derivative(x, u, w *mat.Dense) (*mat.Dense, error) {
	return d.affine(x, u, w)
}

// Next applies the same expression as a discrete recurrence.
func (d *Dynamics) Next(x, u, w *mat.Dense) (*mat.Dense, error) {
	return d.affine(x, u, w)
}

func (d *Dynamics) affine(x, u, w *mat.Dense) (*mat.Dense, error) {
	b, err := d.checkShapes(x, u)
	if err != nil {
		return nil, err
	}
	if wr, wc := w.Dims(); wr != b || wc != d.dims.V {
		return nil, fmt.Errorf("%w: feedback is %d×%d, want %d×%d", ErrShapeMismatch, wr, wc, b, d.dims.V)
	}

	out := mat.NewDense(b, d.dims.X, nil)
	out.Mul(x, d.a.T())

	var tmp mat.Dense
	tmp.Mul(w, d.b1.T())
	out.Add(out, &tmp)
	tmp.Reset()
	tmp.Mul(u, d.b2.T())
	out.Add(out, &tmp)

	addRowBias(out, d.bx)
	return out, nil
}

// Output maps a batch of states to observable outputs. The linear
// variant is y = C2·x; the nonlinear variant also mixes the feedback
// and input through D21, D22 and the output bias.
func (d *Dynamics) Output(x, u, w *mat.Dense) (*mat.Dense, error) {
	b, err := d.checkShapes(x, u)
	if err != nil {
		return nil, err
	}

	y := mat.NewDense(b, d.dims.Out, nil)
	y.Mul(x, d.c2.T())
	if d.opts.LinearOutput {
		return y, nil
	}

	if wr, wc := w.Dims(); wr != b || wc != d.dims.V {
		return nil, fmt.Errorf("%w: feedback is %d×%d, want %d×%d", ErrShapeMismatch, wr, wc, b, d.dims.V)
	}
	var tmp mat.Dense
	tmp.Mul(w, d.d21.T())
	y.Add(y, &tmp)
	tmp.Reset()
	tmp.Mul(u, d.d22.T())
	y.Add(y, &tmp)
	addRowBias(y, d.by)
	return y, nil
}

// InitStateFromOutput solves C2·x0 = y0 for each batch row of y0 (b×p).
// When n > p the system is underdetermined; the minimum-norm solution is
// returned so trajectories stay comparable across restarts.
func (d *Dynamics) InitStateFromOutput(y0 *mat.Dense) (*mat.Dense, error) {
	b, p := y0.Dims()
	if p != d.dims.Out {
		return nil, fmt.Errorf("%w: output is %d×%d, want width %d", ErrShapeMismatch, b, p, d.dims.Out)
	}

	var svd mat.SVD
	if ok := svd.Factorize(d.c2, mat.SVDThin); !ok {
		return nil, fmt.Errorf("ren: svd of C2 failed to converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	// x0ᵀ = V·Σ⁺·Uᵀ·y0ᵀ, with small singular values truncated. The
	// pseudo-inverse solve yields the least-squares solution of minimum
	// Euclidean norm.
	dim := d.dims.X
	if d.dims.Out > dim {
		dim = d.dims.Out
	}
	tol := float64(dim) * 2.220446049250313e-16
	if len(s) > 0 {
		tol *= s[0]
	}

	var proj mat.Dense
	proj.Mul(u.T(), y0.T()) // k×b
	for i, sv := range s {
		row := proj.RawRowView(i)
		if sv > tol {
			floats.Scale(1/sv, row)
		} else {
			for j := range row {
				row[j] = 0
			}
		}
	}
	var x0t mat.Dense
	x0t.Mul(&v, &proj) // n×b

	x0 := mat.NewDense(b, d.dims.X, nil)
	x0.Copy(x0t.T())
	return x0, nil
}

func (d *Dynamics) checkShapes(x, u *mat.Dense) (int, error) {
	b, n := x.Dims()
	if n != d.dims.X {
		return 0, fmt.Errorf("%w: state is %d×%d, want width %d", ErrShapeMismatch, b, n, d.dims.X)
	}
	ub, um := u.Dims()
	if ub != b || um != d.dims.In {
		return 0, fmt.Errorf("%w: input is %d×%d, want %d×%d", ErrShapeMismatch, ub, um, b, d.dims.In)
	}
	return b, nil
}

// MetricNorm returns Σ over batch rows of xᵣᵀ·P·xᵣ, the squared norm in
// the P-induced contraction metric.
func (d *Dynamics) MetricNorm(x *mat.Dense) float64 {
	b, _ := x.Dims()
	n := d.dims.X
	total := 0.0
	for r := 0; r < b; r++ {
		row := x.RawRowView(r)
		for i := 0; i < n; i++ {
			pi := d.p.RawRowView(i)
			total += row[i] * floats.Dot(pi, row)
		}
	}
	return total
}

func addRowBias(m *mat.Dense, bias *mat.VecDense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j := 0; j < c; j++ {
			row[j] += bias.AtVec(j)
		}
	}
}
