package ren

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func compiled(t *testing.T, dims Dims, opts Options, seed int64) *Dynamics {
	t.Helper()
	params, err := NewParams(dims, opts, seed)
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	dyn, err := params.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return dyn
}

func TestEquilibriumForwardSubstitution(t *testing.T) {
	// Handcrafted triangular system, resolved by hand:
	//   w0 = tanh(c1[0]·x)
	//   w1 = tanh(c1[1]·x + d11[1,0]·w0)
	dyn := &Dynamics{
		dims: Dims{In: 1, Out: 1, X: 1, V: 2, Batch: 1},
		opts: DefaultOptions(),
		c1:   mat.NewDense(2, 1, []float64{1, 2}),
		d11:  mat.NewDense(2, 2, []float64{0, 0, 0.5, 0}),
		d12:  mat.NewDense(2, 1, []float64{0, 0}),
		bv:   mat.NewVecDense(2, nil),
	}

	x := mat.NewDense(1, 1, []float64{0.3})
	u := mat.NewDense(1, 1, []float64{0})

	w, err := dyn.Equilibrium(x, u)
	if err != nil {
		t.Fatalf("equilibrium: %v", err)
	}

	want0 := math.Tanh(0.3)
	want1 := math.Tanh(2*0.3 + 0.5*want0)
	if got := w.At(0, 0); got != want0 {
		t.Errorf("w0 = %.17g, want %.17g", got, want0)
	}
	if got := w.At(0, 1); got != want1 {
		t.Errorf("w1 = %.17g, want %.17g", got, want1)
	}
}

func TestEquilibriumInputAndBiasEnterRows(t *testing.T) {
	dyn := &Dynamics{
		dims: Dims{In: 2, Out: 1, X: 1, V: 1, Batch: 1},
		opts: DefaultOptions(),
		c1:   mat.NewDense(1, 1, []float64{0.5}),
		d11:  mat.NewDense(1, 1, nil),
		d12:  mat.NewDense(1, 2, []float64{1, -1}),
		bv:   mat.NewVecDense(1, []float64{0.25}),
	}

	x := mat.NewDense(1, 1, []float64{1})
	u := mat.NewDense(1, 2, []float64{0.2, 0.6})

	w, err := dyn.Equilibrium(x, u)
	if err != nil {
		t.Fatalf("equilibrium: %v", err)
	}
	// Accumulation order may differ from the hand expression by an ulp.
	want := math.Tanh(0.5*1 + 0.2 - 0.6 + 0.25)
	if got := w.At(0, 0); math.Abs(got-want) > 1e-15 {
		t.Errorf("w = %.17g, want %.17g", got, want)
	}
}

func TestEquilibriumDeterministic(t *testing.T) {
	dyn := compiled(t, Dims{In: 2, Out: 1, X: 4, V: 5, Batch: 3}, DefaultOptions(), 11)

	x := mat.NewDense(3, 4, []float64{
		0.1, -0.2, 0.3, 0.4,
		1.0, 2.0, -3.0, 0.5,
		-0.7, 0.1, 0.0, 0.9,
	})
	u := mat.NewDense(3, 2, []float64{1, -1, 0.5, 0.5, 0, 0})

	w1, err := dyn.Equilibrium(x, u)
	if err != nil {
		t.Fatalf("equilibrium: %v", err)
	}
	w2, err := dyn.Equilibrium(x, u)
	if err != nil {
		t.Fatalf("equilibrium: %v", err)
	}

	r, c := w1.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if w1.At(i, j) != w2.At(i, j) {
				t.Errorf("w[%d,%d] differs between identical calls: %v vs %v",
					i, j, w1.At(i, j), w2.At(i, j))
			}
		}
	}
}

func TestEquilibriumShapeMismatch(t *testing.T) {
	dyn := compiled(t, Dims{In: 1, Out: 1, X: 3, V: 2, Batch: 1}, DefaultOptions(), 5)

	x := mat.NewDense(1, 4, nil) // wrong state width
	u := mat.NewDense(1, 1, nil)
	if _, err := dyn.Equilibrium(x, u); err == nil {
		t.Error("expected shape mismatch for wrong state width")
	}

	x = mat.NewDense(2, 3, nil)
	u = mat.NewDense(1, 1, nil) // batch disagrees with state
	if _, err := dyn.Equilibrium(x, u); err == nil {
		t.Error("expected shape mismatch for disagreeing batch sizes")
	}
}

func TestBatchMatchesIndividualRows(t *testing.T) {
	dims := Dims{In: 2, Out: 2, X: 3, V: 4, Batch: 4}
	dyn := compiled(t, dims, DefaultOptions(), 23)

	x := mat.NewDense(4, 3, []float64{
		0.5, -0.1, 0.2,
		-1.2, 0.8, 0.0,
		0.3, 0.3, 0.3,
		2.0, -2.0, 1.0,
	})
	u := mat.NewDense(4, 2, []float64{
		0.1, 0.2,
		-0.5, 0.5,
		0, 0,
		1, -1,
	})

	w, err := dyn.Equilibrium(x, u)
	if err != nil {
		t.Fatalf("equilibrium: %v", err)
	}
	next, err := dyn.Next(x, u, w)
	if err != nil {
		t.Fatalf("next: %v", err)
	}

	const tol = 1e-13
	for r := 0; r < 4; r++ {
		xr := mat.NewDense(1, 3, append([]float64(nil), x.RawRowView(r)...))
		ur := mat.NewDense(1, 2, append([]float64(nil), u.RawRowView(r)...))

		wr, err := dyn.Equilibrium(xr, ur)
		if err != nil {
			t.Fatalf("row %d equilibrium: %v", r, err)
		}
		for j := 0; j < dims.V; j++ {
			if diff := math.Abs(w.At(r, j) - wr.At(0, j)); diff > tol {
				t.Errorf("row %d: w[%d] batch %v vs single %v", r, j, w.At(r, j), wr.At(0, j))
			}
		}

		nr, err := dyn.Next(xr, ur, wr)
		if err != nil {
			t.Fatalf("row %d next: %v", r, err)
		}
		for j := 0; j < dims.X; j++ {
			if diff := math.Abs(next.At(r, j) - nr.At(0, j)); diff > tol {
				t.Errorf("row %d: next[%d] batch %v vs single %v", r, j, next.At(r, j), nr.At(0, j))
			}
		}
	}
}

func TestInitStateFromOutputMinNorm(t *testing.T) {
	// C2 = [1 2 2], y0 = 3. The minimum-norm solution is
	// C2ᵀ(C2·C2ᵀ)⁻¹·y0 = [1/3, 2/3, 2/3].
	dyn := &Dynamics{
		dims: Dims{In: 1, Out: 1, X: 3, V: 1, Batch: 1},
		opts: DefaultOptions(),
		c2:   mat.NewDense(1, 3, []float64{1, 2, 2}),
	}

	y0 := mat.NewDense(1, 1, []float64{3})
	x0, err := dyn.InitStateFromOutput(y0)
	if err != nil {
		t.Fatalf("init state: %v", err)
	}

	want := []float64{1.0 / 3, 2.0 / 3, 2.0 / 3}
	for j, w := range want {
		if diff := math.Abs(x0.At(0, j) - w); diff > 1e-12 {
			t.Errorf("x0[%d] = %.15g, want %.15g", j, x0.At(0, j), w)
		}
	}

	// Exact reconstruction of y0.
	residual := x0.At(0, 0)*1 + x0.At(0, 1)*2 + x0.At(0, 2)*2 - 3
	if math.Abs(residual) > 1e-12 {
		t.Errorf("residual %g, want 0", residual)
	}

	// Any alternate solution, e.g. [3, 0, 0], must have larger norm.
	norm := math.Sqrt(x0.At(0, 0)*x0.At(0, 0) + x0.At(0, 1)*x0.At(0, 1) + x0.At(0, 2)*x0.At(0, 2))
	if norm >= 3 {
		t.Errorf("min-norm solution has norm %g, alternate solution has 3", norm)
	}
}

func TestInitStateFromOutputRoundTrip(t *testing.T) {
	dyn := compiled(t, Dims{In: 1, Out: 2, X: 5, V: 2, Batch: 3}, DefaultOptions(), 77)

	y0 := mat.NewDense(3, 2, []float64{1, -1, 0.5, 2, 0, 0.25})
	x0, err := dyn.InitStateFromOutput(y0)
	if err != nil {
		t.Fatalf("init state: %v", err)
	}

	u := mat.NewDense(3, 1, nil)
	y, err := dyn.Output(x0, u, nil)
	if err != nil {
		t.Fatalf("output: %v", err)
	}

	for r := 0; r < 3; r++ {
		for j := 0; j < 2; j++ {
			if diff := math.Abs(y.At(r, j) - y0.At(r, j)); diff > 1e-9 {
				t.Errorf("y[%d,%d] = %g, want %g", r, j, y.At(r, j), y0.At(r, j))
			}
		}
	}
}

func TestOutputNonlinearVariant(t *testing.T) {
	opts := DefaultOptions()
	opts.LinearOutput = false
	opts.AddBias = true
	dyn := compiled(t, Dims{In: 2, Out: 2, X: 3, V: 2, Batch: 1}, opts, 31)

	x := mat.NewDense(1, 3, []float64{0.1, 0.2, 0.3})
	u := mat.NewDense(1, 2, []float64{0.5, -0.5})

	w, err := dyn.Equilibrium(x, u)
	if err != nil {
		t.Fatalf("equilibrium: %v", err)
	}
	y, err := dyn.Output(x, u, w)
	if err != nil {
		t.Fatalf("output: %v", err)
	}

	// Reconstruct y = C2·x + D21·w + D22·u + by by hand.
	for i := 0; i < 2; i++ {
		want := dyn.by.AtVec(i)
		for j := 0; j < 3; j++ {
			want += dyn.c2.At(i, j) * x.At(0, j)
		}
		for j := 0; j < 2; j++ {
			want += dyn.d21.At(i, j)*w.At(0, j) + dyn.d22.At(i, j)*u.At(0, j)
		}
		if diff := math.Abs(y.At(0, i) - want); diff > 1e-12 {
			t.Errorf("y[%d] = %g, want %g", i, y.At(0, i), want)
		}
	}
}

// discreteContractiveParams is a handcrafted parameter set whose
// compiled recurrence has a verified margin: the gains of A and B1 are
// small enough that the P-weighted state norm must decay under zero
// input at every step.
func discreteContractiveParams(t *testing.T) *Params {
	t.Helper()

	opts := DefaultOptions()
	opts.Variant = Discrete
	s := math.Sqrt2
	params := &Params{
		Dims:  Dims{In: 1, Out: 1, X: 2, V: 2, Batch: 1},
		Opts:  opts,
		Pstar: mat.NewDense(2, 2, []float64{s, 0, 0, s}),
		Chi:   mat.NewDense(2, 2, []float64{0.1, 0.1, 0.1, 0.1}),
		X: mat.NewDense(4, 4, []float64{
			0.5, 0, 0, 0,
			0, 0.5, 0, 0,
			0, 0, 1.4, 0,
			0, 0, 0.5, 1.3,
		}),
		Y1:  mat.NewDense(2, 2, nil),
		B2:  mat.NewDense(2, 1, nil),
		D12: mat.NewDense(2, 1, nil),
		C2:  mat.NewDense(1, 2, []float64{1, 0}),
		D21: mat.NewDense(1, 2, nil),
		D22: mat.NewDense(1, 1, nil),
		Bx:  mat.NewVecDense(2, nil),
		Bv:  mat.NewVecDense(2, nil),
		By:  mat.NewVecDense(1, nil),
	}
	return params
}

func TestDiscreteRecurrenceContracts(t *testing.T) {
	dyn, err := discreteContractiveParams(t).Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	x := mat.NewDense(1, 2, []float64{1.2, -0.8})
	u := mat.NewDense(1, 1, nil)

	prev := dyn.MetricNorm(x)
	for step := 0; step < 50; step++ {
		w, err := dyn.Equilibrium(x, u)
		if err != nil {
			t.Fatalf("step %d: equilibrium: %v", step, err)
		}
		next, err := dyn.Next(x, u, w)
		if err != nil {
			t.Fatalf("step %d: next: %v", step, err)
		}
		x = next

		v := dyn.MetricNorm(x)
		if v > prev+1e-12 {
			t.Fatalf("step %d: metric norm grew: %g -> %g", step, prev, v)
		}
		prev = v
	}

	if prev > 1e-6 {
		t.Errorf("state failed to settle: final metric norm %g", prev)
	}
}
