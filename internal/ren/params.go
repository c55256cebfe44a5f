package ren

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Variant selects how the compiled dynamics advance the state.
type Variant int

const (
	// Continuous treats A·x + B1·w + bx + B2·u as a time derivative,
	// consumed by an external ODE integrator.
	Continuous Variant = iota
	// Discrete applies the same expression as a direct recurrence.
	Discrete
)

func (v Variant) String() string {
	switch v {
	case Continuous:
		return "continuous"
	case Discrete:
		return "discrete"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// Dims fixes the model sizes at construction.
type Dims struct {
	In    int `json:"in"`    // input width m
	Out   int `json:"out"`   // output width p
	X     int `json:"x"`     // state width n
	V     int `json:"v"`     // implicit-layer width q
	Batch int `json:"batch"` // parallel trajectories b
}

func (d Dims) validate() error {
	if d.In <= 0 || d.Out <= 0 || d.X <= 0 || d.V <= 0 || d.Batch <= 0 {
		return fmt.Errorf("%w: got %+v", ErrBadDimensions, d)
	}
	return nil
}

// Options fixes model behavior at construction.
type Options struct {
	// PosdefTol is the epsilon added to the quadratic-form
	// constructions. Must be strictly positive; it is the only thing
	// standing between the compile step and a singular inversion.
	PosdefTol float64 `json:"posdef_tol"`
	// ContractionRateLB is the certified lower bound on the
	// contraction rate. Non-negative.
	ContractionRateLB float64 `json:"contraction_rate_lb"`
	// WeightInitStd scales the Gaussian parameter initialization.
	WeightInitStd float64 `json:"weight_init_std"`
	// AddBias enables the trainable bx, bv, by bias vectors.
	AddBias bool `json:"add_bias"`
	// LinearOutput restricts the readout to y = C2·x. When false the
	// readout also mixes the feedback and input through D21, D22, by.
	LinearOutput bool    `json:"linear_output"`
	Variant      Variant `json:"variant"`
}

func DefaultOptions() Options {
	return Options{
		PosdefTol:     5.0e-2,
		WeightInitStd: 0.5,
		LinearOutput:  true,
		Variant:       Continuous,
	}
}

func (o Options) validate() error {
	if o.PosdefTol <= 0 {
		return fmt.Errorf("%w: posdef_tol must be positive, got %g", ErrBadOption, o.PosdefTol)
	}
	if o.ContractionRateLB < 0 {
		return fmt.Errorf("%w: contraction_rate_lb must be non-negative, got %g", ErrBadOption, o.ContractionRateLB)
	}
	if o.WeightInitStd <= 0 {
		return fmt.Errorf("%w: weight_init_std must be positive, got %g", ErrBadOption, o.WeightInitStd)
	}
	if o.Variant != Continuous && o.Variant != Discrete {
		return fmt.Errorf("%w: unknown variant %d", ErrBadOption, int(o.Variant))
	}
	return nil
}

// Params holds the free, unconstrained matrices. An external optimizer
// may overwrite any entry between rollouts; Compile derives the
// constrained dynamics from whatever values are present.
type Params struct {
	Dims Dims
	Opts Options

	Pstar *mat.Dense // n×n, seed for the state metric
	Chi   *mat.Dense // n×q, state/implicit coupling seed
	X     *mat.Dense // (n+q)×(n+q), joint certificate seed
	Y1    *mat.Dense // n×n, skew correction seed

	B2  *mat.Dense // n×m
	D12 *mat.Dense // q×m
	C2  *mat.Dense // p×n
	D21 *mat.Dense // p×q, zero when LinearOutput
	D22 *mat.Dense // p×m

	Bx *mat.VecDense // n
	Bv *mat.VecDense // q
	By *mat.VecDense // p
}

// NewParams draws the free matrices from a seeded Gaussian.
func NewParams(dims Dims, opts Options, seed int64) (*Params, error) {
	if err := dims.validate(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	randn := func(r, c int) *mat.Dense {
		d := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				d.Set(i, j, rng.NormFloat64()*opts.WeightInitStd)
			}
		}
		return d
	}
	randv := func(n int) *mat.VecDense {
		v := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			v.SetVec(i, rng.NormFloat64()*opts.WeightInitStd)
		}
		return v
	}

	n, q, m, p2 := dims.X, dims.V, dims.In, dims.Out
	prm := &Params{
		Dims:  dims,
		Opts:  opts,
		Pstar: randn(n, n),
		Chi:   randn(n, q),
		X:     randn(n+q, n+q),
		Y1:    randn(n, n),
		B2:    randn(n, m),
		D12:   randn(q, m),
		C2:    randn(p2, n),
		D22:   randn(p2, m),
	}

	if opts.LinearOutput {
		prm.D21 = mat.NewDense(p2, q, nil)
	} else {
		prm.D21 = randn(p2, q)
	}

	if opts.AddBias {
		prm.Bx = randv(n)
		prm.Bv = randv(q)
		prm.By = randv(p2)
	} else {
		prm.Bx = mat.NewVecDense(n, nil)
		prm.Bv = mat.NewVecDense(q, nil)
		prm.By = mat.NewVecDense(p2, nil)
	}
	return prm, nil
}
